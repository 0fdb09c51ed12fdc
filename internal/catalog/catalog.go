// Package catalog reads the farm catalog from YAML and seeds it into a
// service. Records carry explicit ids so documents can reference each other
// and seeding can be repeated.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog is the root of a catalog document.
type Catalog struct {
	UoMs      []UoM      `yaml:"uoms"`
	Products  []Product  `yaml:"products"`
	Sequences []Sequence `yaml:"sequences"`
	Locations []Location `yaml:"locations"`
	Species   []Specie   `yaml:"species"`
	FarmLines []FarmLine `yaml:"farm_lines"`
	BOMs      []BOM      `yaml:"boms"`
}

// UoM is a unit of measure entry. Factor is a decimal string.
type UoM struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Factor   string `yaml:"factor"`
	Digits   int32  `yaml:"digits"`
}

// Product is a product entry; prices are decimal strings.
type Product struct {
	ID             string `yaml:"id"`
	Code           string `yaml:"code"`
	Name           string `yaml:"name"`
	UoM            string `yaml:"uom"`
	CostPrice      string `yaml:"cost_price"`
	FarrowingPrice string `yaml:"farrowing_price"`
	ExpirationDays int    `yaml:"expiration_days"`
}

// Sequence is a numbering sequence entry.
type Sequence struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Prefix     string `yaml:"prefix"`
	Padding    int    `yaml:"padding"`
	NextNumber int    `yaml:"next_number"`
}

// Location is a location entry. Warehouse links and fed locations are set
// after every location exists, so entries may reference later ones.
type Location struct {
	ID                 string   `yaml:"id"`
	Code               string   `yaml:"code"`
	Name               string   `yaml:"name"`
	Type               string   `yaml:"type"`
	Warehouse          string   `yaml:"warehouse"`
	ProductionLocation string   `yaml:"production_location"`
	StorageLocation    string   `yaml:"storage_location"`
	Silo               bool     `yaml:"silo"`
	Feeds              []string `yaml:"feeds"`
	CloseTime          string   `yaml:"close_time"`
}

// Specie is a specie entry with its breeds.
type Specie struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Male               bool     `yaml:"male"`
	Female             bool     `yaml:"female"`
	Individual         bool     `yaml:"individual"`
	Group              bool     `yaml:"group"`
	MaleProduct        string   `yaml:"male_product"`
	FemaleProduct      string   `yaml:"female_product"`
	IndividualProduct  string   `yaml:"individual_product"`
	GroupProduct       string   `yaml:"group_product"`
	SemenProduct       string   `yaml:"semen_product"`
	RemovedLocation    string   `yaml:"removed_location"`
	FosterLocation     string   `yaml:"foster_location"`
	LostFoundLocation  string   `yaml:"lost_found_location"`
	FeedLostFound      string   `yaml:"feed_lost_found_location"`
	ProducedAnimalType string   `yaml:"produced_animal_type"`
	Reclassification   []string `yaml:"reclassification_products"`
	Breeds             []Breed  `yaml:"breeds"`
}

// Breed is nested under its specie.
type Breed struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// FarmLine enables animal types of a specie on a farm.
type FarmLine struct {
	ID                 string `yaml:"id"`
	Specie             string `yaml:"specie"`
	Farm               string `yaml:"farm"`
	Male               bool   `yaml:"male"`
	Female             bool   `yaml:"female"`
	Individual         bool   `yaml:"individual"`
	Group              bool   `yaml:"group"`
	MaleSequence       string `yaml:"male_sequence"`
	FemaleSequence     string `yaml:"female_sequence"`
	IndividualSequence string `yaml:"individual_sequence"`
	GroupSequence      string `yaml:"group_sequence"`
	SemenLotSequence   string `yaml:"semen_lot_sequence"`
	DoseLotSequence    string `yaml:"dose_lot_sequence"`
	EventOrderSequence string `yaml:"event_order_sequence"`
}

// BOM is a bill of materials entry.
type BOM struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	OutputProduct  string    `yaml:"output_product"`
	OutputUoM      string    `yaml:"output_uom"`
	OutputQuantity string    `yaml:"output_quantity"`
	Inputs         []BOMLine `yaml:"inputs"`
}

// BOMLine is one input of a BOM entry.
type BOMLine struct {
	Product  string `yaml:"product"`
	UoM      string `yaml:"uom"`
	Quantity string `yaml:"quantity"`
}

// LoadFile parses the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse decodes a catalog document. Unknown keys are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cat Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks that every entry has an id, ids are unique per section
// and decimal fields parse.
func (c *Catalog) Validate() error {
	var errs []error
	check := func(section string, ids []string) {
		seen := make(map[string]struct{}, len(ids))
		for i, id := range ids {
			if id == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: missing id", section, i))
				continue
			}
			if _, dup := seen[id]; dup {
				errs = append(errs, fmt.Errorf("%s: duplicate id %s", section, id))
			}
			seen[id] = struct{}{}
		}
	}
	number := func(where, value string, optional bool) {
		if value == "" && optional {
			return
		}
		if _, err := decimal.NewFromString(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid decimal %q", where, value))
		}
	}

	check("uoms", idsOf(c.UoMs, func(u UoM) string { return u.ID }))
	check("products", idsOf(c.Products, func(p Product) string { return p.ID }))
	check("sequences", idsOf(c.Sequences, func(s Sequence) string { return s.ID }))
	check("locations", idsOf(c.Locations, func(l Location) string { return l.ID }))
	check("species", idsOf(c.Species, func(s Specie) string { return s.ID }))
	check("farm_lines", idsOf(c.FarmLines, func(f FarmLine) string { return f.ID }))
	check("boms", idsOf(c.BOMs, func(b BOM) string { return b.ID }))
	var breeds []string
	for _, sp := range c.Species {
		for _, b := range sp.Breeds {
			breeds = append(breeds, b.ID)
		}
	}
	check("breeds", breeds)

	for _, u := range c.UoMs {
		number("uom "+u.ID+" factor", u.Factor, false)
	}
	for _, p := range c.Products {
		number("product "+p.ID+" cost_price", p.CostPrice, true)
		number("product "+p.ID+" farrowing_price", p.FarrowingPrice, true)
	}
	for _, b := range c.BOMs {
		number("bom "+b.ID+" output_quantity", b.OutputQuantity, false)
		for _, in := range b.Inputs {
			number("bom "+b.ID+" input "+in.Product, in.Quantity, false)
		}
	}
	return errors.Join(errs...)
}

func idsOf[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = id(item)
	}
	return out
}

func dec(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(value)
}
