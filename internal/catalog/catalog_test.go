package catalog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"herdcore/internal/core"
	"herdcore/pkg/domain"
)

func TestLoadFileAndSeed(t *testing.T) {
	cat, err := LoadFile(filepath.Join("testdata", "farm.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.Locations) != 9 || len(cat.Species[0].Breeds) != 2 {
		t.Fatalf("unexpected catalog shape: %d locations", len(cat.Locations))
	}

	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	summary, err := Seed(ctx, svc, cat, nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if summary.Created != 25 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	err = svc.Store().View(ctx, func(v domain.TransactionView) error {
		farm, ok := v.Locations().Get("farm1")
		if !ok || farm.ProductionLocationID != "farm1-prod" || farm.StorageLocationID != "farm1-stock" {
			t.Fatalf("warehouse not linked: %+v", farm)
		}
		silo, _ := v.Locations().Get("silo-1")
		if !silo.Silo || len(silo.LocationsToFed) != 1 || silo.LocationsToFed[0] != "pen-a" {
			t.Fatalf("silo not linked: %+v", silo)
		}
		uom, _ := v.UoMs().Get("kg")
		if uom.Category != domain.UoMWeight || uom.Digits != 3 {
			t.Fatalf("unexpected uom %+v", uom)
		}
		bom, _ := v.BOMs().Get("dose-bom")
		if !bom.OutputQuantity.Equal(dec("10")) || len(bom.Inputs) != 1 {
			t.Fatalf("unexpected bom %+v", bom)
		}
		line, _ := v.FarmLines().Get("farm1-pig")
		if !line.Has(domain.AnimalFemale) || line.EventOrderSequenceID != "seq-orders" {
			t.Fatalf("unexpected farm line %+v", line)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	again, err := Seed(ctx, svc, cat, nil)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if again.Created != 0 || again.Skipped != 25 {
		t.Fatalf("expected reseed to skip everything, got %+v", again)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "uoms:\n  - {id: kg, name: kg, category: weight, factor: \"1\", colour: red}\n",
		"missing id":    "products:\n  - {code: X, name: X, uom: kg}\n",
		"duplicate id":  "sequences:\n  - {id: s, name: A}\n  - {id: s, name: B}\n",
		"bad decimal":   "uoms:\n  - {id: kg, name: kg, category: weight, factor: heavy}\n",
		"bad bom input": "boms:\n  - {id: b, name: B, output_product: p, output_uom: u, output_quantity: \"1\", inputs: [{product: x, uom: u, quantity: \"\"}]}\n",
	}
	for name, doc := range cases {
		if _, err := Parse(strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cat, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if len(cat.UoMs) != 0 {
		t.Fatalf("expected empty catalog")
	}
}

func TestSeedStopsOnServiceError(t *testing.T) {
	cat := &Catalog{Products: []Product{{ID: "p", Code: "P", Name: "P", UoM: "missing"}}}
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	if _, err := Seed(context.Background(), svc, cat, nil); err == nil || !strings.Contains(err.Error(), "seed product p") {
		t.Fatalf("expected wrapped product error, got %v", err)
	}
}
