// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by herdcore.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	EntityUoM           EntityType = "uom"
	EntityProduct       EntityType = "product"
	EntityLocation      EntityType = "location"
	EntitySequence      EntityType = "sequence"
	EntitySpecie        EntityType = "specie"
	EntityBreed         EntityType = "breed"
	EntityFarmLine      EntityType = "farm_line"
	EntityBOM           EntityType = "bom"
	EntityLot           EntityType = "lot"
	EntityMove          EntityType = "move"
	EntityProduction    EntityType = "production"
	EntityQualityTest   EntityType = "quality_test"
	EntityAnimal        EntityType = "animal"
	EntityGroup         EntityType = "animal_group"
	EntityWeight        EntityType = "weight"
	EntityCycle         EntityType = "female_cycle"
	EntityEvent         EntityType = "event"
	EntityDose          EntityType = "dose"
	EntityFeedInventory EntityType = "feed_inventory"
	EntityEventOrder    EntityType = "event_order"
)

// AnimalType is the kind of subject an event or lot refers to.
type AnimalType string

// Animal types. Male, female and individual are single animals; group is a
// headcount tracked by lot quantity.
const (
	AnimalMale       AnimalType = "male"
	AnimalFemale     AnimalType = "female"
	AnimalIndividual AnimalType = "individual"
	AnimalGroupType  AnimalType = "group"
)

// IsIndividual reports whether the type represents exactly one animal.
func (t AnimalType) IsIndividual() bool {
	return t == AnimalMale || t == AnimalFemale || t == AnimalIndividual
}

// Valid reports whether t is a known animal type.
func (t AnimalType) Valid() bool {
	return t.IsIndividual() || t == AnimalGroupType
}

// Severity captures rule violation levels.
type Severity string

// Rule severities. Block aborts the transaction; warn and log are reported.
const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
	SeverityLog   Severity = "log"
)

// Base contains common fields for all entities.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meta exposes the embedded base so generic stores can stamp ids and times.
func (b *Base) Meta() *Base { return b }

// UoMCategory groups units that can be converted into each other.
type UoMCategory string

// Unit categories.
const (
	UoMWeight UoMCategory = "weight"
	UoMVolume UoMCategory = "volume"
	UoMUnit   UoMCategory = "unit"
)

// UoM is a unit of measure. Factor is the number of category reference units
// held by one of this unit.
type UoM struct {
	Base
	Name     string          `json:"name"`
	Category UoMCategory     `json:"category"`
	Factor   decimal.Decimal `json:"factor"`
	Digits   int32           `json:"digits"`
}

// Product is a stockable item: animal classes, feed, semen and doses.
type Product struct {
	Base
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	DefaultUoMID   string          `json:"default_uom_id"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	FarrowingPrice decimal.Decimal `json:"farrowing_price"`
	ExpirationDays int             `json:"expiration_days,omitempty"`
}

// LocationType distinguishes farms from physical and virtual stock places.
type LocationType string

// Location types. Warehouse is a farm; storage holds stock; production is
// the virtual consumption place; lost_found absorbs removals and losses;
// supplier and customer are external.
const (
	LocationWarehouse  LocationType = "warehouse"
	LocationStorage    LocationType = "storage"
	LocationProduction LocationType = "production"
	LocationLostFound  LocationType = "lost_found"
	LocationSupplier   LocationType = "supplier"
	LocationCustomer   LocationType = "customer"
)

// Location is a node in the stock graph. Storage locations belong to a
// warehouse through WarehouseID.
type Location struct {
	Base
	Code                 string       `json:"code"`
	Name                 string       `json:"name"`
	Type                 LocationType `json:"type"`
	WarehouseID          string       `json:"warehouse_id,omitempty"`
	ProductionLocationID string       `json:"production_location_id,omitempty"`
	StorageLocationID    string       `json:"storage_location_id,omitempty"`
	Silo                 bool         `json:"silo,omitempty"`
	LocationsToFed       []string     `json:"locations_to_fed,omitempty"`
	// CloseTime is the silo daily closing time as "HH:MM" in UTC.
	CloseTime            string       `json:"close_time,omitempty"`
}

// StockBearing reports whether quantities at the location count as held stock.
func (l Location) StockBearing() bool {
	return l.Type == LocationWarehouse || l.Type == LocationStorage || l.Type == LocationLostFound
}

// Sequence hands out formatted numbers.
type Sequence struct {
	Base
	Name       string `json:"name"`
	Prefix     string `json:"prefix"`
	Padding    int    `json:"padding"`
	NextNumber int    `json:"next_number"`
}

// Specie is the per-species configuration.
type Specie struct {
	Base
	Name                       string     `json:"name"`
	MaleEnabled                bool       `json:"male_enabled"`
	FemaleEnabled              bool       `json:"female_enabled"`
	IndividualEnabled          bool       `json:"individual_enabled"`
	GroupEnabled               bool       `json:"group_enabled"`
	MaleProductID              string     `json:"male_product_id,omitempty"`
	FemaleProductID            string     `json:"female_product_id,omitempty"`
	IndividualProductID        string     `json:"individual_product_id,omitempty"`
	GroupProductID             string     `json:"group_product_id,omitempty"`
	SemenProductID             string     `json:"semen_product_id,omitempty"`
	RemovedLocationID          string     `json:"removed_location_id,omitempty"`
	FosterLocationID           string     `json:"foster_location_id,omitempty"`
	LostFoundLocationID        string     `json:"lost_found_location_id,omitempty"`
	FeedLostFoundLocationID    string     `json:"feed_lost_found_location_id,omitempty"`
	ProducedAnimalType         AnimalType `json:"produced_animal_type,omitempty"`
	ReclassificationProductIDs []string   `json:"reclassification_product_ids,omitempty"`
}

// Enabled reports whether the specie manages animals of type t.
func (s Specie) Enabled(t AnimalType) bool {
	switch t {
	case AnimalMale:
		return s.MaleEnabled
	case AnimalFemale:
		return s.FemaleEnabled
	case AnimalIndividual:
		return s.IndividualEnabled
	case AnimalGroupType:
		return s.GroupEnabled
	}
	return false
}

// ProductFor returns the product configured for animal type t.
func (s Specie) ProductFor(t AnimalType) string {
	switch t {
	case AnimalMale:
		return s.MaleProductID
	case AnimalFemale:
		return s.FemaleProductID
	case AnimalIndividual:
		return s.IndividualProductID
	case AnimalGroupType:
		return s.GroupProductID
	}
	return ""
}

// AnimalProducts lists the role products that identify animal lots.
func (s Specie) AnimalProducts() []string {
	var out []string
	for _, id := range []string{s.MaleProductID, s.FemaleProductID, s.IndividualProductID, s.GroupProductID} {
		if id != "" {
			out = append(out, id)
		}
	}
	out = append(out, s.ReclassificationProductIDs...)
	return out
}

// Breed belongs to a specie.
type Breed struct {
	Base
	SpecieID string `json:"specie_id"`
	Name     string `json:"name"`
}

// FarmLine states which animal types a farm manages for a specie and the
// sequences that number them.
type FarmLine struct {
	Base
	SpecieID             string `json:"specie_id"`
	FarmID               string `json:"farm_id"`
	HasMale              bool   `json:"has_male"`
	HasFemale            bool   `json:"has_female"`
	HasIndividual        bool   `json:"has_individual"`
	HasGroup             bool   `json:"has_group"`
	MaleSequenceID       string `json:"male_sequence_id,omitempty"`
	FemaleSequenceID     string `json:"female_sequence_id,omitempty"`
	IndividualSequenceID string `json:"individual_sequence_id,omitempty"`
	GroupSequenceID      string `json:"group_sequence_id,omitempty"`
	SemenLotSequenceID   string `json:"semen_lot_sequence_id,omitempty"`
	DoseLotSequenceID    string `json:"dose_lot_sequence_id,omitempty"`
	EventOrderSequenceID string `json:"event_order_sequence_id,omitempty"`
}

// Has reports whether the line manages animal type t.
func (f FarmLine) Has(t AnimalType) bool {
	switch t {
	case AnimalMale:
		return f.HasMale
	case AnimalFemale:
		return f.HasFemale
	case AnimalIndividual:
		return f.HasIndividual
	case AnimalGroupType:
		return f.HasGroup
	}
	return false
}

// SequenceFor returns the numbering sequence for animal type t.
func (f FarmLine) SequenceFor(t AnimalType) string {
	switch t {
	case AnimalMale:
		return f.MaleSequenceID
	case AnimalFemale:
		return f.FemaleSequenceID
	case AnimalIndividual:
		return f.IndividualSequenceID
	case AnimalGroupType:
		return f.GroupSequenceID
	}
	return ""
}

// BOMLine is one input of a bill of materials.
type BOMLine struct {
	ProductID string          `json:"product_id"`
	UoMID     string          `json:"uom_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// BOM describes the inputs consumed to produce OutputQuantity of a product.
type BOM struct {
	Base
	Name            string          `json:"name"`
	OutputProductID string          `json:"output_product_id"`
	OutputUoMID     string          `json:"output_uom_id"`
	OutputQuantity  decimal.Decimal `json:"output_quantity"`
	Inputs          []BOMLine       `json:"inputs"`
}

// LotCostLine adds a per-unit cost component to a lot.
type LotCostLine struct {
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Origin    Origin          `json:"origin"`
}

// Lot is a traceable batch of one product. Animal lots are owned by exactly
// one animal or group.
type Lot struct {
	Base
	Number     string        `json:"number"`
	ProductID  string        `json:"product_id"`
	AnimalType AnimalType    `json:"animal_type,omitempty"`
	AnimalID   string        `json:"animal_id,omitempty"`
	GroupID    string        `json:"group_id,omitempty"`
	Expiration *time.Time    `json:"expiration,omitempty"`
	CostLines  []LotCostLine `json:"cost_lines,omitempty"`

	// SuccessorLotID is the lot that replaced this one on reclassification.
	SuccessorLotID string `json:"successor_lot_id,omitempty"`
}

// CostPrice is the sum of the lot cost lines.
func (l Lot) CostPrice() decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.CostLines {
		total = total.Add(line.UnitPrice)
	}
	return total
}

// OriginKind names the entity that caused a ledger record.
type OriginKind string

// Origin kinds referenced by moves, productions and cost lines.
const (
	OriginAnimal        OriginKind = "animal"
	OriginGroup         OriginKind = "animal_group"
	OriginEvent         OriginKind = "event"
	OriginProduction    OriginKind = "production"
	OriginFeedInventory OriginKind = "feed_inventory"
	OriginManual        OriginKind = "manual"
)

// Origin is a tagged reference to the record that caused a move.
type Origin struct {
	Kind OriginKind `json:"kind,omitempty"`
	ID   string     `json:"id,omitempty"`
}

// MoveState is the ledger state of a move.
type MoveState string

// Move states.
const (
	MoveDraft     MoveState = "draft"
	MoveAssigned  MoveState = "assigned"
	MoveDone      MoveState = "done"
	MoveCancelled MoveState = "cancelled"
)

// Move transfers a quantity of a product (optionally a lot) between two
// locations. Only done moves affect stock.
type Move struct {
	Base
	ProductID      string          `json:"product_id"`
	UoMID          string          `json:"uom_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	FromLocationID string          `json:"from_location_id"`
	ToLocationID   string          `json:"to_location_id"`
	LotID          string          `json:"lot_id,omitempty"`
	PlannedDate    time.Time       `json:"planned_date"`
	EffectiveDate  time.Time       `json:"effective_date"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	State          MoveState       `json:"state"`
	Origin         Origin          `json:"origin"`
	ProductionID   string          `json:"production_id,omitempty"`
}

// ProductionState is the state of a production order.
type ProductionState string

// Production states, in lifecycle order.
const (
	ProductionDraft    ProductionState = "draft"
	ProductionWaiting  ProductionState = "waiting"
	ProductionAssigned ProductionState = "assigned"
	ProductionRunning  ProductionState = "running"
	ProductionDone     ProductionState = "done"
)

// Production consumes input moves and emits output moves.
type Production struct {
	Base
	BOMID         string          `json:"bom_id,omitempty"`
	WarehouseID   string          `json:"warehouse_id"`
	LocationID    string          `json:"location_id"`
	ProductID     string          `json:"product_id"`
	UoMID         string          `json:"uom_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	EffectiveDate time.Time       `json:"effective_date"`
	State         ProductionState `json:"state"`
	Origin        Origin          `json:"origin"`
	InputMoveIDs  []string        `json:"input_move_ids,omitempty"`
	OutputMoveIDs []string        `json:"output_move_ids,omitempty"`
}

// QualityTestState follows draft, confirmed, then successful or failed.
type QualityTestState string

// Quality test states.
const (
	QualityTestDraft      QualityTestState = "draft"
	QualityTestConfirmed  QualityTestState = "confirmed"
	QualityTestSuccessful QualityTestState = "successful"
	QualityTestFailed     QualityTestState = "failed"
)

// QualityTestLine is a measured value with an accepted range.
type QualityTestLine struct {
	Name  string          `json:"name"`
	Min   decimal.Decimal `json:"min"`
	Max   decimal.Decimal `json:"max"`
	Value decimal.Decimal `json:"value"`
}

// Passed reports whether the measured value lies inside [Min, Max].
func (l QualityTestLine) Passed() bool {
	return l.Value.GreaterThanOrEqual(l.Min) && l.Value.LessThanOrEqual(l.Max)
}

// QualityTest gates semen extraction.
type QualityTest struct {
	Base
	Reference string            `json:"reference"`
	State     QualityTestState  `json:"state"`
	Lines     []QualityTestLine `json:"lines"`
}

// AnimalOrigin tells whether an animal was bought or born on a farm.
type AnimalOrigin string

// Animal origins.
const (
	OriginPurchased AnimalOrigin = "purchased"
	OriginRaised    AnimalOrigin = "raised"
)

// Sex of an individual animal.
type Sex string

// Sexes.
const (
	SexMale         Sex = "male"
	SexFemale       Sex = "female"
	SexUndetermined Sex = "undetermined"
)

// FemaleState is the reproductive status of a female.
type FemaleState string

// Female states.
const (
	FemaleProspective FemaleState = "prospective"
	FemaleUnmated     FemaleState = "unmated"
	FemaleMated       FemaleState = "mated"
	FemaleRemoved     FemaleState = "removed"
)

// Animal is a single male, female or individual.
type Animal struct {
	Base
	Type              AnimalType   `json:"type"`
	SpecieID          string       `json:"specie_id"`
	BreedID           string       `json:"breed_id,omitempty"`
	FarmID            string       `json:"farm_id"`
	LotID             string       `json:"lot_id"`
	Number            string       `json:"number"`
	Origin            AnimalOrigin `json:"origin"`
	ArrivalDate       time.Time    `json:"arrival_date"`
	InitialLocationID string       `json:"initial_location_id"`
	Birthdate         *time.Time   `json:"birthdate,omitempty"`
	RemovalDate       *time.Time   `json:"removal_date,omitempty"`
	RemovalReason     string       `json:"removal_reason,omitempty"`
	Sex               Sex          `json:"sex,omitempty"`
	Purpose           string       `json:"purpose,omitempty"`
	Active            bool         `json:"active"`
	LastExtraction    *time.Time   `json:"last_extraction,omitempty"`
	FemaleState       FemaleState  `json:"female_state,omitempty"`
	CurrentCycleID    string       `json:"current_cycle_id,omitempty"`
}

// AnimalGroup is a headcount of animals sharing one lot.
type AnimalGroup struct {
	Base
	SpecieID          string       `json:"specie_id"`
	BreedID           string       `json:"breed_id,omitempty"`
	FarmID            string       `json:"farm_id"`
	LotID             string       `json:"lot_id"`
	Number            string       `json:"number"`
	Origin            AnimalOrigin `json:"origin"`
	ArrivalDate       time.Time    `json:"arrival_date"`
	InitialLocationID string       `json:"initial_location_id"`
	InitialQuantity   int          `json:"initial_quantity"`
	RemovalDate       *time.Time   `json:"removal_date,omitempty"`
	Active            bool         `json:"active"`
}

// WeightRecord is a weighing of an animal or group.
type WeightRecord struct {
	Base
	AnimalID  string          `json:"animal_id,omitempty"`
	GroupID   string          `json:"group_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	UoMID     string          `json:"uom_id"`
	Weight    decimal.Decimal `json:"weight"`
	Quantity  int             `json:"quantity"`
	EventID   string          `json:"event_id,omitempty"`
}

// CycleState is the state of a reproductive cycle.
type CycleState string

// Cycle states.
const (
	CycleMated     CycleState = "mated"
	CyclePregnant  CycleState = "pregnant"
	CycleLactating CycleState = "lactating"
	CycleUnmated   CycleState = "unmated"
)

// FemaleCycle is one reproductive episode of a female.
type FemaleCycle struct {
	Base
	AnimalID             string     `json:"animal_id"`
	Sequence             int        `json:"sequence"`
	OrdinationDate       time.Time  `json:"ordination_date"`
	State                CycleState `json:"state"`
	InseminationEventIDs []string   `json:"insemination_event_ids,omitempty"`
	DiagnosisEventIDs    []string   `json:"diagnosis_event_ids,omitempty"`
	AbortEventID         string     `json:"abort_event_id,omitempty"`
	FarrowingEventID     string     `json:"farrowing_event_id,omitempty"`
	FosterEventIDs       []string   `json:"foster_event_ids,omitempty"`
	WeaningEventID       string     `json:"weaning_event_id,omitempty"`
}

// Closed reports whether the cycle ended in farrowing or abort.
func (c FemaleCycle) Closed() bool {
	return c.FarrowingEventID != "" || c.AbortEventID != ""
}

// Dose is one production line of a semen extraction.
type Dose struct {
	Base
	EventID      string `json:"event_id"`
	Sequence     int    `json:"sequence"`
	BOMID        string `json:"bom_id"`
	Quantity     int    `json:"quantity"`
	LotID        string `json:"lot_id,omitempty"`
	ProductionID string `json:"production_id,omitempty"`
}

// FeedInventoryKind separates real counts from provisional checks.
type FeedInventoryKind string

// Feed inventory kinds.
const (
	FeedInventoryReal        FeedInventoryKind = "real"
	FeedInventoryProvisional FeedInventoryKind = "provisional"
)

// FeedInventoryState is draft, validated or cancelled.
type FeedInventoryState string

// Feed inventory states.
const (
	FeedInventoryDraft     FeedInventoryState = "draft"
	FeedInventoryValidated FeedInventoryState = "validated"
	FeedInventoryCancelled FeedInventoryState = "cancelled"
)

// FeedInventoryLine reports consumption attributed to one destination.
type FeedInventoryLine struct {
	LocationID           string          `json:"location_id"`
	AnimalDays           int             `json:"animal_days"`
	ConsumedPerAnimalDay decimal.Decimal `json:"consumed_per_animal_day"`
	Consumed             decimal.Decimal `json:"consumed"`
}

// FeedInventory is a silo count.
type FeedInventory struct {
	Base
	Kind            FeedInventoryKind   `json:"kind"`
	SpecieID        string              `json:"specie_id"`
	SiloID          string              `json:"silo_id"`
	FeedProductID   string              `json:"feed_product_id"`
	DestinationIDs  []string            `json:"destination_ids,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
	UoMID           string              `json:"uom_id"`
	Quantity        decimal.Decimal     `json:"quantity"`
	State           FeedInventoryState  `json:"state"`
	PrevInventoryID string              `json:"prev_inventory_id,omitempty"`
	Lines           []FeedInventoryLine `json:"lines,omitempty"`
	FeedEventIDs    []string            `json:"feed_event_ids,omitempty"`
	MoveIDs         []string            `json:"move_ids,omitempty"`
	SupersededByID  string              `json:"superseded_by_id,omitempty"`
}

// EventOrder batches events of one kind for the same farm and specie.
type EventOrder struct {
	Base
	Number     string     `json:"number"`
	AnimalType AnimalType `json:"animal_type"`
	SpecieID   string     `json:"specie_id"`
	FarmID     string     `json:"farm_id"`
	EventKind  EventKind  `json:"event_kind"`
	Timestamp  time.Time  `json:"timestamp"`
	Employee   string     `json:"employee,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
// Before and After hold pointers to copies of the record.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
