package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies the payload carried by an Event.
type EventKind string

// Event kinds.
const (
	EventMove               EventKind = "move"
	EventTransformation     EventKind = "transformation"
	EventRemoval            EventKind = "removal"
	EventFeed               EventKind = "feed"
	EventMedication         EventKind = "medication"
	EventInsemination       EventKind = "insemination"
	EventPregnancyDiagnosis EventKind = "pregnancy_diagnosis"
	EventAbort              EventKind = "abort"
	EventFarrowing          EventKind = "farrowing"
	EventFoster             EventKind = "foster"
	EventWeaning            EventKind = "weaning"
	EventReclassification   EventKind = "reclassification"
	EventSemenExtraction    EventKind = "semen_extraction"
)

// EventState is the lifecycle state of an event.
type EventState string

// Event states.
const (
	EventDraft     EventState = "draft"
	EventValidated EventState = "validated"
	EventCancelled EventState = "cancelled"
)

// Event is a dated operational fact about one animal or group. Exactly one
// payload pointer matching Kind is set; medication uses the Feed payload.
type Event struct {
	Base
	Kind       EventKind  `json:"kind"`
	AnimalType AnimalType `json:"animal_type"`
	SpecieID   string     `json:"specie_id"`
	FarmID     string     `json:"farm_id"`
	AnimalID   string     `json:"animal_id,omitempty"`
	GroupID    string     `json:"group_id,omitempty"`
	// LocationID is where the subject stands at Timestamp.
	LocationID string     `json:"location_id"`
	Timestamp  time.Time  `json:"timestamp"`
	Employee   string     `json:"employee,omitempty"`
	State      EventState `json:"state"`
	OrderID    string     `json:"order_id,omitempty"`
	MoveIDs    []string   `json:"move_ids,omitempty"`

	Move             *MovePayload             `json:"move,omitempty"`
	Transformation   *TransformationPayload   `json:"transformation,omitempty"`
	Removal          *RemovalPayload          `json:"removal,omitempty"`
	Feed             *FeedPayload             `json:"feed,omitempty"`
	Insemination     *InseminationPayload     `json:"insemination,omitempty"`
	Diagnosis        *DiagnosisPayload        `json:"diagnosis,omitempty"`
	Abort            *AbortPayload            `json:"abort,omitempty"`
	Farrowing        *FarrowingPayload        `json:"farrowing,omitempty"`
	Foster           *FosterPayload           `json:"foster,omitempty"`
	Weaning          *WeaningPayload          `json:"weaning,omitempty"`
	Reclassification *ReclassificationPayload `json:"reclassification,omitempty"`
	SemenExtraction  *SemenExtractionPayload  `json:"semen_extraction,omitempty"`
}

// SubjectID returns the animal or group the event refers to.
func (e Event) SubjectID() string {
	if e.AnimalType == AnimalGroupType {
		return e.GroupID
	}
	return e.AnimalID
}

// HasPayload reports whether the payload matching Kind is present.
func (e Event) HasPayload() bool {
	switch e.Kind {
	case EventMove:
		return e.Move != nil
	case EventTransformation:
		return e.Transformation != nil
	case EventRemoval:
		return e.Removal != nil
	case EventFeed, EventMedication:
		return e.Feed != nil
	case EventInsemination:
		return e.Insemination != nil
	case EventPregnancyDiagnosis:
		return e.Diagnosis != nil
	case EventAbort:
		return e.Abort != nil
	case EventFarrowing:
		return e.Farrowing != nil
	case EventFoster:
		return e.Foster != nil
	case EventWeaning:
		return e.Weaning != nil
	case EventReclassification:
		return e.Reclassification != nil
	case EventSemenExtraction:
		return e.SemenExtraction != nil
	}
	return false
}

// MovePayload relocates the subject to ToLocationID.
type MovePayload struct {
	ToLocationID     string              `json:"to_location_id"`
	Quantity         int                 `json:"quantity"`
	UnitPrice        decimal.NullDecimal `json:"unit_price"`
	Weight           decimal.NullDecimal `json:"weight"`
	WeightUoMID      string              `json:"weight_uom_id,omitempty"`
	WeightRecordID   string              `json:"weight_record_id,omitempty"`
	GroupMoveEventID string              `json:"group_move_event_id,omitempty"`
}

// TransformationPayload converts the subject into another animal type.
type TransformationPayload struct {
	ToLocationID string     `json:"to_location_id"`
	ToAnimalType AnimalType `json:"to_animal_type"`
	// ToGroupID selects an existing destination group; empty creates one.
	ToGroupID    string     `json:"to_group_id,omitempty"`
	ToAnimalID   string     `json:"to_animal_id,omitempty"`
	Quantity     int        `json:"quantity"`
	OutMoveID    string     `json:"out_move_id,omitempty"`
	InMoveID     string     `json:"in_move_id,omitempty"`
}

// RemovalPayload takes the subject out of stock.
type RemovalPayload struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason,omitempty"`
}

// FeedPayload is shared by feed and medication events.
type FeedPayload struct {
	FeedLocationID  string          `json:"feed_location_id"`
	FeedProductID   string          `json:"feed_product_id"`
	FeedLotID       string          `json:"feed_lot_id,omitempty"`
	UoMID           string          `json:"uom_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	FeedInventoryID string          `json:"feed_inventory_id,omitempty"`
}

// InseminationPayload consumes one dose.
type InseminationPayload struct {
	DoseProductID string `json:"dose_product_id,omitempty"`
	DoseLotID     string `json:"dose_lot_id,omitempty"`
	CycleID       string `json:"cycle_id,omitempty"`
}

// DiagnosisResult is the outcome of a pregnancy diagnosis.
type DiagnosisResult string

// Diagnosis results.
const (
	DiagnosisNegative      DiagnosisResult = "negative"
	DiagnosisPositive      DiagnosisResult = "positive"
	DiagnosisNonConclusive DiagnosisResult = "nonconclusive"
	DiagnosisNotPregnant   DiagnosisResult = "not_pregnant"
)

// DiagnosisPayload records a pregnancy check.
type DiagnosisPayload struct {
	Result  DiagnosisResult `json:"result"`
	CycleID string          `json:"cycle_id,omitempty"`
}

// AbortPayload closes a pregnant cycle.
type AbortPayload struct {
	CycleID string `json:"cycle_id,omitempty"`
}

// FarrowingPayload records a birth.
type FarrowingPayload struct {
	Live              int      `json:"live"`
	Stillborn         int      `json:"stillborn"`
	Mummified         int      `json:"mummified"`
	ProducedGroupID   string   `json:"produced_group_id,omitempty"`
	ProducedAnimalIDs []string `json:"produced_animal_ids,omitempty"`
	CycleID           string   `json:"cycle_id,omitempty"`
}

// Dead is stillborn plus mummified.
func (p FarrowingPayload) Dead() int {
	return p.Stillborn + p.Mummified
}

// FosterPayload moves piglets between a lactating female's group and the
// specie foster location. Positive quantities arrive, negative leave.
type FosterPayload struct {
	Quantity     int    `json:"quantity"`
	PairFemaleID string `json:"pair_female_id,omitempty"`
	PairEventID  string `json:"pair_event_id,omitempty"`
	CycleID      string `json:"cycle_id,omitempty"`
}

// WeaningPayload separates the produced group from its mother.
type WeaningPayload struct {
	FemaleToLocationID    string `json:"female_to_location_id,omitempty"`
	WeanedToLocationID    string `json:"weaned_to_location_id,omitempty"`
	Quantity              int    `json:"quantity"`
	LastMinuteFostered    int    `json:"last_minute_fostered"`
	WeanedGroupID         string `json:"weaned_group_id,omitempty"`
	Casualties            int    `json:"casualties"`
	TransformationEventID string `json:"transformation_event_id,omitempty"`
	CycleID               string `json:"cycle_id,omitempty"`
}

// ReclassificationPayload changes the product class of the subject's lot.
type ReclassificationPayload struct {
	ReclassifiedProductID string `json:"reclassified_product_id"`
	NewLotID              string `json:"new_lot_id,omitempty"`
	ProductionID          string `json:"production_id,omitempty"`
}

// SemenExtractionPayload turns extracted semen into dose lots.
type SemenExtractionPayload struct {
	UntreatedSemenUoMID string          `json:"untreated_semen_uom_id"`
	UntreatedSemenQty   decimal.Decimal `json:"untreated_semen_qty"`
	FormulaUoMID        string          `json:"formula_uom_id"`
	// FormulaFactor converts untreated semen into formula units.
	FormulaFactor       decimal.Decimal `json:"formula_factor"`
	SemenQty            decimal.Decimal `json:"semen_qty"`
	DoseLocationID      string          `json:"dose_location_id"`
	DoseBOMID           string          `json:"dose_bom_id,omitempty"`
	TestRequired        bool            `json:"test_required"`
	QualityTestID       string          `json:"quality_test_id,omitempty"`
	SemenLotID          string          `json:"semen_lot_id,omitempty"`
}

// SemenCalculatedQty is the untreated quantity scaled by the formula.
func (p SemenExtractionPayload) SemenCalculatedQty() decimal.Decimal {
	return p.UntreatedSemenQty.Mul(p.FormulaFactor)
}
