package core

import "herdcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	AnimalType         = domain.AnimalType
	Severity           = domain.Severity
	Base               = domain.Base
	UoM                = domain.UoM
	Product            = domain.Product
	Location           = domain.Location
	Sequence           = domain.Sequence
	Specie             = domain.Specie
	Breed              = domain.Breed
	FarmLine           = domain.FarmLine
	BOM                = domain.BOM
	Lot                = domain.Lot
	Move               = domain.Move
	Production         = domain.Production
	QualityTest        = domain.QualityTest
	Animal             = domain.Animal
	AnimalGroup        = domain.AnimalGroup
	WeightRecord       = domain.WeightRecord
	FemaleCycle        = domain.FemaleCycle
	Event              = domain.Event
	EventKind          = domain.EventKind
	EventState         = domain.EventState
	Dose               = domain.Dose
	FeedInventory      = domain.FeedInventory
	EventOrder         = domain.EventOrder
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
