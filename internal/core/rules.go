package core

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewAnimalLotLocationRule())
	engine.Register(NewCycleSequenceRule())
	engine.Register(NewCatalogUniquenessRule())
	engine.Register(NewSiloLotRefillRule())
	return engine
}
