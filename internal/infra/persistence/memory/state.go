package memory

import "herdcore/pkg/domain"

type memoryState struct {
	uoms            map[string]domain.UoM
	products        map[string]domain.Product
	locations       map[string]domain.Location
	sequences       map[string]domain.Sequence
	species         map[string]domain.Specie
	breeds          map[string]domain.Breed
	farmLines       map[string]domain.FarmLine
	boms            map[string]domain.BOM
	lots            map[string]domain.Lot
	moves           map[string]domain.Move
	productions     map[string]domain.Production
	qualityTests    map[string]domain.QualityTest
	animals         map[string]domain.Animal
	groups          map[string]domain.AnimalGroup
	weights         map[string]domain.WeightRecord
	cycles          map[string]domain.FemaleCycle
	events          map[string]domain.Event
	doses           map[string]domain.Dose
	feedInventories map[string]domain.FeedInventory
	eventOrders     map[string]domain.EventOrder
}

// Snapshot captures a point-in-time clone of the store state. Each field is a
// persistence bucket.
type Snapshot struct {
	UoMs            map[string]domain.UoM           `json:"uoms"`
	Products        map[string]domain.Product       `json:"products"`
	Locations       map[string]domain.Location      `json:"locations"`
	Sequences       map[string]domain.Sequence      `json:"sequences"`
	Species         map[string]domain.Specie        `json:"species"`
	Breeds          map[string]domain.Breed         `json:"breeds"`
	FarmLines       map[string]domain.FarmLine      `json:"farm_lines"`
	BOMs            map[string]domain.BOM           `json:"boms"`
	Lots            map[string]domain.Lot           `json:"lots"`
	Moves           map[string]domain.Move          `json:"moves"`
	Productions     map[string]domain.Production    `json:"productions"`
	QualityTests    map[string]domain.QualityTest   `json:"quality_tests"`
	Animals         map[string]domain.Animal        `json:"animals"`
	Groups          map[string]domain.AnimalGroup   `json:"groups"`
	Weights         map[string]domain.WeightRecord  `json:"weights"`
	Cycles          map[string]domain.FemaleCycle   `json:"cycles"`
	Events          map[string]domain.Event         `json:"events"`
	Doses           map[string]domain.Dose          `json:"doses"`
	FeedInventories map[string]domain.FeedInventory `json:"feed_inventories"`
	EventOrders     map[string]domain.EventOrder    `json:"event_orders"`
}

// Buckets maps bucket names to pointers at the snapshot maps so durable
// stores can marshal and unmarshal them generically.
func (s *Snapshot) Buckets() map[string]any {
	return map[string]any{
		"uoms":             &s.UoMs,
		"products":         &s.Products,
		"locations":        &s.Locations,
		"sequences":        &s.Sequences,
		"species":          &s.Species,
		"breeds":           &s.Breeds,
		"farm_lines":       &s.FarmLines,
		"boms":             &s.BOMs,
		"lots":             &s.Lots,
		"moves":            &s.Moves,
		"productions":      &s.Productions,
		"quality_tests":    &s.QualityTests,
		"animals":          &s.Animals,
		"groups":           &s.Groups,
		"weights":          &s.Weights,
		"cycles":           &s.Cycles,
		"events":           &s.Events,
		"doses":            &s.Doses,
		"feed_inventories": &s.FeedInventories,
		"event_orders":     &s.EventOrders,
	}
}

func newMemoryState() memoryState {
	return memoryState{
		uoms:            make(map[string]domain.UoM),
		products:        make(map[string]domain.Product),
		locations:       make(map[string]domain.Location),
		sequences:       make(map[string]domain.Sequence),
		species:         make(map[string]domain.Specie),
		breeds:          make(map[string]domain.Breed),
		farmLines:       make(map[string]domain.FarmLine),
		boms:            make(map[string]domain.BOM),
		lots:            make(map[string]domain.Lot),
		moves:           make(map[string]domain.Move),
		productions:     make(map[string]domain.Production),
		qualityTests:    make(map[string]domain.QualityTest),
		animals:         make(map[string]domain.Animal),
		groups:          make(map[string]domain.AnimalGroup),
		weights:         make(map[string]domain.WeightRecord),
		cycles:          make(map[string]domain.FemaleCycle),
		events:          make(map[string]domain.Event),
		doses:           make(map[string]domain.Dose),
		feedInventories: make(map[string]domain.FeedInventory),
		eventOrders:     make(map[string]domain.EventOrder),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		uoms:            cloneRows[domain.UoM, *domain.UoM](s.uoms),
		products:        cloneRows[domain.Product, *domain.Product](s.products),
		locations:       cloneRows[domain.Location, *domain.Location](s.locations),
		sequences:       cloneRows[domain.Sequence, *domain.Sequence](s.sequences),
		species:         cloneRows[domain.Specie, *domain.Specie](s.species),
		breeds:          cloneRows[domain.Breed, *domain.Breed](s.breeds),
		farmLines:       cloneRows[domain.FarmLine, *domain.FarmLine](s.farmLines),
		boms:            cloneRows[domain.BOM, *domain.BOM](s.boms),
		lots:            cloneRows[domain.Lot, *domain.Lot](s.lots),
		moves:           cloneRows[domain.Move, *domain.Move](s.moves),
		productions:     cloneRows[domain.Production, *domain.Production](s.productions),
		qualityTests:    cloneRows[domain.QualityTest, *domain.QualityTest](s.qualityTests),
		animals:         cloneRows[domain.Animal, *domain.Animal](s.animals),
		groups:          cloneRows[domain.AnimalGroup, *domain.AnimalGroup](s.groups),
		weights:         cloneRows[domain.WeightRecord, *domain.WeightRecord](s.weights),
		cycles:          cloneRows[domain.FemaleCycle, *domain.FemaleCycle](s.cycles),
		events:          cloneRows[domain.Event, *domain.Event](s.events),
		doses:           cloneRows[domain.Dose, *domain.Dose](s.doses),
		feedInventories: cloneRows[domain.FeedInventory, *domain.FeedInventory](s.feedInventories),
		eventOrders:     cloneRows[domain.EventOrder, *domain.EventOrder](s.eventOrders),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		UoMs:            c.uoms,
		Products:        c.products,
		Locations:       c.locations,
		Sequences:       c.sequences,
		Species:         c.species,
		Breeds:          c.breeds,
		FarmLines:       c.farmLines,
		BOMs:            c.boms,
		Lots:            c.lots,
		Moves:           c.moves,
		Productions:     c.productions,
		QualityTests:    c.qualityTests,
		Animals:         c.animals,
		Groups:          c.groups,
		Weights:         c.weights,
		Cycles:          c.cycles,
		Events:          c.events,
		Doses:           c.doses,
		FeedInventories: c.feedInventories,
		EventOrders:     c.eventOrders,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		uoms:            s.UoMs,
		products:        s.Products,
		locations:       s.Locations,
		sequences:       s.Sequences,
		species:         s.Species,
		breeds:          s.Breeds,
		farmLines:       s.FarmLines,
		boms:            s.BOMs,
		lots:            s.Lots,
		moves:           s.Moves,
		productions:     s.Productions,
		qualityTests:    s.QualityTests,
		animals:         s.Animals,
		groups:          s.Groups,
		weights:         s.Weights,
		cycles:          s.Cycles,
		events:          s.Events,
		doses:           s.Doses,
		feedInventories: s.FeedInventories,
		eventOrders:     s.EventOrders,
	}
	fresh := newMemoryState()
	if state.uoms == nil {
		state.uoms = fresh.uoms
	}
	if state.products == nil {
		state.products = fresh.products
	}
	if state.locations == nil {
		state.locations = fresh.locations
	}
	if state.sequences == nil {
		state.sequences = fresh.sequences
	}
	if state.species == nil {
		state.species = fresh.species
	}
	if state.breeds == nil {
		state.breeds = fresh.breeds
	}
	if state.farmLines == nil {
		state.farmLines = fresh.farmLines
	}
	if state.boms == nil {
		state.boms = fresh.boms
	}
	if state.lots == nil {
		state.lots = fresh.lots
	}
	if state.moves == nil {
		state.moves = fresh.moves
	}
	if state.productions == nil {
		state.productions = fresh.productions
	}
	if state.qualityTests == nil {
		state.qualityTests = fresh.qualityTests
	}
	if state.animals == nil {
		state.animals = fresh.animals
	}
	if state.groups == nil {
		state.groups = fresh.groups
	}
	if state.weights == nil {
		state.weights = fresh.weights
	}
	if state.cycles == nil {
		state.cycles = fresh.cycles
	}
	if state.events == nil {
		state.events = fresh.events
	}
	if state.doses == nil {
		state.doses = fresh.doses
	}
	if state.feedInventories == nil {
		state.feedInventories = fresh.feedInventories
	}
	if state.eventOrders == nil {
		state.eventOrders = fresh.eventOrders
	}
	return state.clone()
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

func (v transactionView) UoMs() domain.ReadTable[domain.UoM] {
	return newTable[domain.UoM, *domain.UoM](domain.EntityUoM, v.state.uoms, nil)
}

func (v transactionView) Products() domain.ReadTable[domain.Product] {
	return newTable[domain.Product, *domain.Product](domain.EntityProduct, v.state.products, nil)
}

func (v transactionView) Locations() domain.ReadTable[domain.Location] {
	return newTable[domain.Location, *domain.Location](domain.EntityLocation, v.state.locations, nil)
}

func (v transactionView) Sequences() domain.ReadTable[domain.Sequence] {
	return newTable[domain.Sequence, *domain.Sequence](domain.EntitySequence, v.state.sequences, nil)
}

func (v transactionView) Species() domain.ReadTable[domain.Specie] {
	return newTable[domain.Specie, *domain.Specie](domain.EntitySpecie, v.state.species, nil)
}

func (v transactionView) Breeds() domain.ReadTable[domain.Breed] {
	return newTable[domain.Breed, *domain.Breed](domain.EntityBreed, v.state.breeds, nil)
}

func (v transactionView) FarmLines() domain.ReadTable[domain.FarmLine] {
	return newTable[domain.FarmLine, *domain.FarmLine](domain.EntityFarmLine, v.state.farmLines, nil)
}

func (v transactionView) BOMs() domain.ReadTable[domain.BOM] {
	return newTable[domain.BOM, *domain.BOM](domain.EntityBOM, v.state.boms, nil)
}

func (v transactionView) Lots() domain.ReadTable[domain.Lot] {
	return newTable[domain.Lot, *domain.Lot](domain.EntityLot, v.state.lots, nil)
}

func (v transactionView) Moves() domain.ReadTable[domain.Move] {
	return newTable[domain.Move, *domain.Move](domain.EntityMove, v.state.moves, nil)
}

func (v transactionView) Productions() domain.ReadTable[domain.Production] {
	return newTable[domain.Production, *domain.Production](domain.EntityProduction, v.state.productions, nil)
}

func (v transactionView) QualityTests() domain.ReadTable[domain.QualityTest] {
	return newTable[domain.QualityTest, *domain.QualityTest](domain.EntityQualityTest, v.state.qualityTests, nil)
}

func (v transactionView) Animals() domain.ReadTable[domain.Animal] {
	return newTable[domain.Animal, *domain.Animal](domain.EntityAnimal, v.state.animals, nil)
}

func (v transactionView) Groups() domain.ReadTable[domain.AnimalGroup] {
	return newTable[domain.AnimalGroup, *domain.AnimalGroup](domain.EntityGroup, v.state.groups, nil)
}

func (v transactionView) Weights() domain.ReadTable[domain.WeightRecord] {
	return newTable[domain.WeightRecord, *domain.WeightRecord](domain.EntityWeight, v.state.weights, nil)
}

func (v transactionView) Cycles() domain.ReadTable[domain.FemaleCycle] {
	return newTable[domain.FemaleCycle, *domain.FemaleCycle](domain.EntityCycle, v.state.cycles, nil)
}

func (v transactionView) Events() domain.ReadTable[domain.Event] {
	return newTable[domain.Event, *domain.Event](domain.EntityEvent, v.state.events, nil)
}

func (v transactionView) Doses() domain.ReadTable[domain.Dose] {
	return newTable[domain.Dose, *domain.Dose](domain.EntityDose, v.state.doses, nil)
}

func (v transactionView) FeedInventories() domain.ReadTable[domain.FeedInventory] {
	return newTable[domain.FeedInventory, *domain.FeedInventory](domain.EntityFeedInventory, v.state.feedInventories, nil)
}

func (v transactionView) EventOrders() domain.ReadTable[domain.EventOrder] {
	return newTable[domain.EventOrder, *domain.EventOrder](domain.EntityEventOrder, v.state.eventOrders, nil)
}

func (tx *transaction) UoMs() domain.Table[domain.UoM] {
	return newTable[domain.UoM, *domain.UoM](domain.EntityUoM, tx.state.uoms, tx)
}

func (tx *transaction) Products() domain.Table[domain.Product] {
	return newTable[domain.Product, *domain.Product](domain.EntityProduct, tx.state.products, tx)
}

func (tx *transaction) Locations() domain.Table[domain.Location] {
	return newTable[domain.Location, *domain.Location](domain.EntityLocation, tx.state.locations, tx)
}

func (tx *transaction) Sequences() domain.Table[domain.Sequence] {
	return newTable[domain.Sequence, *domain.Sequence](domain.EntitySequence, tx.state.sequences, tx)
}

func (tx *transaction) Species() domain.Table[domain.Specie] {
	return newTable[domain.Specie, *domain.Specie](domain.EntitySpecie, tx.state.species, tx)
}

func (tx *transaction) Breeds() domain.Table[domain.Breed] {
	return newTable[domain.Breed, *domain.Breed](domain.EntityBreed, tx.state.breeds, tx)
}

func (tx *transaction) FarmLines() domain.Table[domain.FarmLine] {
	return newTable[domain.FarmLine, *domain.FarmLine](domain.EntityFarmLine, tx.state.farmLines, tx)
}

func (tx *transaction) BOMs() domain.Table[domain.BOM] {
	return newTable[domain.BOM, *domain.BOM](domain.EntityBOM, tx.state.boms, tx)
}

func (tx *transaction) Lots() domain.Table[domain.Lot] {
	return newTable[domain.Lot, *domain.Lot](domain.EntityLot, tx.state.lots, tx)
}

func (tx *transaction) Moves() domain.Table[domain.Move] {
	return newTable[domain.Move, *domain.Move](domain.EntityMove, tx.state.moves, tx)
}

func (tx *transaction) Productions() domain.Table[domain.Production] {
	return newTable[domain.Production, *domain.Production](domain.EntityProduction, tx.state.productions, tx)
}

func (tx *transaction) QualityTests() domain.Table[domain.QualityTest] {
	return newTable[domain.QualityTest, *domain.QualityTest](domain.EntityQualityTest, tx.state.qualityTests, tx)
}

func (tx *transaction) Animals() domain.Table[domain.Animal] {
	return newTable[domain.Animal, *domain.Animal](domain.EntityAnimal, tx.state.animals, tx)
}

func (tx *transaction) Groups() domain.Table[domain.AnimalGroup] {
	return newTable[domain.AnimalGroup, *domain.AnimalGroup](domain.EntityGroup, tx.state.groups, tx)
}

func (tx *transaction) Weights() domain.Table[domain.WeightRecord] {
	return newTable[domain.WeightRecord, *domain.WeightRecord](domain.EntityWeight, tx.state.weights, tx)
}

func (tx *transaction) Cycles() domain.Table[domain.FemaleCycle] {
	return newTable[domain.FemaleCycle, *domain.FemaleCycle](domain.EntityCycle, tx.state.cycles, tx)
}

func (tx *transaction) Events() domain.Table[domain.Event] {
	return newTable[domain.Event, *domain.Event](domain.EntityEvent, tx.state.events, tx)
}

func (tx *transaction) Doses() domain.Table[domain.Dose] {
	return newTable[domain.Dose, *domain.Dose](domain.EntityDose, tx.state.doses, tx)
}

func (tx *transaction) FeedInventories() domain.Table[domain.FeedInventory] {
	return newTable[domain.FeedInventory, *domain.FeedInventory](domain.EntityFeedInventory, tx.state.feedInventories, tx)
}

func (tx *transaction) EventOrders() domain.Table[domain.EventOrder] {
	return newTable[domain.EventOrder, *domain.EventOrder](domain.EntityEventOrder, tx.state.eventOrders, tx)
}
