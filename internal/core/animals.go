package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/pkg/domain"
)

// placement is the resolved configuration for putting new animals on a farm.
type placement struct {
	specie    Specie
	farm      Location
	line      FarmLine
	productID string
	from      string
}

// arrival overrides how a new animal or group enters the ledger.
type arrival struct {
	from     string
	costLine *domain.LotCostLine
	origin   domain.Origin
}

// place resolves farm line, product and source location for type t arriving
// at locationID.
func (t *txn) place(specieID, locationID string, typ AnimalType, origin domain.AnimalOrigin, from string) (placement, error) {
	var p placement
	sp, err := t.specie(specieID)
	if err != nil {
		return p, err
	}
	if !sp.Enabled(typ) {
		return p, domain.Errorf(domain.CodeInvalidConfiguration, "specie %s does not enable %s", sp.Name, typ)
	}
	loc, err := t.location(locationID)
	if err != nil {
		return p, err
	}
	if loc.Type != domain.LocationStorage {
		return p, domain.Errorf(domain.CodeInvalidAnimalDestination, "initial location %s is not a storage location", loc.Name)
	}
	farm, err := t.warehouse(locationID)
	if err != nil {
		return p, err
	}
	line, err := t.farmLine(sp.ID, farm.ID, typ)
	if err != nil {
		return p, err
	}
	productID := sp.ProductFor(typ)
	if productID == "" {
		return p, domain.Errorf(domain.CodeNoSpecieProduct, "specie %s has no %s product", sp.Name, typ)
	}
	if from == "" {
		switch origin {
		case domain.OriginRaised:
			if from, err = t.productionLocation(farm.ID); err != nil {
				return p, err
			}
		default:
			if from, err = t.supplierLocation(farm.ID); err != nil {
				return p, err
			}
		}
	}
	return placement{specie: sp, farm: farm, line: line, productID: productID, from: from}, nil
}

// supplierLocation returns the supplier location of a farm, falling back to a
// global supplier.
func (t *txn) supplierLocation(farmID string) (string, error) {
	global := ""
	for _, loc := range t.view.Locations().List() {
		if loc.Type != domain.LocationSupplier {
			continue
		}
		if loc.WarehouseID == farmID {
			return loc.ID, nil
		}
		if loc.WarehouseID == "" && global == "" {
			global = loc.ID
		}
	}
	if global == "" {
		return "", domain.Errorf(domain.CodeMissingSupplierLocation, "no supplier location for farm %s", farmID)
	}
	return global, nil
}

// ownLot creates a lot for a new animal or group, or adopts an existing
// unowned lot of the right product.
func (t *txn) ownLot(lotID, number, productID string, typ AnimalType) (Lot, error) {
	if lotID == "" {
		return t.tx.Lots().Create(Lot{Number: number, ProductID: productID, AnimalType: typ})
	}
	lot, err := t.lot(lotID)
	if err != nil {
		return Lot{}, err
	}
	if lot.ProductID != productID {
		return Lot{}, domain.Errorf(domain.CodeInvalidConfiguration, "lot %s is not of product %s", lot.Number, productID)
	}
	if lot.AnimalID != "" || lot.GroupID != "" {
		return Lot{}, domain.Errorf(domain.CodeInvalidConfiguration, "lot %s already belongs to another animal", lot.Number)
	}
	return t.tx.Lots().Update(lotID, func(l *Lot) error {
		l.AnimalType = typ
		return nil
	})
}

func (t *txn) arrivalCost(lot Lot, productID string, arr arrival, origin domain.AnimalOrigin) (Lot, error) {
	line := arr.costLine
	if line == nil && origin != domain.OriginRaised {
		product, err := t.product(productID)
		if err != nil {
			return Lot{}, err
		}
		if product.CostPrice.IsPositive() {
			line = &domain.LotCostLine{Category: "purchase", UnitPrice: product.CostPrice}
		}
	}
	if line == nil {
		return lot, nil
	}
	if err := t.addCostLine(lot.ID, *line); err != nil {
		return Lot{}, err
	}
	return t.lot(lot.ID)
}

// CreateAnimal registers a male, female or individual and posts its arrival
// move into the initial location.
func (s *Service) CreateAnimal(ctx context.Context, a Animal) (Animal, Result, error) {
	return create(s, ctx, "create_animal", func(t *txn) (Animal, error) {
		return t.createAnimal(a, arrival{})
	})
}

func (t *txn) createAnimal(a Animal, arr arrival) (Animal, error) {
	if !a.Type.IsIndividual() {
		return Animal{}, domain.Errorf(domain.CodeInvalidConfiguration, "animal type %q is not a single animal", a.Type)
	}
	if a.Origin == "" {
		a.Origin = domain.OriginPurchased
	}
	if a.ArrivalDate.IsZero() {
		a.ArrivalDate = t.now
	}
	if err := t.checkTimestamp(a.ArrivalDate); err != nil {
		return Animal{}, err
	}
	p, err := t.place(a.SpecieID, a.InitialLocationID, a.Type, a.Origin, arr.from)
	if err != nil {
		return Animal{}, err
	}
	if a.Number == "" {
		if a.Number, err = t.nextNumber(p.line.SequenceFor(a.Type)); err != nil {
			return Animal{}, err
		}
	}
	lot, err := t.ownLot(a.LotID, a.Number, p.productID, a.Type)
	if err != nil {
		return Animal{}, err
	}
	a.FarmID = p.farm.ID
	a.LotID = lot.ID
	a.Active = true
	a.RemovalDate = nil
	if a.Sex == "" {
		switch a.Type {
		case domain.AnimalMale:
			a.Sex = domain.SexMale
		case domain.AnimalFemale:
			a.Sex = domain.SexFemale
		default:
			a.Sex = domain.SexUndetermined
		}
	}
	if a.Type == domain.AnimalFemale {
		a.FemaleState = domain.FemaleProspective
	}
	created, err := t.tx.Animals().Create(a)
	if err != nil {
		return Animal{}, err
	}
	if _, err := t.tx.Lots().Update(lot.ID, func(l *Lot) error {
		l.AnimalID = created.ID
		return nil
	}); err != nil {
		return Animal{}, err
	}
	if lot, err = t.arrivalCost(lot, p.productID, arr, a.Origin); err != nil {
		return Animal{}, err
	}
	origin := arr.origin
	if origin.Kind == "" {
		origin = domain.Origin{Kind: domain.OriginAnimal, ID: created.ID}
	}
	if _, err := t.postAnimalMove(lot, 1, p.from, a.InitialLocationID, a.ArrivalDate, lot.CostPrice(), origin); err != nil {
		return Animal{}, err
	}
	return created, nil
}

// CreateGroup registers a group and posts its arrival move of
// InitialQuantity heads.
func (s *Service) CreateGroup(ctx context.Context, g AnimalGroup) (AnimalGroup, Result, error) {
	return create(s, ctx, "create_group", func(t *txn) (AnimalGroup, error) {
		return t.createGroup(g, arrival{})
	})
}

func (t *txn) createGroup(g AnimalGroup, arr arrival) (AnimalGroup, error) {
	if g.InitialQuantity < 1 {
		return AnimalGroup{}, domain.Errorf(domain.CodeInvalidQuantity, "group needs a positive initial quantity, got %d", g.InitialQuantity)
	}
	if g.Origin == "" {
		g.Origin = domain.OriginPurchased
	}
	if g.ArrivalDate.IsZero() {
		g.ArrivalDate = t.now
	}
	if err := t.checkTimestamp(g.ArrivalDate); err != nil {
		return AnimalGroup{}, err
	}
	p, err := t.place(g.SpecieID, g.InitialLocationID, domain.AnimalGroupType, g.Origin, arr.from)
	if err != nil {
		return AnimalGroup{}, err
	}
	if g.Number == "" {
		if g.Number, err = t.nextNumber(p.line.GroupSequenceID); err != nil {
			return AnimalGroup{}, err
		}
	}
	lot, err := t.ownLot(g.LotID, g.Number, p.productID, domain.AnimalGroupType)
	if err != nil {
		return AnimalGroup{}, err
	}
	g.FarmID = p.farm.ID
	g.LotID = lot.ID
	g.Active = true
	g.RemovalDate = nil
	created, err := t.tx.Groups().Create(g)
	if err != nil {
		return AnimalGroup{}, err
	}
	if _, err := t.tx.Lots().Update(lot.ID, func(l *Lot) error {
		l.GroupID = created.ID
		return nil
	}); err != nil {
		return AnimalGroup{}, err
	}
	if lot, err = t.arrivalCost(lot, p.productID, arr, g.Origin); err != nil {
		return AnimalGroup{}, err
	}
	origin := arr.origin
	if origin.Kind == "" {
		origin = domain.Origin{Kind: domain.OriginGroup, ID: created.ID}
	}
	if _, err := t.postAnimalMove(lot, g.InitialQuantity, p.from, g.InitialLocationID, g.ArrivalDate, lot.CostPrice(), origin); err != nil {
		return AnimalGroup{}, err
	}
	return created, nil
}

// DeleteAnimal removes an animal without validated history, cascading to its
// lot, moves, weights and draft events.
func (s *Service) DeleteAnimal(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_animal", func(t *txn) (string, error) {
		a, err := t.animal(id)
		if err != nil {
			return id, err
		}
		if err := t.deleteSubject(func(ev Event) bool { return ev.AnimalID == id }, a.LotID); err != nil {
			return id, err
		}
		for _, w := range t.view.Weights().List() {
			if w.AnimalID == id {
				if err := t.tx.Weights().Delete(w.ID); err != nil {
					return id, err
				}
			}
		}
		return id, t.tx.Animals().Delete(id)
	})
}

// DeleteGroup removes a group without validated history, cascading like
// DeleteAnimal.
func (s *Service) DeleteGroup(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_group", func(t *txn) (string, error) {
		g, err := t.group(id)
		if err != nil {
			return id, err
		}
		if err := t.deleteSubject(func(ev Event) bool { return ev.GroupID == id }, g.LotID); err != nil {
			return id, err
		}
		for _, w := range t.view.Weights().List() {
			if w.GroupID == id {
				if err := t.tx.Weights().Delete(w.ID); err != nil {
					return id, err
				}
			}
		}
		return id, t.tx.Groups().Delete(id)
	})
}

func (t *txn) deleteSubject(owns func(Event) bool, lotID string) error {
	var drafts []string
	for _, ev := range t.view.Events().List() {
		if !owns(ev) {
			continue
		}
		if ev.State != domain.EventDraft {
			return domain.Errorf(domain.CodeInvalidEventState, "subject has %s %s event %s", ev.State, ev.Kind, ev.ID)
		}
		drafts = append(drafts, ev.ID)
	}
	for _, id := range drafts {
		if err := t.deleteEvent(id); err != nil {
			return err
		}
	}
	for _, m := range t.view.Moves().List() {
		if m.LotID == lotID {
			if err := t.tx.Moves().Delete(m.ID); err != nil {
				return err
			}
		}
	}
	return t.tx.Lots().Delete(lotID)
}

// GetAnimal returns an animal.
func (s *Service) GetAnimal(ctx context.Context, id string) (Animal, error) {
	var out Animal
	err := s.view(ctx, func(r *reader) error {
		var err error
		out, err = r.animal(id)
		return err
	})
	return out, err
}

// GetGroup returns a group.
func (s *Service) GetGroup(ctx context.Context, id string) (AnimalGroup, error) {
	var out AnimalGroup
	err := s.view(ctx, func(r *reader) error {
		var err error
		out, err = r.group(id)
		return err
	})
	return out, err
}

// AnimalLocation returns where an animal stands at time at; a zero at means
// now. The boolean is false once the animal has left every stock location.
func (s *Service) AnimalLocation(ctx context.Context, id string, at time.Time) (string, bool, error) {
	var (
		loc   string
		found bool
	)
	err := s.view(ctx, func(r *reader) error {
		a, err := r.animal(id)
		if err != nil {
			return err
		}
		loc, found, err = r.lotLocation(a.LotID, at)
		return err
	})
	return loc, found, err
}

// GroupLocations returns the head count of a group per stock location at time
// at.
func (s *Service) GroupLocations(ctx context.Context, id string, at time.Time) (map[string]int, error) {
	out := make(map[string]int)
	err := s.view(ctx, func(r *reader) error {
		g, err := r.group(id)
		if err != nil {
			return err
		}
		positions, err := r.stock.LotLocations(g.LotID, at)
		if err != nil {
			return err
		}
		for loc, qty := range positions {
			out[loc] = int(qty.IntPart())
		}
		return nil
	})
	return out, err
}

// StorageSum returns the head count of a lot across storage locations.
func (s *Service) StorageSum(ctx context.Context, lotID string) (int, error) {
	var n int
	err := s.view(ctx, func(r *reader) error {
		var err error
		n, err = r.storageSum(lotID, noDateBound)
		return err
	})
	return n, err
}

// LotCost returns the cost price of a lot.
func (s *Service) LotCost(ctx context.Context, lotID string) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := s.view(ctx, func(r *reader) error {
		lot, err := r.lot(lotID)
		if err != nil {
			return err
		}
		cost = lot.CostPrice()
		return nil
	})
	return cost, err
}
