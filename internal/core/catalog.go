package core

import (
	"context"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

// create runs fn in its own operation and returns the stored record.
func create[T any, P domain.Entity[T]](s *Service, ctx context.Context, op string, fn func(*txn) (T, error)) (T, Result, error) {
	var created T
	res, err := s.run(ctx, op, func(t *txn) (string, error) {
		var err error
		created, err = fn(t)
		if err != nil {
			return "", err
		}
		return P(&created).Meta().ID, nil
	})
	return created, res, err
}

func (t *txn) requireLocations(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := t.location(id); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) requireProducts(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := t.product(id); err != nil {
			return err
		}
	}
	return nil
}

// CreateUoM registers a unit of measure.
func (s *Service) CreateUoM(ctx context.Context, u UoM) (UoM, Result, error) {
	return create(s, ctx, "create_uom", func(t *txn) (UoM, error) {
		switch u.Category {
		case domain.UoMWeight, domain.UoMVolume, domain.UoMUnit:
		default:
			return UoM{}, domain.Errorf(domain.CodeInvalidConfiguration, "unit %s has unknown category %q", u.Name, u.Category)
		}
		if !u.Factor.IsPositive() {
			return UoM{}, domain.Errorf(domain.CodeInvalidConfiguration, "unit %s needs a positive factor", u.Name)
		}
		return t.tx.UoMs().Create(u)
	})
}

// CreateProduct registers a product.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, Result, error) {
	return create(s, ctx, "create_product", func(t *txn) (Product, error) {
		if _, err := t.uom(p.DefaultUoMID); err != nil {
			return Product{}, err
		}
		return t.tx.Products().Create(p)
	})
}

// CreateLocation registers a location. Non-warehouse stock locations must
// reference an existing warehouse.
func (s *Service) CreateLocation(ctx context.Context, loc Location) (Location, Result, error) {
	return create(s, ctx, "create_location", func(t *txn) (Location, error) {
		switch loc.Type {
		case domain.LocationWarehouse:
			if err := t.requireLocations(loc.ProductionLocationID, loc.StorageLocationID); err != nil {
				return Location{}, err
			}
		case domain.LocationStorage, domain.LocationProduction, domain.LocationLostFound, domain.LocationSupplier, domain.LocationCustomer:
			if err := t.requireLocations(loc.WarehouseID); err != nil {
				return Location{}, err
			}
		default:
			return Location{}, domain.Errorf(domain.CodeInvalidConfiguration, "location %s has unknown type %q", loc.Name, loc.Type)
		}
		if loc.Silo && loc.Type != domain.LocationStorage {
			return Location{}, domain.Errorf(domain.CodeInvalidConfiguration, "silo %s must be a storage location", loc.Name)
		}
		if err := t.requireLocations(loc.LocationsToFed...); err != nil {
			return Location{}, err
		}
		return t.tx.Locations().Create(loc)
	})
}

// UpdateLocation mutates a location, typically to link a warehouse to its
// production and storage locations once they exist.
func (s *Service) UpdateLocation(ctx context.Context, id string, mutator func(*Location) error) (Location, Result, error) {
	return create(s, ctx, "update_location", func(t *txn) (Location, error) {
		return t.tx.Locations().Update(id, mutator)
	})
}

// CreateSequence registers a number sequence.
func (s *Service) CreateSequence(ctx context.Context, seq Sequence) (Sequence, Result, error) {
	return create(s, ctx, "create_sequence", func(t *txn) (Sequence, error) {
		if seq.NextNumber < 1 {
			seq.NextNumber = 1
		}
		return t.tx.Sequences().Create(seq)
	})
}

// CreateSpecie registers a specie with its role products and virtual
// locations.
func (s *Service) CreateSpecie(ctx context.Context, sp Specie) (Specie, Result, error) {
	return create(s, ctx, "create_specie", func(t *txn) (Specie, error) {
		if err := t.checkSpecie(&sp); err != nil {
			return Specie{}, err
		}
		return t.tx.Species().Create(sp)
	})
}

// UpdateSpecie mutates a specie and re-checks its references.
func (s *Service) UpdateSpecie(ctx context.Context, id string, mutator func(*Specie) error) (Specie, Result, error) {
	return create(s, ctx, "update_specie", func(t *txn) (Specie, error) {
		return t.tx.Species().Update(id, func(sp *Specie) error {
			if err := mutator(sp); err != nil {
				return err
			}
			return t.checkSpecie(sp)
		})
	})
}

func (t *txn) checkSpecie(sp *Specie) error {
	if sp.ProducedAnimalType == "" {
		sp.ProducedAnimalType = domain.AnimalGroupType
	}
	if sp.ProducedAnimalType != domain.AnimalGroupType && sp.ProducedAnimalType != domain.AnimalIndividual {
		return domain.Errorf(domain.CodeInvalidConfiguration, "specie %s cannot produce %s at farrowing", sp.Name, sp.ProducedAnimalType)
	}
	if err := t.requireProducts(sp.MaleProductID, sp.FemaleProductID, sp.IndividualProductID, sp.GroupProductID, sp.SemenProductID); err != nil {
		return err
	}
	if err := t.requireProducts(sp.ReclassificationProductIDs...); err != nil {
		return err
	}
	return t.requireLocations(sp.RemovedLocationID, sp.FosterLocationID, sp.LostFoundLocationID, sp.FeedLostFoundLocationID)
}

// CreateBreed registers a breed of a specie.
func (s *Service) CreateBreed(ctx context.Context, b Breed) (Breed, Result, error) {
	return create(s, ctx, "create_breed", func(t *txn) (Breed, error) {
		if _, err := t.specie(b.SpecieID); err != nil {
			return Breed{}, err
		}
		return t.tx.Breeds().Create(b)
	})
}

// CreateFarmLine enables animal types of a specie on a farm.
func (s *Service) CreateFarmLine(ctx context.Context, line FarmLine) (FarmLine, Result, error) {
	return create(s, ctx, "create_farm_line", func(t *txn) (FarmLine, error) {
		if _, err := t.specie(line.SpecieID); err != nil {
			return FarmLine{}, err
		}
		farm, err := t.location(line.FarmID)
		if err != nil {
			return FarmLine{}, err
		}
		if farm.Type != domain.LocationWarehouse {
			return FarmLine{}, domain.Errorf(domain.CodeInvalidConfiguration, "farm line farm %s is not a warehouse", farm.Name)
		}
		for _, id := range []string{
			line.MaleSequenceID, line.FemaleSequenceID, line.IndividualSequenceID, line.GroupSequenceID,
			line.SemenLotSequenceID, line.DoseLotSequenceID, line.EventOrderSequenceID,
		} {
			if id == "" {
				continue
			}
			if _, ok := t.view.Sequences().Get(id); !ok {
				return FarmLine{}, notFound(domain.EntitySequence, id)
			}
		}
		return t.tx.FarmLines().Create(line)
	})
}

// CreateBOM registers a bill of materials.
func (s *Service) CreateBOM(ctx context.Context, b BOM) (BOM, Result, error) {
	return create(s, ctx, "create_bom", func(t *txn) (BOM, error) {
		if err := t.requireProducts(b.OutputProductID); err != nil {
			return BOM{}, err
		}
		if !b.OutputQuantity.IsPositive() {
			return BOM{}, domain.Errorf(domain.CodeInvalidConfiguration, "bom %s needs a positive output quantity", b.Name)
		}
		for _, line := range b.Inputs {
			if err := t.requireProducts(line.ProductID); err != nil {
				return BOM{}, err
			}
			if !line.Quantity.IsPositive() {
				return BOM{}, domain.Errorf(domain.CodeInvalidConfiguration, "bom %s input %s needs a positive quantity", b.Name, line.ProductID)
			}
		}
		return t.tx.BOMs().Create(b)
	})
}

// CreateLot registers a product lot.
func (s *Service) CreateLot(ctx context.Context, l Lot) (Lot, Result, error) {
	return create(s, ctx, "create_lot", func(t *txn) (Lot, error) {
		if err := t.requireProducts(l.ProductID); err != nil {
			return Lot{}, err
		}
		return t.tx.Lots().Create(l)
	})
}

// PostMove records a done stock move outside any event, for receipts and
// transfers of feed, doses and supplies.
func (s *Service) PostMove(ctx context.Context, req stock.MoveRequest) (Move, Result, error) {
	return create(s, ctx, "post_move", func(t *txn) (Move, error) {
		if req.Origin.Kind == "" {
			req.Origin = domain.Origin{Kind: domain.OriginManual}
		}
		if req.EffectiveDate.IsZero() {
			req.EffectiveDate = t.now
		}
		return t.ledger.Post(req)
	})
}

// CreateQualityTest registers a draft quality test.
func (s *Service) CreateQualityTest(ctx context.Context, q QualityTest) (QualityTest, Result, error) {
	return create(s, ctx, "create_quality_test", func(t *txn) (QualityTest, error) {
		q.State = domain.QualityTestDraft
		return t.tx.QualityTests().Create(q)
	})
}

// UpdateQualityTest records measurements on a test that has not concluded.
func (s *Service) UpdateQualityTest(ctx context.Context, id string, mutator func(*QualityTest) error) (QualityTest, Result, error) {
	return create(s, ctx, "update_quality_test", func(t *txn) (QualityTest, error) {
		return t.tx.QualityTests().Update(id, func(q *QualityTest) error {
			state := q.State
			if state == domain.QualityTestSuccessful || state == domain.QualityTestFailed {
				return domain.Errorf(domain.CodeInvalidEventState, "quality test %s is %s", q.Reference, state)
			}
			if err := mutator(q); err != nil {
				return err
			}
			q.State = state
			return nil
		})
	})
}

// ConfirmQualityTest closes a draft test for evaluation. Only confirmed
// tests are evaluated when an extraction is validated.
func (s *Service) ConfirmQualityTest(ctx context.Context, id string) (QualityTest, Result, error) {
	return create(s, ctx, "confirm_quality_test", func(t *txn) (QualityTest, error) {
		return t.tx.QualityTests().Update(id, func(q *QualityTest) error {
			if q.State != domain.QualityTestDraft {
				return domain.Errorf(domain.CodeInvalidEventState, "quality test %s is %s", q.Reference, q.State)
			}
			if len(q.Lines) == 0 {
				return domain.Errorf(domain.CodeInvalidQuantity, "quality test %s has no lines", q.Reference)
			}
			q.State = domain.QualityTestConfirmed
			return nil
		})
	})
}
