package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"herdcore/internal/core"
	"herdcore/pkg/domain"
)

// Summary counts the catalog records written and those already present.
type Summary struct {
	Created int
	Skipped int
}

type seeder struct {
	svc      *core.Service
	logger   *zap.Logger
	existing map[domain.EntityType]map[string]struct{}
	summary  Summary
}

// Seed creates the catalog records missing from the service's store, in
// dependency order. Records whose id already exists are left untouched.
func Seed(ctx context.Context, svc *core.Service, cat *Catalog, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &seeder{svc: svc, logger: logger, existing: make(map[domain.EntityType]map[string]struct{})}
	if err := s.loadExisting(ctx); err != nil {
		return Summary{}, err
	}
	steps := []func(context.Context, *Catalog) error{
		s.seedUoMs,
		s.seedProducts,
		s.seedSequences,
		s.seedLocations,
		s.seedSpecies,
		s.seedFarmLines,
		s.seedBOMs,
	}
	for _, step := range steps {
		if err := step(ctx, cat); err != nil {
			return s.summary, err
		}
	}
	logger.Info("catalog seeded", zap.Int("created", s.summary.Created), zap.Int("skipped", s.summary.Skipped))
	return s.summary, nil
}

func (s *seeder) loadExisting(ctx context.Context) error {
	mark := func(kind domain.EntityType, id string) {
		if s.existing[kind] == nil {
			s.existing[kind] = make(map[string]struct{})
		}
		s.existing[kind][id] = struct{}{}
	}
	return s.svc.Store().View(ctx, func(v domain.TransactionView) error {
		for _, x := range v.UoMs().List() {
			mark(domain.EntityUoM, x.ID)
		}
		for _, x := range v.Products().List() {
			mark(domain.EntityProduct, x.ID)
		}
		for _, x := range v.Sequences().List() {
			mark(domain.EntitySequence, x.ID)
		}
		for _, x := range v.Locations().List() {
			mark(domain.EntityLocation, x.ID)
		}
		for _, x := range v.Species().List() {
			mark(domain.EntitySpecie, x.ID)
		}
		for _, x := range v.Breeds().List() {
			mark(domain.EntityBreed, x.ID)
		}
		for _, x := range v.FarmLines().List() {
			mark(domain.EntityFarmLine, x.ID)
		}
		for _, x := range v.BOMs().List() {
			mark(domain.EntityBOM, x.ID)
		}
		return nil
	})
}

// pending reports whether id still has to be created.
func (s *seeder) pending(kind domain.EntityType, id string) bool {
	if _, ok := s.existing[kind][id]; ok {
		s.summary.Skipped++
		return false
	}
	return true
}

func (s *seeder) created(kind domain.EntityType, id string, err error) error {
	if err != nil {
		return fmt.Errorf("seed %s %s: %w", kind, id, err)
	}
	s.summary.Created++
	s.logger.Debug("catalog record created", zap.String("entity", string(kind)), zap.String("id", id))
	return nil
}

func (s *seeder) seedUoMs(ctx context.Context, cat *Catalog) error {
	for _, u := range cat.UoMs {
		if !s.pending(domain.EntityUoM, u.ID) {
			continue
		}
		_, _, err := s.svc.CreateUoM(ctx, domain.UoM{
			Base:     domain.Base{ID: u.ID},
			Name:     u.Name,
			Category: domain.UoMCategory(u.Category),
			Factor:   dec(u.Factor),
			Digits:   u.Digits,
		})
		if err := s.created(domain.EntityUoM, u.ID, err); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedProducts(ctx context.Context, cat *Catalog) error {
	for _, p := range cat.Products {
		if !s.pending(domain.EntityProduct, p.ID) {
			continue
		}
		_, _, err := s.svc.CreateProduct(ctx, domain.Product{
			Base:           domain.Base{ID: p.ID},
			Code:           p.Code,
			Name:           p.Name,
			DefaultUoMID:   p.UoM,
			CostPrice:      dec(p.CostPrice),
			FarrowingPrice: dec(p.FarrowingPrice),
			ExpirationDays: p.ExpirationDays,
		})
		if err := s.created(domain.EntityProduct, p.ID, err); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedSequences(ctx context.Context, cat *Catalog) error {
	for _, q := range cat.Sequences {
		if !s.pending(domain.EntitySequence, q.ID) {
			continue
		}
		_, _, err := s.svc.CreateSequence(ctx, domain.Sequence{
			Base:       domain.Base{ID: q.ID},
			Name:       q.Name,
			Prefix:     q.Prefix,
			Padding:    q.Padding,
			NextNumber: q.NextNumber,
		})
		if err := s.created(domain.EntitySequence, q.ID, err); err != nil {
			return err
		}
	}
	return nil
}

// seedLocations creates warehouses first, then the remaining locations, and
// finally links warehouses to their production and storage locations and
// silos to the pens they feed.
func (s *seeder) seedLocations(ctx context.Context, cat *Catalog) error {
	var fresh []Location
	for _, warehouses := range []bool{true, false} {
		for _, l := range cat.Locations {
			if (domain.LocationType(l.Type) == domain.LocationWarehouse) != warehouses {
				continue
			}
			if !s.pending(domain.EntityLocation, l.ID) {
				continue
			}
			_, _, err := s.svc.CreateLocation(ctx, domain.Location{
				Base:        domain.Base{ID: l.ID},
				Code:        l.Code,
				Name:        l.Name,
				Type:        domain.LocationType(l.Type),
				WarehouseID: l.Warehouse,
				Silo:        l.Silo,
				CloseTime:   l.CloseTime,
			})
			if err := s.created(domain.EntityLocation, l.ID, err); err != nil {
				return err
			}
			fresh = append(fresh, l)
		}
	}
	for _, l := range fresh {
		if l.ProductionLocation == "" && l.StorageLocation == "" && len(l.Feeds) == 0 {
			continue
		}
		_, _, err := s.svc.UpdateLocation(ctx, l.ID, func(loc *domain.Location) error {
			loc.ProductionLocationID = l.ProductionLocation
			loc.StorageLocationID = l.StorageLocation
			loc.LocationsToFed = append([]string(nil), l.Feeds...)
			return nil
		})
		if err != nil {
			return fmt.Errorf("link location %s: %w", l.ID, err)
		}
	}
	return nil
}

func (s *seeder) seedSpecies(ctx context.Context, cat *Catalog) error {
	for _, sp := range cat.Species {
		if s.pending(domain.EntitySpecie, sp.ID) {
			_, _, err := s.svc.CreateSpecie(ctx, domain.Specie{
				Base:                       domain.Base{ID: sp.ID},
				Name:                       sp.Name,
				MaleEnabled:                sp.Male,
				FemaleEnabled:              sp.Female,
				IndividualEnabled:          sp.Individual,
				GroupEnabled:               sp.Group,
				MaleProductID:              sp.MaleProduct,
				FemaleProductID:            sp.FemaleProduct,
				IndividualProductID:        sp.IndividualProduct,
				GroupProductID:             sp.GroupProduct,
				SemenProductID:             sp.SemenProduct,
				RemovedLocationID:          sp.RemovedLocation,
				FosterLocationID:           sp.FosterLocation,
				LostFoundLocationID:        sp.LostFoundLocation,
				FeedLostFoundLocationID:    sp.FeedLostFound,
				ProducedAnimalType:         domain.AnimalType(sp.ProducedAnimalType),
				ReclassificationProductIDs: sp.Reclassification,
			})
			if err := s.created(domain.EntitySpecie, sp.ID, err); err != nil {
				return err
			}
		}
		for _, b := range sp.Breeds {
			if !s.pending(domain.EntityBreed, b.ID) {
				continue
			}
			_, _, err := s.svc.CreateBreed(ctx, domain.Breed{Base: domain.Base{ID: b.ID}, SpecieID: sp.ID, Name: b.Name})
			if err := s.created(domain.EntityBreed, b.ID, err); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *seeder) seedFarmLines(ctx context.Context, cat *Catalog) error {
	for _, f := range cat.FarmLines {
		if !s.pending(domain.EntityFarmLine, f.ID) {
			continue
		}
		_, _, err := s.svc.CreateFarmLine(ctx, domain.FarmLine{
			Base:                 domain.Base{ID: f.ID},
			SpecieID:             f.Specie,
			FarmID:               f.Farm,
			HasMale:              f.Male,
			HasFemale:            f.Female,
			HasIndividual:        f.Individual,
			HasGroup:             f.Group,
			MaleSequenceID:       f.MaleSequence,
			FemaleSequenceID:     f.FemaleSequence,
			IndividualSequenceID: f.IndividualSequence,
			GroupSequenceID:      f.GroupSequence,
			SemenLotSequenceID:   f.SemenLotSequence,
			DoseLotSequenceID:    f.DoseLotSequence,
			EventOrderSequenceID: f.EventOrderSequence,
		})
		if err := s.created(domain.EntityFarmLine, f.ID, err); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedBOMs(ctx context.Context, cat *Catalog) error {
	for _, b := range cat.BOMs {
		if !s.pending(domain.EntityBOM, b.ID) {
			continue
		}
		bom := domain.BOM{
			Base:            domain.Base{ID: b.ID},
			Name:            b.Name,
			OutputProductID: b.OutputProduct,
			OutputUoMID:     b.OutputUoM,
			OutputQuantity:  dec(b.OutputQuantity),
		}
		for _, in := range b.Inputs {
			bom.Inputs = append(bom.Inputs, domain.BOMLine{ProductID: in.Product, UoMID: in.UoM, Quantity: dec(in.Quantity)})
		}
		_, _, err := s.svc.CreateBOM(ctx, bom)
		if err := s.created(domain.EntityBOM, b.ID, err); err != nil {
			return err
		}
	}
	return nil
}
