package core

import (
	"herdcore/pkg/domain"
)

func (t *txn) validateFarrowing(ev *Event) error {
	p := ev.Farrowing
	t.tx.LockAnimal(ev.AnimalID)
	c, err := t.requireCycleState(ev.AnimalID, domain.CyclePregnant)
	if err != nil {
		return err
	}
	if p.Live < 0 || p.Stillborn < 0 || p.Mummified < 0 {
		return domain.Errorf(domain.CodeInvalidQuantity, "farrowing counts must not be negative")
	}
	if p.Live+p.Dead() == 0 {
		return domain.Errorf(domain.CodeEventWithoutDeadNorLive, "farrowing of %s has no live nor dead", ev.AnimalID)
	}
	if p.Live > 0 {
		if err := t.produceOffspring(ev); err != nil {
			return err
		}
	}
	p.CycleID = c.ID
	if _, err := t.updateCycle(c.ID, ev, func(c *FemaleCycle) {
		c.FarrowingEventID = ev.ID
	}); err != nil {
		return err
	}
	return t.refreshFemale(ev.AnimalID)
}

// produceOffspring creates the live-born as one group or as individuals,
// depending on the specie, entering from the production location at the
// female's location.
func (t *txn) produceOffspring(ev *Event) error {
	p := ev.Farrowing
	female, err := t.animal(ev.AnimalID)
	if err != nil {
		return err
	}
	sp, err := t.specie(ev.SpecieID)
	if err != nil {
		return err
	}
	typ := sp.ProducedAnimalType
	if typ == "" {
		typ = domain.AnimalGroupType
	}
	productID := sp.ProductFor(typ)
	if productID == "" {
		return domain.Errorf(domain.CodeNoSpecieProduct, "specie %s has no %s product", sp.Name, typ)
	}
	product, err := t.product(productID)
	if err != nil {
		return err
	}
	production, err := t.productionLocation(ev.FarmID)
	if err != nil {
		return err
	}
	arr := arrival{
		from:     production,
		costLine: &domain.LotCostLine{Category: "farrowing", UnitPrice: product.FarrowingPrice, Origin: eventOrigin(ev.ID)},
		origin:   eventOrigin(ev.ID),
	}
	born := ev.Timestamp
	if typ == domain.AnimalGroupType {
		g, err := t.createGroup(AnimalGroup{
			SpecieID:          sp.ID,
			BreedID:           female.BreedID,
			Origin:            domain.OriginRaised,
			ArrivalDate:       born,
			InitialLocationID: ev.LocationID,
			InitialQuantity:   p.Live,
		}, arr)
		if err != nil {
			return err
		}
		p.ProducedGroupID = g.ID
		return nil
	}
	p.ProducedAnimalIDs = p.ProducedAnimalIDs[:0]
	for range p.Live {
		a, err := t.createAnimal(Animal{
			Type:              domain.AnimalIndividual,
			SpecieID:          sp.ID,
			BreedID:           female.BreedID,
			Origin:            domain.OriginRaised,
			ArrivalDate:       born,
			InitialLocationID: ev.LocationID,
			Birthdate:         &born,
		}, arr)
		if err != nil {
			return err
		}
		p.ProducedAnimalIDs = append(p.ProducedAnimalIDs, a.ID)
	}
	return nil
}
