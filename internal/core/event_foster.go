package core

import (
	"herdcore/pkg/domain"
)

// litter returns the group produced by the farrowing of a lactating cycle.
func (t *txn) litter(c FemaleCycle) (AnimalGroup, Lot, error) {
	farrowing, ok := t.validatedEvent(c.FarrowingEventID)
	if !ok || farrowing.Farrowing == nil || farrowing.Farrowing.ProducedGroupID == "" {
		return AnimalGroup{}, Lot{}, domain.Errorf(domain.CodeNotFarrowingGroup, "cycle %d has no farrowing group", c.Sequence)
	}
	g, err := t.group(farrowing.Farrowing.ProducedGroupID)
	if err != nil {
		return AnimalGroup{}, Lot{}, err
	}
	lot, err := t.lot(g.LotID)
	if err != nil {
		return AnimalGroup{}, Lot{}, err
	}
	return g, lot, nil
}

// emitMove posts a move of count units of lot on behalf of ev. A negative
// count swaps the locations.
func (t *txn) emitMove(ev *Event, lot Lot, count int, from, to string) error {
	if count == 0 {
		return nil
	}
	if count < 0 {
		count, from, to = -count, to, from
	}
	m, err := t.postAnimalMove(lot, count, from, to, ev.Timestamp, lot.CostPrice(), eventOrigin(ev.ID))
	if err != nil {
		return err
	}
	ev.MoveIDs = append(ev.MoveIDs, m.ID)
	return nil
}

// fostered sums the validated foster quantities of a cycle.
func (r *reader) fostered(c FemaleCycle, pending *Event) int {
	total := 0
	for _, id := range c.FosterEventIDs {
		if pending != nil && id == pending.ID {
			continue
		}
		if ev, ok := r.validatedEvent(id); ok && ev.Foster != nil {
			total += ev.Foster.Quantity
		}
	}
	return total
}

func (t *txn) validateFoster(ev *Event) error {
	p := ev.Foster
	t.tx.LockAnimal(ev.AnimalID)
	c, err := t.requireCycleState(ev.AnimalID, domain.CycleLactating)
	if err != nil {
		return err
	}
	if p.Quantity == 0 {
		return domain.Errorf(domain.CodeInvalidQuantity, "foster quantity must not be zero")
	}
	g, lot, err := t.litter(c)
	if err != nil {
		return err
	}
	sp, err := t.specie(ev.SpecieID)
	if err != nil {
		return err
	}
	if sp.FosterLocationID == "" {
		return domain.Errorf(domain.CodeInvalidConfiguration, "specie %s has no foster location", sp.Name)
	}
	if p.Quantity < 0 {
		subject := Event{AnimalType: domain.AnimalGroupType, GroupID: g.ID}
		if err := t.requirePresence(subject, lot, ev.LocationID, -p.Quantity, ev.Timestamp); err != nil {
			return err
		}
	}
	if err := t.emitMove(ev, lot, p.Quantity, sp.FosterLocationID, ev.LocationID); err != nil {
		return err
	}

	if p.PairFemaleID != "" && p.PairEventID == "" {
		pair, err := t.synthesize(Event{
			Kind:      domain.EventFoster,
			AnimalID:  p.PairFemaleID,
			Timestamp: ev.Timestamp,
			Employee:  ev.Employee,
			Foster:    &domain.FosterPayload{Quantity: -p.Quantity, PairFemaleID: ev.AnimalID, PairEventID: ev.ID},
		})
		if err != nil {
			return err
		}
		p.PairEventID = pair.ID
	}

	p.CycleID = c.ID
	if _, err := t.updateCycle(c.ID, ev, func(c *FemaleCycle) {
		c.FosterEventIDs = append(c.FosterEventIDs, ev.ID)
	}); err != nil {
		return err
	}
	return t.refreshFemale(ev.AnimalID)
}
