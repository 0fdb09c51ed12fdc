package core

import (
	"herdcore/pkg/domain"
)

func (t *txn) validateWeaning(ev *Event) error {
	p := ev.Weaning
	t.tx.LockAnimal(ev.AnimalID)
	c, err := t.requireCycleState(ev.AnimalID, domain.CycleLactating)
	if err != nil {
		return err
	}
	if p.Quantity < 0 {
		return domain.Errorf(domain.CodeIncorrectWeaningQuantity, "weaned quantity must not be negative, got %d", p.Quantity)
	}
	g, lot, err := t.litter(c)
	if err != nil {
		return err
	}
	farrowing, _ := t.validatedEvent(c.FarrowingEventID)
	sp, err := t.specie(ev.SpecieID)
	if err != nil {
		return err
	}

	casualties := farrowing.Farrowing.Live + t.fostered(c, nil) + p.LastMinuteFostered - p.Quantity
	present, err := t.lotCount(lot.ID, ev.LocationID, ev.Timestamp)
	if err != nil {
		return err
	}
	if present+p.LastMinuteFostered-casualties < p.Quantity || present+p.LastMinuteFostered < 0 {
		return domain.Errorf(domain.CodeIncorrectWeaningQuantity, "group %s has %d animals at %s, cannot wean %d", g.Number, present, ev.LocationID, p.Quantity)
	}
	if p.LastMinuteFostered != 0 {
		if sp.FosterLocationID == "" {
			return domain.Errorf(domain.CodeInvalidConfiguration, "specie %s has no foster location", sp.Name)
		}
		if err := t.emitMove(ev, lot, p.LastMinuteFostered, sp.FosterLocationID, ev.LocationID); err != nil {
			return err
		}
	}
	if casualties != 0 {
		if sp.LostFoundLocationID == "" {
			return domain.Errorf(domain.CodeInvalidConfiguration, "specie %s has no lost and found location", sp.Name)
		}
		if err := t.emitMove(ev, lot, casualties, ev.LocationID, sp.LostFoundLocationID); err != nil {
			return err
		}
	}
	p.Casualties = casualties

	if p.FemaleToLocationID != "" && p.FemaleToLocationID != ev.LocationID {
		if _, err := t.checkDestination(ev.SpecieID, domain.AnimalFemale, p.FemaleToLocationID); err != nil {
			return err
		}
		female, err := t.subjectLot(*ev)
		if err != nil {
			return err
		}
		if err := t.emitMove(ev, female, 1, ev.LocationID, p.FemaleToLocationID); err != nil {
			return err
		}
	}

	if err := t.weanLitter(ev, g, lot); err != nil {
		return err
	}

	p.CycleID = c.ID
	if _, err := t.updateCycle(c.ID, ev, func(c *FemaleCycle) {
		c.WeaningEventID = ev.ID
	}); err != nil {
		return err
	}
	return t.refreshFemale(ev.AnimalID)
}

// weanLitter sends the weaned animals on: into an existing group through a
// transformation, or to a new pen.
func (t *txn) weanLitter(ev *Event, g AnimalGroup, lot Lot) error {
	p := ev.Weaning
	if p.Quantity == 0 {
		return t.settleGroup(g.ID, ev.Timestamp)
	}
	to := p.WeanedToLocationID
	if p.WeanedGroupID != "" {
		if to == "" {
			dest, err := t.group(p.WeanedGroupID)
			if err != nil {
				return err
			}
			destLot, err := t.lot(dest.LotID)
			if err != nil {
				return err
			}
			loc, ok, err := t.lotLocation(destLot.ID, ev.Timestamp)
			if err != nil {
				return err
			}
			if !ok {
				return domain.Errorf(domain.CodeGroupNotInLocation, "weaned group %s is in no location", dest.Number)
			}
			to = loc
		}
		tr, err := t.synthesize(Event{
			Kind:       domain.EventTransformation,
			GroupID:    g.ID,
			LocationID: ev.LocationID,
			Timestamp:  ev.Timestamp,
			Employee:   ev.Employee,
			Transformation: &domain.TransformationPayload{
				ToLocationID: to,
				ToAnimalType: domain.AnimalGroupType,
				ToGroupID:    p.WeanedGroupID,
				Quantity:     p.Quantity,
			},
		})
		if err != nil {
			return err
		}
		p.TransformationEventID = tr.ID
		return nil
	}
	if to == "" || to == ev.LocationID {
		return nil
	}
	if _, err := t.checkDestination(ev.SpecieID, domain.AnimalGroupType, to); err != nil {
		return err
	}
	return t.emitMove(ev, lot, p.Quantity, ev.LocationID, to)
}
