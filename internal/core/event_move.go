package core

import (
	"herdcore/pkg/domain"
)

// subjectCount normalises an event quantity: single animals always count one,
// groups need a positive quantity.
func subjectCount(ev *Event, qty int) (int, error) {
	if ev.AnimalType.IsIndividual() {
		if qty < -1 || qty > 1 {
			return 0, domain.Errorf(domain.CodeInvalidQuantity, "a single animal moves with quantity 1, got %d", qty)
		}
		return 1, nil
	}
	if qty < 1 {
		return 0, domain.Errorf(domain.CodeInvalidQuantity, "group quantity must be positive, got %d", qty)
	}
	return qty, nil
}

// checkDestination accepts storage locations on a farm line enabling typ, and
// customers.
func (t *txn) checkDestination(specieID string, typ AnimalType, locationID string) (Location, error) {
	to, err := t.location(locationID)
	if err != nil {
		return Location{}, err
	}
	switch to.Type {
	case domain.LocationCustomer:
		return to, nil
	case domain.LocationStorage:
		farm, err := t.warehouse(to.ID)
		if err != nil {
			return Location{}, err
		}
		if _, err := t.farmLine(specieID, farm.ID, typ); err != nil {
			return Location{}, domain.Errorf(domain.CodeInvalidAnimalDestination, "farm %s does not keep %s animals of this specie", farm.Name, typ)
		}
		return to, nil
	}
	return Location{}, domain.Errorf(domain.CodeInvalidAnimalDestination, "%s is a %s location", to.Name, to.Type)
}

func (t *txn) validateMove(ev *Event) error {
	p := ev.Move
	qty, err := subjectCount(ev, p.Quantity)
	if err != nil {
		return err
	}
	p.Quantity = qty
	if p.ToLocationID == ev.LocationID {
		return domain.Errorf(domain.CodeInvalidAnimalDestination, "move destination equals origin %s", ev.LocationID)
	}
	to, err := t.checkDestination(ev.SpecieID, ev.AnimalType, p.ToLocationID)
	if err != nil {
		return err
	}
	lot, err := t.subjectLot(*ev)
	if err != nil {
		return err
	}
	if err := t.requirePresence(*ev, lot, ev.LocationID, qty, ev.Timestamp); err != nil {
		return err
	}

	price := lot.CostPrice()
	if p.UnitPrice.Valid && !p.UnitPrice.Decimal.Equal(price) {
		if err := t.addCostLine(lot.ID, domain.LotCostLine{
			Category:  "adjustment",
			UnitPrice: p.UnitPrice.Decimal.Sub(price),
			Origin:    eventOrigin(ev.ID),
		}); err != nil {
			return err
		}
		price = p.UnitPrice.Decimal
	}
	move, err := t.postAnimalMove(lot, qty, ev.LocationID, p.ToLocationID, ev.Timestamp, price, eventOrigin(ev.ID))
	if err != nil {
		return err
	}
	ev.MoveIDs = append(ev.MoveIDs, move.ID)

	if p.Weight.Valid {
		uomID := p.WeightUoMID
		if uomID == "" {
			ref, err := t.referenceUoM(domain.UoMWeight)
			if err != nil {
				return err
			}
			uomID = ref.ID
		}
		w, err := t.tx.Weights().Create(WeightRecord{
			AnimalID:  ev.AnimalID,
			GroupID:   ev.GroupID,
			Timestamp: ev.Timestamp,
			UoMID:     uomID,
			Weight:    p.Weight.Decimal,
			Quantity:  qty,
			EventID:   ev.ID,
		})
		if err != nil {
			return err
		}
		p.WeightRecordID = w.ID
	}

	if to.Type == domain.LocationCustomer {
		if ev.AnimalType == domain.AnimalGroupType {
			if err := t.settleGroup(ev.GroupID, ev.Timestamp); err != nil {
				return err
			}
		} else if err := t.deactivateAnimal(ev.AnimalID, ev.Timestamp, "sold"); err != nil {
			return err
		}
	}

	if ev.AnimalType == domain.AnimalFemale {
		return t.moveNursingGroup(ev)
	}
	return nil
}

// moveNursingGroup synthesizes a move of a lactating female's produced group
// standing with her.
func (t *txn) moveNursingGroup(ev *Event) error {
	c, ok := t.currentCycle(ev.AnimalID)
	if !ok || c.State != domain.CycleLactating {
		return nil
	}
	farrowing, ok := t.validatedEvent(c.FarrowingEventID)
	if !ok || farrowing.Farrowing == nil || farrowing.Farrowing.ProducedGroupID == "" {
		return nil
	}
	g, err := t.group(farrowing.Farrowing.ProducedGroupID)
	if err != nil {
		return err
	}
	count, err := t.lotCount(g.LotID, ev.LocationID, ev.Timestamp)
	if err != nil {
		return err
	}
	if count <= 0 {
		return nil
	}
	sibling, err := t.synthesize(Event{
		Kind:       domain.EventMove,
		GroupID:    g.ID,
		LocationID: ev.LocationID,
		Timestamp:  ev.Timestamp,
		Employee:   ev.Employee,
		Move:       &domain.MovePayload{ToLocationID: ev.Move.ToLocationID, Quantity: count},
	})
	if err != nil {
		return err
	}
	ev.Move.GroupMoveEventID = sibling.ID
	return nil
}
