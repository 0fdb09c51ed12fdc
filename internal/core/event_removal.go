package core

import (
	"herdcore/pkg/domain"
)

func (t *txn) validateRemoval(ev *Event) error {
	p := ev.Removal
	qty, err := subjectCount(ev, p.Quantity)
	if err != nil {
		return err
	}
	p.Quantity = qty
	if ev.AnimalType.IsIndividual() {
		for _, other := range t.view.Events().List() {
			if other.ID != ev.ID && other.Kind == domain.EventRemoval && other.AnimalID == ev.AnimalID && other.State == domain.EventValidated {
				return domain.Errorf(domain.CodeAlreadyExistValidatedRemovalEvent, "animal %s already has validated removal %s", ev.AnimalID, other.ID)
			}
		}
	}
	sp, err := t.specie(ev.SpecieID)
	if err != nil {
		return err
	}
	if sp.RemovedLocationID == "" {
		return domain.Errorf(domain.CodeInvalidConfiguration, "specie %s has no removed location", sp.Name)
	}
	lot, err := t.subjectLot(*ev)
	if err != nil {
		return err
	}
	if err := t.requirePresence(*ev, lot, ev.LocationID, qty, ev.Timestamp); err != nil {
		return err
	}
	move, err := t.postAnimalMove(lot, qty, ev.LocationID, sp.RemovedLocationID, ev.Timestamp, lot.CostPrice(), eventOrigin(ev.ID))
	if err != nil {
		return err
	}
	ev.MoveIDs = append(ev.MoveIDs, move.ID)
	if ev.AnimalType == domain.AnimalGroupType {
		return t.settleGroup(ev.GroupID, ev.Timestamp)
	}
	reason := p.Reason
	if reason == "" {
		reason = "removal"
	}
	return t.deactivateAnimal(ev.AnimalID, ev.Timestamp, reason)
}
