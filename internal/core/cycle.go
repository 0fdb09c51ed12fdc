package core

import (
	"herdcore/pkg/domain"
)

// cycleState derives a cycle's state from its validated events. pending is the
// event under validation and counts as validated.
func (r *reader) cycleState(c FemaleCycle, pending *Event) domain.CycleState {
	validated := func(id string) (Event, bool) {
		if pending != nil && id != "" && id == pending.ID {
			return *pending, true
		}
		return r.validatedEvent(id)
	}
	if _, ok := validated(c.AbortEventID); ok {
		return domain.CycleUnmated
	}
	if _, ok := validated(c.WeaningEventID); ok {
		return domain.CycleUnmated
	}
	if ev, ok := validated(c.FarrowingEventID); ok {
		if ev.Farrowing != nil && ev.Farrowing.Live > 0 {
			return domain.CycleLactating
		}
		return domain.CycleUnmated
	}
	var last *Event
	for _, id := range c.DiagnosisEventIDs {
		ev, ok := validated(id)
		if !ok {
			continue
		}
		if last == nil || !ev.Timestamp.Before(last.Timestamp) {
			e := ev
			last = &e
		}
	}
	if last != nil && last.Diagnosis != nil && last.Diagnosis.Result == domain.DiagnosisPositive {
		return domain.CyclePregnant
	}
	for _, id := range c.InseminationEventIDs {
		if _, ok := validated(id); ok {
			return domain.CycleMated
		}
	}
	return domain.CycleUnmated
}

// femaleState derives the reproductive state of a female from its cycles.
func (r *reader) femaleState(a Animal, cycles []FemaleCycle) domain.FemaleState {
	if a.RemovalDate != nil && !dayOf(*a.RemovalDate).After(dayOf(r.now)) {
		return domain.FemaleRemoved
	}
	if len(cycles) == 0 {
		return domain.FemaleProspective
	}
	if len(cycles) == 1 && cycles[0].State == domain.CycleUnmated && cycles[0].WeaningEventID == "" {
		return domain.FemaleProspective
	}
	if cycles[len(cycles)-1].State == domain.CycleUnmated {
		return domain.FemaleUnmated
	}
	return domain.FemaleMated
}

// updateCycle mutates a cycle and recomputes its state.
func (t *txn) updateCycle(id string, pending *Event, mutate func(*FemaleCycle)) (FemaleCycle, error) {
	c, err := t.cycle(id)
	if err != nil {
		return FemaleCycle{}, err
	}
	if mutate != nil {
		mutate(&c)
	}
	c.State = t.cycleState(c, pending)
	return t.tx.Cycles().Update(id, func(stored *FemaleCycle) error {
		*stored = c
		return nil
	})
}

// openCycle starts the next cycle of a female.
func (t *txn) openCycle(female Animal, ev Event) (FemaleCycle, error) {
	seq := 1
	if last, ok := t.currentCycle(female.ID); ok {
		seq = last.Sequence + 1
	}
	return t.tx.Cycles().Create(FemaleCycle{
		AnimalID:       female.ID,
		Sequence:       seq,
		OrdinationDate: ev.Timestamp,
		State:          domain.CycleUnmated,
	})
}

// refreshFemale recomputes the female state and current cycle link. Other
// animal types are left untouched.
func (t *txn) refreshFemale(animalID string) error {
	a, err := t.animal(animalID)
	if err != nil {
		return err
	}
	if a.Type != domain.AnimalFemale {
		return nil
	}
	cycles := t.cyclesOf(animalID)
	state := t.femaleState(a, cycles)
	current := ""
	if len(cycles) > 0 {
		current = cycles[len(cycles)-1].ID
	}
	_, err = t.tx.Animals().Update(animalID, func(a *Animal) error {
		a.FemaleState = state
		a.CurrentCycleID = current
		return nil
	})
	return err
}

// requireCycleState returns the current cycle when its state is one of
// allowed.
func (t *txn) requireCycleState(femaleID string, allowed ...domain.CycleState) (FemaleCycle, error) {
	c, ok := t.currentCycle(femaleID)
	if !ok {
		return FemaleCycle{}, domain.Errorf(domain.CodeIncompatibleCycleState, "female %s has no cycle", femaleID)
	}
	for _, s := range allowed {
		if c.State == s {
			return c, nil
		}
	}
	return FemaleCycle{}, domain.Errorf(domain.CodeIncompatibleCycleState, "female %s cycle %d is %s", femaleID, c.Sequence, c.State)
}
