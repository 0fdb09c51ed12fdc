package core

import (
	"context"
	"slices"

	"herdcore/pkg/domain"
)

// CancelEvent reverses a validated event: every emitted move gets an inverse
// move at the event timestamp and the biological effects are undone.
func (s *Service) CancelEvent(ctx context.Context, id string) (Event, Result, error) {
	return create(s, ctx, "cancel_event", func(t *txn) (Event, error) {
		return t.cancelEvent(id)
	})
}

// DraftEvent returns a cancelled event to draft without its ledger links.
func (s *Service) DraftEvent(ctx context.Context, id string) (Event, Result, error) {
	return create(s, ctx, "draft_event", func(t *txn) (Event, error) {
		return t.draftEvent(id)
	})
}

func (t *txn) draftEvent(id string) (Event, error) {
	ev, err := t.event(id)
	if err != nil {
		return Event{}, err
	}
	if !IsTransitionAllowed(ev, domain.EventDraft) {
		return Event{}, domain.Errorf(domain.CodeInvalidEventState, "event %s is %s", id, ev.State)
	}
	resetDerived(&ev)
	ev.State = domain.EventDraft
	return t.tx.Events().Update(id, func(stored *Event) error {
		*stored = ev
		return nil
	})
}

func (t *txn) cancelEvent(id string) (Event, error) {
	ev, err := t.event(id)
	if err != nil {
		return Event{}, err
	}
	if ev.State != domain.EventValidated {
		return Event{}, domain.Errorf(domain.CodeInvalidEventState, "event %s is %s", id, ev.State)
	}
	if !IsTransitionAllowed(ev, domain.EventCancelled) {
		return Event{}, domain.Errorf(domain.CodeEventNotCancellable, "%s event %s cannot be cancelled", ev.Kind, id)
	}
	if ev.AnimalID != "" {
		t.tx.LockAnimal(ev.AnimalID)
	}
	// Mark first so cycle recomputation and paired events see it as gone.
	cancelled, err := t.tx.Events().Update(id, func(stored *Event) error {
		stored.State = domain.EventCancelled
		return nil
	})
	if err != nil {
		return Event{}, err
	}
	for _, moveID := range ev.MoveIDs {
		if _, err := t.ledger.Reverse(moveID, ev.Timestamp, eventOrigin(ev.ID)); err != nil {
			return Event{}, err
		}
	}

	switch ev.Kind {
	case domain.EventMove:
		err = t.undoMove(ev)
	case domain.EventRemoval:
		err = t.reviveSubject(ev)
	case domain.EventInsemination:
		err = t.detachFromCycle(ev, ev.Insemination.CycleID, func(c *FemaleCycle) {
			c.InseminationEventIDs = without(c.InseminationEventIDs, ev.ID)
		})
	case domain.EventPregnancyDiagnosis:
		err = t.detachFromCycle(ev, ev.Diagnosis.CycleID, func(c *FemaleCycle) {
			c.DiagnosisEventIDs = without(c.DiagnosisEventIDs, ev.ID)
		})
	case domain.EventAbort:
		err = t.detachFromCycle(ev, ev.Abort.CycleID, func(c *FemaleCycle) {
			c.AbortEventID = ""
		})
	case domain.EventFoster:
		err = t.detachFromCycle(ev, ev.Foster.CycleID, func(c *FemaleCycle) {
			c.FosterEventIDs = without(c.FosterEventIDs, ev.ID)
		})
		if err == nil && ev.Foster.PairEventID != "" {
			if _, ok := t.validatedEvent(ev.Foster.PairEventID); ok {
				_, err = t.cancelEvent(ev.Foster.PairEventID)
			}
		}
	}
	if err != nil {
		return Event{}, err
	}
	return cancelled, nil
}

func (t *txn) undoMove(ev Event) error {
	p := ev.Move
	if p.GroupMoveEventID != "" {
		if _, ok := t.validatedEvent(p.GroupMoveEventID); ok {
			if _, err := t.cancelEvent(p.GroupMoveEventID); err != nil {
				return err
			}
		}
	}
	if p.WeightRecordID != "" {
		if _, ok := t.view.Weights().Get(p.WeightRecordID); ok {
			if err := t.tx.Weights().Delete(p.WeightRecordID); err != nil {
				return err
			}
		}
	}
	return t.reviveSubject(ev)
}

// reviveSubject reactivates a subject that left stock through ev.
func (t *txn) reviveSubject(ev Event) error {
	if ev.AnimalType == domain.AnimalGroupType {
		g, err := t.group(ev.GroupID)
		if err != nil {
			return err
		}
		if g.Active {
			return nil
		}
		sum, err := t.storageSum(g.LotID, noDateBound)
		if err != nil || sum == 0 {
			return err
		}
		return t.restoreSubject(ev)
	}
	a, err := t.animal(ev.AnimalID)
	if err != nil {
		return err
	}
	if a.Active || a.RemovalDate == nil || !a.RemovalDate.Equal(ev.Timestamp) {
		return nil
	}
	return t.restoreSubject(ev)
}

// detachFromCycle unlinks a cancelled event from its cycle, drops the cycle
// when it was the female's last and is left empty, and recomputes states.
func (t *txn) detachFromCycle(ev Event, cycleID string, unlink func(*FemaleCycle)) error {
	if cycleID == "" {
		return t.refreshFemale(ev.AnimalID)
	}
	c, err := t.updateCycle(cycleID, nil, unlink)
	if err != nil {
		return err
	}
	last, _ := t.currentCycle(ev.AnimalID)
	if last.ID == c.ID && cycleEmpty(c) {
		if err := t.tx.Cycles().Delete(c.ID); err != nil {
			return err
		}
	}
	return t.refreshFemale(ev.AnimalID)
}

func cycleEmpty(c FemaleCycle) bool {
	return len(c.InseminationEventIDs) == 0 && len(c.DiagnosisEventIDs) == 0 && len(c.FosterEventIDs) == 0 &&
		c.AbortEventID == "" && c.FarrowingEventID == "" && c.WeaningEventID == ""
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
}
