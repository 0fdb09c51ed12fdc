package core

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"herdcore/pkg/domain"
)

// allowedSubjects lists the animal types each event kind applies to.
var allowedSubjects = map[EventKind][]AnimalType{
	domain.EventMove:               {domain.AnimalMale, domain.AnimalFemale, domain.AnimalIndividual, domain.AnimalGroupType},
	domain.EventTransformation:     {domain.AnimalMale, domain.AnimalFemale, domain.AnimalIndividual, domain.AnimalGroupType},
	domain.EventRemoval:            {domain.AnimalMale, domain.AnimalFemale, domain.AnimalIndividual, domain.AnimalGroupType},
	domain.EventFeed:               {domain.AnimalMale, domain.AnimalFemale, domain.AnimalIndividual, domain.AnimalGroupType},
	domain.EventMedication:         {domain.AnimalMale, domain.AnimalFemale, domain.AnimalIndividual, domain.AnimalGroupType},
	domain.EventReclassification:   {domain.AnimalMale, domain.AnimalFemale, domain.AnimalIndividual, domain.AnimalGroupType},
	domain.EventInsemination:       {domain.AnimalFemale},
	domain.EventPregnancyDiagnosis: {domain.AnimalFemale},
	domain.EventAbort:              {domain.AnimalFemale},
	domain.EventFarrowing:          {domain.AnimalFemale},
	domain.EventFoster:             {domain.AnimalFemale},
	domain.EventWeaning:            {domain.AnimalFemale},
	domain.EventSemenExtraction:    {domain.AnimalMale},
}

// cancellable lists the kinds with a defined reverse path.
var cancellable = map[EventKind]bool{
	domain.EventMove:               true,
	domain.EventRemoval:            true,
	domain.EventFeed:               true,
	domain.EventMedication:         true,
	domain.EventInsemination:       true,
	domain.EventPregnancyDiagnosis: true,
	domain.EventAbort:              true,
	domain.EventFoster:             true,
}

// prepareEvent resolves the event header from its subject and checks
// compatibility with the subject type and the event order.
func (t *txn) prepareEvent(ev *Event) error {
	if _, ok := allowedSubjects[ev.Kind]; !ok {
		return domain.Errorf(domain.CodeInvalidConfiguration, "unknown event kind %q", ev.Kind)
	}
	if !ev.HasPayload() {
		return domain.Errorf(domain.CodeInvalidConfiguration, "%s event carries no payload", ev.Kind)
	}
	var lotID string
	switch {
	case ev.AnimalID != "" && ev.GroupID != "":
		return domain.Errorf(domain.CodeInvalidConfiguration, "event names both an animal and a group")
	case ev.AnimalID != "":
		a, err := t.animal(ev.AnimalID)
		if err != nil {
			return err
		}
		ev.AnimalType = a.Type
		ev.SpecieID = a.SpecieID
		lotID = a.LotID
	case ev.GroupID != "":
		g, err := t.group(ev.GroupID)
		if err != nil {
			return err
		}
		ev.AnimalType = domain.AnimalGroupType
		ev.SpecieID = g.SpecieID
		lotID = g.LotID
	default:
		return domain.Errorf(domain.CodeInvalidConfiguration, "event has no animal or group")
	}
	if !slices.Contains(allowedSubjects[ev.Kind], ev.AnimalType) {
		return domain.Errorf(domain.CodeIncompatibleAnimalAndEventType, "%s event does not apply to %s", ev.Kind, ev.AnimalType)
	}
	if ev.OrderID != "" {
		order, err := t.eventOrder(ev.OrderID)
		if err != nil {
			return err
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = order.Timestamp
		}
		if ev.Employee == "" {
			ev.Employee = order.Employee
		}
		if order.EventKind != ev.Kind || order.AnimalType != ev.AnimalType || order.SpecieID != ev.SpecieID {
			return domain.Errorf(domain.CodeIncompatibleEventOrder, "%s %s event does not match order %s (%s %s)", ev.AnimalType, ev.Kind, order.Number, order.AnimalType, order.EventKind)
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.now
	}
	if err := t.checkTimestamp(ev.Timestamp); err != nil {
		return err
	}
	if ev.LocationID == "" && ev.AnimalType.IsIndividual() {
		loc, ok, err := t.lotLocation(lotID, ev.Timestamp)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.CodeAnimalNotInLocation, "animal %s is in no location on %s", ev.AnimalID, ev.Timestamp.Format("2006-01-02"))
		}
		ev.LocationID = loc
	}
	if ev.LocationID == "" {
		return domain.Errorf(domain.CodeGroupNotInLocation, "group event needs a location")
	}
	farm, err := t.warehouse(ev.LocationID)
	if err != nil {
		return err
	}
	ev.FarmID = farm.ID
	if ev.OrderID != "" {
		order, _ := t.eventOrder(ev.OrderID)
		if order.FarmID != "" && order.FarmID != ev.FarmID {
			return domain.Errorf(domain.CodeIncompatibleEventOrder, "event farm %s does not match order %s", ev.FarmID, order.Number)
		}
	}
	return nil
}

// createEvent stores a draft event.
func (t *txn) createEvent(ev Event) (Event, error) {
	ev.ID = ""
	ev.State = domain.EventDraft
	ev.MoveIDs = nil
	if err := t.prepareEvent(&ev); err != nil {
		return Event{}, err
	}
	return t.tx.Events().Create(ev)
}

// CreateEvent stores a draft event after resolving its header.
func (s *Service) CreateEvent(ctx context.Context, ev Event) (Event, Result, error) {
	return create(s, ctx, "create_event", func(t *txn) (Event, error) {
		return t.createEvent(ev)
	})
}

// UpdateEvent mutates a draft event.
func (s *Service) UpdateEvent(ctx context.Context, id string, mutator func(*Event) error) (Event, Result, error) {
	return create(s, ctx, "update_event", func(t *txn) (Event, error) {
		current, err := t.event(id)
		if err != nil {
			return Event{}, err
		}
		if current.State != domain.EventDraft {
			return Event{}, domain.Errorf(domain.CodeInvalidEventState, "event %s is %s", id, current.State)
		}
		if err := mutator(&current); err != nil {
			return Event{}, err
		}
		current.State = domain.EventDraft
		current.MoveIDs = nil
		if err := t.prepareEvent(&current); err != nil {
			return Event{}, err
		}
		return t.tx.Events().Update(id, func(stored *Event) error {
			*stored = current
			return nil
		})
	})
}

// DeleteEvent removes a draft event and its doses.
func (s *Service) DeleteEvent(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_event", func(t *txn) (string, error) {
		return id, t.deleteEvent(id)
	})
}

func (t *txn) deleteEvent(id string) error {
	ev, err := t.event(id)
	if err != nil {
		return err
	}
	if ev.State != domain.EventDraft {
		return domain.Errorf(domain.CodeInvalidEventState, "only draft events can be deleted, %s is %s", id, ev.State)
	}
	for _, d := range t.view.Doses().List() {
		if d.EventID == id {
			if err := t.tx.Doses().Delete(d.ID); err != nil {
				return err
			}
		}
	}
	return t.tx.Events().Delete(id)
}

// CopyEvent duplicates an event as a new draft without its ledger links.
func (s *Service) CopyEvent(ctx context.Context, id string) (Event, Result, error) {
	return create(s, ctx, "copy_event", func(t *txn) (Event, error) {
		src, err := t.event(id)
		if err != nil {
			return Event{}, err
		}
		cp := src.Clone()
		resetDerived(&cp)
		return t.createEvent(cp)
	})
}

// resetDerived clears the fields written by validation.
func resetDerived(ev *Event) {
	ev.MoveIDs = nil
	switch {
	case ev.Move != nil:
		ev.Move.WeightRecordID = ""
		ev.Move.GroupMoveEventID = ""
	case ev.Transformation != nil:
		ev.Transformation.OutMoveID = ""
		ev.Transformation.InMoveID = ""
		ev.Transformation.ToAnimalID = ""
	case ev.Feed != nil:
		ev.Feed.FeedInventoryID = ""
	case ev.Insemination != nil:
		ev.Insemination.CycleID = ""
	case ev.Diagnosis != nil:
		ev.Diagnosis.CycleID = ""
	case ev.Abort != nil:
		ev.Abort.CycleID = ""
	case ev.Farrowing != nil:
		ev.Farrowing.ProducedGroupID = ""
		ev.Farrowing.ProducedAnimalIDs = nil
		ev.Farrowing.CycleID = ""
	case ev.Foster != nil:
		ev.Foster.PairEventID = ""
		ev.Foster.CycleID = ""
	case ev.Weaning != nil:
		ev.Weaning.Casualties = 0
		ev.Weaning.TransformationEventID = ""
		ev.Weaning.CycleID = ""
	case ev.Reclassification != nil:
		ev.Reclassification.NewLotID = ""
		ev.Reclassification.ProductionID = ""
	case ev.SemenExtraction != nil:
		ev.SemenExtraction.SemenLotID = ""
	}
}

// ValidateEvent moves a draft event to validated, emitting its ledger moves
// and domain effects in one transaction.
func (s *Service) ValidateEvent(ctx context.Context, id string) (Event, Result, error) {
	return create(s, ctx, "validate_event", func(t *txn) (Event, error) {
		return t.validateEvent(id)
	})
}

// BatchOutcome reports the validation of one event in a batch.
type BatchOutcome struct {
	EventID string
	Event   Event
	Result  Result
	Err     error
}

// ValidateEvents validates events in (timestamp asc, id desc) order. Every
// event runs in its own transaction; a failure does not stop its siblings.
func (s *Service) ValidateEvents(ctx context.Context, ids []string) ([]BatchOutcome, error) {
	ordered, err := s.orderEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]BatchOutcome, 0, len(ordered))
	for _, id := range ordered {
		ev, res, err := s.ValidateEvent(ctx, id)
		out = append(out, BatchOutcome{EventID: id, Event: ev, Result: res, Err: err})
	}
	return out, nil
}

// ValidatePendingEvents validates every draft event not linked to an order
// whose timestamp has passed.
func (s *Service) ValidatePendingEvents(ctx context.Context) ([]BatchOutcome, error) {
	var ids []string
	now := s.now()
	err := s.view(ctx, func(r *reader) error {
		for _, ev := range r.view.Events().List() {
			if ev.State == domain.EventDraft && ev.OrderID == "" && !ev.Timestamp.After(now) {
				ids = append(ids, ev.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ValidateEvents(ctx, ids)
}

func (s *Service) orderEvents(ctx context.Context, ids []string) ([]string, error) {
	var events []Event
	err := s.view(ctx, func(r *reader) error {
		for _, id := range ids {
			ev, err := r.event(id)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortForValidation(events)
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out, nil
}

func sortForValidation(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].ID > events[j].ID
	})
}

func (t *txn) validateEvent(id string) (Event, error) {
	ev, err := t.event(id)
	if err != nil {
		return Event{}, err
	}
	if ev.State != domain.EventDraft {
		return Event{}, domain.Errorf(domain.CodeInvalidEventState, "event %s is %s", id, ev.State)
	}
	if err := t.prepareEvent(&ev); err != nil {
		return Event{}, err
	}
	if err := t.dispatch(&ev); err != nil {
		return Event{}, fmt.Errorf("validate %s event %s: %w", ev.Kind, ev.ID, err)
	}
	ev.State = domain.EventValidated
	return t.tx.Events().Update(id, func(stored *Event) error {
		*stored = ev
		return nil
	})
}

func (t *txn) dispatch(ev *Event) error {
	switch ev.Kind {
	case domain.EventMove:
		return t.validateMove(ev)
	case domain.EventTransformation:
		return t.validateTransformation(ev)
	case domain.EventRemoval:
		return t.validateRemoval(ev)
	case domain.EventFeed, domain.EventMedication:
		return t.validateFeed(ev)
	case domain.EventInsemination:
		return t.validateInsemination(ev)
	case domain.EventPregnancyDiagnosis:
		return t.validateDiagnosis(ev)
	case domain.EventAbort:
		return t.validateAbort(ev)
	case domain.EventFarrowing:
		return t.validateFarrowing(ev)
	case domain.EventFoster:
		return t.validateFoster(ev)
	case domain.EventWeaning:
		return t.validateWeaning(ev)
	case domain.EventReclassification:
		return t.validateReclassification(ev)
	case domain.EventSemenExtraction:
		return t.validateSemenExtraction(ev)
	}
	return domain.Errorf(domain.CodeInvalidConfiguration, "unknown event kind %q", ev.Kind)
}

// synthesize creates and validates a derived event inside the current
// transaction.
func (t *txn) synthesize(ev Event) (Event, error) {
	created, err := t.createEvent(ev)
	if err != nil {
		return Event{}, err
	}
	return t.validateEvent(created.ID)
}

// GetEvent returns an event.
func (s *Service) GetEvent(ctx context.Context, id string) (Event, error) {
	var out Event
	err := s.view(ctx, func(r *reader) error {
		var err error
		out, err = r.event(id)
		return err
	})
	return out, err
}

// IsTransitionAllowed reports whether an event may move to state to:
// draft to validated, validated to cancelled for kinds with a reverse path,
// and cancelled back to draft.
func IsTransitionAllowed(ev Event, to EventState) bool {
	switch {
	case ev.State == domain.EventDraft && to == domain.EventValidated:
		return true
	case ev.State == domain.EventValidated && to == domain.EventCancelled:
		return cancellable[ev.Kind] && (ev.Feed == nil || ev.Feed.FeedInventoryID == "")
	case ev.State == domain.EventCancelled && to == domain.EventDraft:
		return true
	}
	return false
}
