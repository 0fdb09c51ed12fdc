package core

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"herdcore/pkg/domain"
)

// CreateEventOrder opens a batch of events sharing kind, subject type,
// specie, farm, timestamp and employee.
func (s *Service) CreateEventOrder(ctx context.Context, o EventOrder) (EventOrder, Result, error) {
	return create(s, ctx, "create_event_order", func(t *txn) (EventOrder, error) {
		allowed, ok := allowedSubjects[o.EventKind]
		if !ok {
			return EventOrder{}, domain.Errorf(domain.CodeInvalidConfiguration, "unknown event kind %q", o.EventKind)
		}
		if !slices.Contains(allowed, o.AnimalType) {
			return EventOrder{}, domain.Errorf(domain.CodeIncompatibleAnimalAndEventType, "%s event does not apply to %s", o.EventKind, o.AnimalType)
		}
		if _, err := t.specie(o.SpecieID); err != nil {
			return EventOrder{}, err
		}
		farm, err := t.warehouse(o.FarmID)
		if err != nil {
			return EventOrder{}, err
		}
		o.FarmID = farm.ID
		if o.Timestamp.IsZero() {
			o.Timestamp = t.now
		}
		if err := t.checkTimestamp(o.Timestamp); err != nil {
			return EventOrder{}, err
		}
		if o.Number == "" {
			if line, ok := t.anyFarmLine(o.SpecieID, farm.ID); ok && line.EventOrderSequenceID != "" {
				if o.Number, err = t.nextNumber(line.EventOrderSequenceID); err != nil {
					return EventOrder{}, err
				}
			} else {
				o.Number = fmt.Sprintf("%s/%s", o.EventKind, o.Timestamp.Format("20060102-1504"))
			}
		}
		return t.tx.EventOrders().Create(o)
	})
}

// ConfirmEventOrder validates every draft event of the order in one
// transaction; the first failure rolls back the whole order.
func (s *Service) ConfirmEventOrder(ctx context.Context, id string) (EventOrder, Result, error) {
	return create(s, ctx, "confirm_event_order", func(t *txn) (EventOrder, error) {
		o, err := t.eventOrder(id)
		if err != nil {
			return EventOrder{}, err
		}
		lines := t.orderLines(o, domain.EventDraft)
		sortForValidation(lines)
		for _, ev := range lines {
			if _, err := t.validateEvent(ev.ID); err != nil {
				return EventOrder{}, fmt.Errorf("order %s: %w", o.Number, err)
			}
		}
		return o, nil
	})
}

// CancelEventOrder cancels the validated events of the order, latest first.
func (s *Service) CancelEventOrder(ctx context.Context, id string) (EventOrder, Result, error) {
	return create(s, ctx, "cancel_event_order", func(t *txn) (EventOrder, error) {
		o, err := t.eventOrder(id)
		if err != nil {
			return EventOrder{}, err
		}
		lines := t.orderLines(o, domain.EventValidated)
		sortForValidation(lines)
		for i := len(lines) - 1; i >= 0; i-- {
			// A paired or sibling line may already be gone.
			if _, ok := t.validatedEvent(lines[i].ID); !ok {
				continue
			}
			if _, err := t.cancelEvent(lines[i].ID); err != nil {
				return EventOrder{}, fmt.Errorf("order %s: %w", o.Number, err)
			}
		}
		return o, nil
	})
}

// DraftEventOrder returns the cancelled events of the order to draft.
func (s *Service) DraftEventOrder(ctx context.Context, id string) (EventOrder, Result, error) {
	return create(s, ctx, "draft_event_order", func(t *txn) (EventOrder, error) {
		o, err := t.eventOrder(id)
		if err != nil {
			return EventOrder{}, err
		}
		for _, ev := range t.orderLines(o, domain.EventCancelled) {
			if _, err := t.draftEvent(ev.ID); err != nil {
				return EventOrder{}, fmt.Errorf("order %s: %w", o.Number, err)
			}
		}
		return o, nil
	})
}

// DeleteEventOrder removes an order whose events are all drafts, together
// with those drafts.
func (s *Service) DeleteEventOrder(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_event_order", func(t *txn) (string, error) {
		o, err := t.eventOrder(id)
		if err != nil {
			return id, err
		}
		for _, ev := range t.view.Events().List() {
			if ev.OrderID != o.ID {
				continue
			}
			if err := t.deleteEvent(ev.ID); err != nil {
				return id, err
			}
		}
		return id, t.tx.EventOrders().Delete(id)
	})
}

// OrderEvents lists the events of an order by timestamp.
func (s *Service) OrderEvents(ctx context.Context, id string) ([]Event, error) {
	var out []Event
	err := s.view(ctx, func(r *reader) error {
		o, err := r.eventOrder(id)
		if err != nil {
			return err
		}
		for _, ev := range r.view.Events().List() {
			if ev.OrderID == o.ID {
				out = append(out, ev)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
		return nil
	})
	return out, err
}

func (r *reader) orderLines(o EventOrder, state EventState) []Event {
	var out []Event
	for _, ev := range r.view.Events().List() {
		if ev.OrderID == o.ID && ev.Kind == o.EventKind && ev.State == state {
			out = append(out, ev)
		}
	}
	return out
}
