package core

import (
	"testing"

	"herdcore/pkg/domain"
)

func (f *fixture) order(kind domain.EventKind) EventOrder {
	f.t.Helper()
	o, _, err := f.svc.CreateEventOrder(f.ctx, EventOrder{
		EventKind:  kind,
		AnimalType: domain.AnimalIndividual,
		SpecieID:   "pig",
		FarmID:     "L1",
		Timestamp:  onDay(5),
		Employee:   "ana",
	})
	f.check("create order", err)
	return o
}

func TestEventOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.animal(domain.AnimalIndividual, "L1", onDay(0))
	b := f.animal(domain.AnimalIndividual, "L1", onDay(0))
	o := f.order(domain.EventMove)
	if o.Number != "EO0001" || o.FarmID != "farm" {
		t.Fatalf("unexpected order %+v", o)
	}

	for _, id := range []string{a.ID, b.ID} {
		ev := f.draft(Event{Kind: domain.EventMove, AnimalID: id, OrderID: o.ID, Move: &domain.MovePayload{ToLocationID: "L2"}})
		if !ev.Timestamp.Equal(onDay(5)) || ev.Employee != "ana" {
			t.Fatalf("expected order header on event, got %+v", ev)
		}
	}
	_, _, err := f.svc.CreateEvent(f.ctx, Event{Kind: domain.EventRemoval, AnimalID: a.ID, OrderID: o.ID, Removal: &domain.RemovalPayload{}})
	expectCode(t, err, domain.CodeIncompatibleEventOrder)

	if _, _, err := f.svc.ConfirmEventOrder(f.ctx, o.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if f.locationOf(a.ID) != "L2" || f.locationOf(b.ID) != "L2" {
		t.Fatalf("expected both animals moved to L2")
	}

	if _, _, err := f.svc.CancelEventOrder(f.ctx, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.locationOf(a.ID) != "L1" || f.locationOf(b.ID) != "L1" {
		t.Fatalf("expected both animals back in L1")
	}

	if _, _, err := f.svc.DraftEventOrder(f.ctx, o.ID); err != nil {
		t.Fatalf("draft: %v", err)
	}
	events, err := f.svc.OrderEvents(f.ctx, o.ID)
	if err != nil || len(events) != 2 {
		t.Fatalf("expected 2 order events, got %d %v", len(events), err)
	}
	for _, ev := range events {
		if ev.State != domain.EventDraft {
			t.Fatalf("expected draft events, got %s", ev.State)
		}
	}

	if _, err := f.svc.DeleteEventOrder(f.ctx, o.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetEvent(f.ctx, events[0].ID); !domain.HasCode(err, domain.CodeNotFound) {
		t.Fatalf("expected order events deleted, got %v", err)
	}
}

func TestEventOrderConfirmRollsBack(t *testing.T) {
	f := newFixture(t)
	a := f.animal(domain.AnimalIndividual, "L1", onDay(0))
	b := f.animal(domain.AnimalIndividual, "L1", onDay(0))
	o := f.order(domain.EventMove)
	first := f.draft(Event{Kind: domain.EventMove, AnimalID: a.ID, OrderID: o.ID, Move: &domain.MovePayload{ToLocationID: "L2"}})
	f.draft(Event{Kind: domain.EventMove, AnimalID: b.ID, OrderID: o.ID, Move: &domain.MovePayload{ToLocationID: "L2"}})

	f.validated(Event{Kind: domain.EventRemoval, AnimalID: b.ID, Timestamp: onDay(3), Removal: &domain.RemovalPayload{}})

	_, _, err := f.svc.ConfirmEventOrder(f.ctx, o.ID)
	expectCode(t, err, domain.CodeAnimalNotInLocation)
	if f.getEvent(first.ID).State != domain.EventDraft {
		t.Fatalf("expected the whole order rolled back")
	}
	if f.locationOf(a.ID) != "L1" {
		t.Fatalf("expected animal to stay in L1")
	}
}

func TestEventOrderChecks(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.CreateEventOrder(f.ctx, EventOrder{EventKind: domain.EventFarrowing, AnimalType: domain.AnimalMale, SpecieID: "pig", FarmID: "farm"})
	expectCode(t, err, domain.CodeIncompatibleAnimalAndEventType)
	_, _, err = f.svc.CreateEventOrder(f.ctx, EventOrder{EventKind: domain.EventMove, AnimalType: domain.AnimalIndividual, SpecieID: "pig", FarmID: "farm", Timestamp: clockNow.AddDate(0, 0, 1)})
	expectCode(t, err, domain.CodeTimestampInFuture)
}
