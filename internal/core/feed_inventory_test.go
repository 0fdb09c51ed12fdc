package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

var siloStock = stock.Query{LocationIDs: []string{"silo"}, ProductIDs: []string{"prod-feed"}}

// fillSilo receives 5.30 kg of feed-lot-1 into the silo on day0 and keeps a
// group of four in L2 from three days before.
func (f *fixture) fillSilo() AnimalGroup {
	f.t.Helper()
	_, _, err := f.svc.CreateLot(f.ctx, Lot{Base: Base{ID: "feed-lot-1"}, Number: "FL-1", ProductID: "prod-feed"})
	f.check("feed lot", err)
	_, _, err = f.svc.PostMove(f.ctx, stock.MoveRequest{
		ProductID:      "prod-feed",
		Quantity:       dec("5.30"),
		FromLocationID: "supplier",
		ToLocationID:   "silo",
		LotID:          "feed-lot-1",
		EffectiveDate:  day0.Add(9 * time.Hour),
	})
	f.check("fill silo", err)
	return f.group("L2", 4, onDay(-3))
}

// openSilo counts 5.20 kg at noon on day0, which starts the next period.
func (f *fixture) openSilo() FeedInventory {
	f.t.Helper()
	return f.validatedInventory(domain.FeedInventoryReal, day0.Add(12*time.Hour), "5.20")
}

func (f *fixture) feedEvents(inv FeedInventory) []Event {
	f.t.Helper()
	out := make([]Event, 0, len(inv.FeedEventIDs))
	for _, id := range inv.FeedEventIDs {
		ev := f.getEvent(id)
		if ev.Kind != domain.EventFeed || ev.State != domain.EventValidated || ev.Feed.FeedInventoryID != inv.ID {
			f.t.Fatalf("unexpected feed event %+v", ev)
		}
		out = append(out, ev)
	}
	return out
}

var feedLost = stock.Query{LocationIDs: []string{"feed-lost"}, ProductIDs: []string{"prod-feed"}}

func (f *fixture) inventory(kind domain.FeedInventoryKind, at time.Time, qty string) FeedInventory {
	f.t.Helper()
	inv, _, err := f.svc.CreateFeedInventory(f.ctx, FeedInventory{
		Kind:          kind,
		SpecieID:      "pig",
		SiloID:        "silo",
		FeedProductID: "prod-feed",
		Timestamp:     at,
		Quantity:      dec(qty),
	})
	f.check("create inventory", err)
	return inv
}

func (f *fixture) validatedInventory(kind domain.FeedInventoryKind, at time.Time, qty string) FeedInventory {
	f.t.Helper()
	inv := f.inventory(kind, at, qty)
	done, _, err := f.svc.ValidateFeedInventory(f.ctx, inv.ID)
	f.check("validate inventory", err)
	return done
}

func TestRealInventoryAttributesConsumption(t *testing.T) {
	f := newFixture(t)
	g := f.fillSilo()
	first := f.openSilo()
	if len(first.Lines) != 1 || first.Lines[0].AnimalDays != 4 || !first.Lines[0].Consumed.Equal(dec("0.1")) {
		t.Fatalf("expected day0 consumption of the group, got %+v", first.Lines)
	}
	if opening := f.feedEvents(first); len(opening) != 1 || opening[0].GroupID != g.ID || !opening[0].Feed.Quantity.Equal(dec("0.1")) {
		t.Fatalf("expected one opening feed event for the group, got %+v", opening)
	}
	f.animal(domain.AnimalIndividual, "L1", onDay(7))

	inv := f.validatedInventory(domain.FeedInventoryReal, day0.AddDate(0, 0, 7).Add(12*time.Hour), "0.10")
	if inv.State != domain.FeedInventoryValidated || inv.PrevInventoryID != first.ID {
		t.Fatalf("unexpected inventory %+v", inv)
	}
	if len(inv.FeedEventIDs) != 2 {
		t.Fatalf("expected two feed events, got %d", len(inv.FeedEventIDs))
	}
	want := []domain.FeedInventoryLine{
		{LocationID: "L1", AnimalDays: 1, ConsumedPerAnimalDay: dec("0.17586"), Consumed: dec("0.176")},
		{LocationID: "L2", AnimalDays: 28, ConsumedPerAnimalDay: dec("0.17586"), Consumed: dec("4.924")},
	}
	if len(inv.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %+v", len(want), inv.Lines)
	}
	for i, w := range want {
		got := inv.Lines[i]
		if got.LocationID != w.LocationID || got.AnimalDays != w.AnimalDays ||
			!got.ConsumedPerAnimalDay.Equal(w.ConsumedPerAnimalDay) || !got.Consumed.Equal(w.Consumed) {
			t.Fatalf("line %d: expected %+v, got %+v", i, w, got)
		}
	}
	if got := f.quantity(siloStock); !got.Equal(dec("0.10")) {
		t.Fatalf("expected 0.10 left in the silo, got %s", got)
	}

	total := decimal.Zero
	for _, ev := range f.feedEvents(inv) {
		total = total.Add(ev.Feed.Quantity)
	}
	if !total.Equal(dec("5.1")) {
		t.Fatalf("expected 5.1 distributed, got %s", total)
	}
	_, _, err := f.svc.CancelEvent(f.ctx, inv.FeedEventIDs[0])
	expectCode(t, err, domain.CodeEventNotCancellable)

	_, _, err = f.svc.DraftFeedInventory(f.ctx, first.ID)
	expectCode(t, err, domain.CodeExistsLaterRealInventories)

	drafted, _, err := f.svc.DraftFeedInventory(f.ctx, inv.ID)
	if err != nil {
		t.Fatalf("draft inventory: %v", err)
	}
	if drafted.State != domain.FeedInventoryDraft || len(drafted.Lines) != 0 || len(drafted.FeedEventIDs) != 0 {
		t.Fatalf("expected a clean draft, got %+v", drafted)
	}
	if _, err := f.svc.GetEvent(f.ctx, inv.FeedEventIDs[0]); !domain.HasCode(err, domain.CodeNotFound) {
		t.Fatalf("expected emitted feed events to be deleted, got %v", err)
	}
	if got := f.quantity(siloStock); !got.Equal(dec("5.20")) {
		t.Fatalf("expected the silo restored to 5.20, got %s", got)
	}
}

func TestProvisionalInventorySupersededByReal(t *testing.T) {
	f := newFixture(t)
	f.fillSilo()
	f.openSilo()

	prov := f.validatedInventory(domain.FeedInventoryProvisional, day0.AddDate(0, 0, 3).Add(12*time.Hour), "4.00")
	if len(prov.MoveIDs) != 1 {
		t.Fatalf("expected one loss move, got %+v", prov.MoveIDs)
	}
	if got := f.quantity(siloStock); !got.Equal(dec("4")) {
		t.Fatalf("expected 4.00 in the silo, got %s", got)
	}
	if lost := f.quantity(feedLost); !lost.Equal(dec("1.2")) {
		t.Fatalf("expected 1.20 in feed lost and found, got %s", lost)
	}

	closing := f.validatedInventory(domain.FeedInventoryReal, day0.AddDate(0, 0, 7).Add(12*time.Hour), "0.10")
	superseded, err := f.svc.GetFeedInventory(f.ctx, prov.ID)
	if err != nil {
		t.Fatalf("get provisional: %v", err)
	}
	if superseded.State != domain.FeedInventoryCancelled || superseded.SupersededByID != closing.ID {
		t.Fatalf("expected provisional superseded by %s, got %+v", closing.ID, superseded)
	}
	if len(closing.Lines) != 1 {
		t.Fatalf("expected a single line, got %+v", closing.Lines)
	}
	line := closing.Lines[0]
	if line.LocationID != "L2" || line.AnimalDays != 28 || !line.Consumed.Equal(dec("5.1")) {
		t.Fatalf("unexpected line %+v", line)
	}
	if got := f.quantity(siloStock); !got.Equal(dec("0.1")) {
		t.Fatalf("expected 0.10 left in the silo, got %s", got)
	}
}

func TestCancelProvisionalInventory(t *testing.T) {
	f := newFixture(t)
	f.fillSilo()
	prov := f.validatedInventory(domain.FeedInventoryProvisional, day0.AddDate(0, 0, 1), "5.00")
	if _, _, err := f.svc.CancelFeedInventory(f.ctx, prov.ID); err != nil {
		t.Fatalf("cancel provisional: %v", err)
	}
	if got := f.quantity(siloStock); !got.Equal(dec("5.3")) {
		t.Fatalf("expected the loss withdrawn, got %s", got)
	}
	if _, err := f.svc.DeleteFeedInventory(f.ctx, prov.ID); err != nil {
		t.Fatalf("delete cancelled inventory: %v", err)
	}

	closing := f.validatedInventory(domain.FeedInventoryReal, day0.AddDate(0, 0, 1), "5.20")
	_, _, err := f.svc.CancelFeedInventory(f.ctx, closing.ID)
	expectCode(t, err, domain.CodeInvalidEventState)
	_, err = f.svc.DeleteFeedInventory(f.ctx, closing.ID)
	expectCode(t, err, domain.CodeInvalidEventState)
}

func TestFeedInventoryChecks(t *testing.T) {
	f := newFixture(t)
	f.fillSilo()

	missing := f.inventory(domain.FeedInventoryReal, onDay(-1), "0")
	_, _, err := f.svc.ValidateFeedInventory(f.ctx, missing.ID)
	expectCode(t, err, domain.CodeMissingPreviousInventory)

	tooMuch := f.inventory(domain.FeedInventoryReal, onDay(2), "6")
	_, _, err = f.svc.ValidateFeedInventory(f.ctx, tooMuch.ID)
	expectCode(t, err, domain.CodeInvalidInventoryQuantity)

	untouched := f.inventory(domain.FeedInventoryReal, onDay(2), "5.30")
	_, _, err = f.svc.ValidateFeedInventory(f.ctx, untouched.ID)
	expectCode(t, err, domain.CodeInvalidInventoryQuantity)

	_, _, err = f.svc.CreateFeedInventory(f.ctx, FeedInventory{SpecieID: "pig", SiloID: "silo", FeedProductID: "prod-feed", Timestamp: onDay(2), Quantity: dec("-1")})
	expectCode(t, err, domain.CodeInvalidInventoryQuantity)
	_, _, err = f.svc.CreateFeedInventory(f.ctx, FeedInventory{SpecieID: "pig", SiloID: "L1", FeedProductID: "prod-feed", Timestamp: onDay(2), Quantity: dec("1")})
	expectCode(t, err, domain.CodeInvalidConfiguration)
}

func TestManualFeed(t *testing.T) {
	f := newFixture(t)
	g := f.fillSilo()
	feed := func(qty, lotID string, start, end time.Time) Event {
		return Event{Kind: domain.EventFeed, GroupID: g.ID, LocationID: "L2", Timestamp: onDay(2), Feed: &domain.FeedPayload{
			FeedLocationID: "silo",
			FeedProductID:  "prod-feed",
			FeedLotID:      lotID,
			Quantity:       dec(qty),
			StartDate:      start,
			EndDate:        end,
		}}
	}

	ev := f.validated(feed("1.5", "", time.Time{}, time.Time{}))
	if !ev.Feed.StartDate.Equal(day0.AddDate(0, 0, 2)) || !ev.Feed.EndDate.Equal(ev.Feed.StartDate) {
		t.Fatalf("expected the feed day to default to the event day, got %s %s", ev.Feed.StartDate, ev.Feed.EndDate)
	}
	if got := f.quantity(siloStock); !got.Equal(dec("3.8")) {
		t.Fatalf("expected 3.80 in the silo, got %s", got)
	}
	if _, _, err := f.svc.CancelEvent(f.ctx, ev.ID); err != nil {
		t.Fatalf("cancel feed: %v", err)
	}
	if got := f.quantity(siloStock); !got.Equal(dec("5.3")) {
		t.Fatalf("expected 5.30 back in the silo, got %s", got)
	}

	expectCode(t, f.validate(feed("10", "", time.Time{}, time.Time{})), domain.CodeNotEnoughFeedProduct)
	expectCode(t, f.validate(feed("10", "feed-lot-1", time.Time{}, time.Time{})), domain.CodeNotEnoughFeedLot)
	expectCode(t, f.validate(feed("1", "", day0.AddDate(0, 0, 2), day0.AddDate(0, 0, 1))), domain.CodeInvalidDateRange)
	expectCode(t, f.validate(feed("0", "", time.Time{}, time.Time{})), domain.CodeInvalidQuantity)
}

func TestInventoryFollowsReclassifiedLot(t *testing.T) {
	f := newFixture(t)
	g := f.fillSilo()
	f.openSilo()
	re := f.validated(Event{Kind: domain.EventReclassification, GroupID: g.ID, LocationID: "L2", Timestamp: onDay(4), Reclassification: &domain.ReclassificationPayload{
		ReclassifiedProductID: "prod-fattening",
	}})
	if f.lot(g.LotID).SuccessorLotID != re.Reclassification.NewLotID {
		t.Fatalf("expected the old lot to point at %s", re.Reclassification.NewLotID)
	}

	inv := f.validatedInventory(domain.FeedInventoryReal, day0.AddDate(0, 0, 7).Add(12*time.Hour), "0.10")
	if len(inv.Lines) != 1 || inv.Lines[0].AnimalDays != 28 || !inv.Lines[0].Consumed.Equal(dec("5.1")) {
		t.Fatalf("unexpected lines %+v", inv.Lines)
	}
	events := f.feedEvents(inv)
	want := []string{"2.186", "2.914"}
	if len(events) != len(want) {
		t.Fatalf("expected a feed event per lot of the group, got %d", len(events))
	}
	for i, ev := range events {
		if ev.GroupID != g.ID || ev.LocationID != "L2" || !ev.Feed.Quantity.Equal(dec(want[i])) {
			t.Fatalf("event %d: expected %s fed to the group, got %+v", i, want[i], ev)
		}
	}
	if !events[0].Feed.EndDate.Equal(day0.AddDate(0, 0, 3)) || !events[1].Feed.StartDate.Equal(day0.AddDate(0, 0, 4)) {
		t.Fatalf("expected the periods to split on the reclassification day, got %s and %s", events[0].Feed.EndDate, events[1].Feed.StartDate)
	}
	if lost := f.quantity(feedLost); !lost.IsZero() {
		t.Fatalf("expected nothing in feed lost and found, got %s", lost)
	}
}

func TestInventorySplitsOnSiloLotChange(t *testing.T) {
	f := newFixture(t)
	g := f.fillSilo()
	f.openSilo()
	_, _, err := f.svc.CreateLot(f.ctx, Lot{Base: Base{ID: "feed-lot-2"}, Number: "FL-2", ProductID: "prod-feed"})
	f.check("feed lot", err)
	_, _, err = f.svc.PostMove(f.ctx, stock.MoveRequest{
		ProductID:      "prod-feed",
		Quantity:       dec("4"),
		FromLocationID: "supplier",
		ToLocationID:   "silo",
		LotID:          "feed-lot-2",
		EffectiveDate:  onDay(3),
	})
	f.check("refill silo", err)

	inv := f.validatedInventory(domain.FeedInventoryReal, day0.AddDate(0, 0, 7).Add(12*time.Hour), "2.20")
	if len(inv.Lines) != 1 || !inv.Lines[0].ConsumedPerAnimalDay.Equal(dec("0.25")) || !inv.Lines[0].Consumed.Equal(dec("7")) {
		t.Fatalf("unexpected lines %+v", inv.Lines)
	}
	want := []struct {
		lotID      string
		qty        string
		start, end int
	}{
		{"feed-lot-1", "5.2", 1, 6},
		{"feed-lot-2", "1.8", 6, 7},
	}
	events := f.feedEvents(inv)
	if len(events) != len(want) {
		t.Fatalf("expected a feed event per silo lot, got %d", len(events))
	}
	for i, w := range want {
		p := events[i].Feed
		if events[i].GroupID != g.ID || p.FeedLotID != w.lotID || !p.Quantity.Equal(dec(w.qty)) ||
			!p.StartDate.Equal(day0.AddDate(0, 0, w.start)) || !p.EndDate.Equal(day0.AddDate(0, 0, w.end)) {
			t.Fatalf("event %d: expected %+v, got %+v", i, w, p)
		}
	}
	lot1 := stock.Query{LocationIDs: []string{"silo"}, LotIDs: []string{"feed-lot-1"}}
	lot2 := stock.Query{LocationIDs: []string{"silo"}, LotIDs: []string{"feed-lot-2"}}
	if got := f.quantity(lot1); !got.IsZero() {
		t.Fatalf("expected feed-lot-1 used up, got %s", got)
	}
	if got := f.quantity(lot2); !got.Equal(dec("2.2")) {
		t.Fatalf("expected 2.20 of feed-lot-2 left, got %s", got)
	}
}

func TestInventoryReopensSpansAfterAbsence(t *testing.T) {
	f := newFixture(t)
	g := f.fillSilo()
	f.openSilo()
	f.validated(Event{Kind: domain.EventMove, GroupID: g.ID, LocationID: "L2", Timestamp: onDay(3), Move: &domain.MovePayload{ToLocationID: "L3", Quantity: 4}})
	f.validated(Event{Kind: domain.EventMove, GroupID: g.ID, LocationID: "L3", Timestamp: onDay(5), Move: &domain.MovePayload{ToLocationID: "L2", Quantity: 4}})

	inv := f.validatedInventory(domain.FeedInventoryReal, day0.AddDate(0, 0, 7).Add(12*time.Hour), "0.20")
	if len(inv.Lines) != 1 || inv.Lines[0].LocationID != "L2" || inv.Lines[0].AnimalDays != 20 || !inv.Lines[0].Consumed.Equal(dec("5")) {
		t.Fatalf("expected 20 animal-days in L2, got %+v", inv.Lines)
	}
	want := []struct {
		qty        string
		start, end int
	}{
		{"2", 1, 2},
		{"3", 5, 7},
	}
	events := f.feedEvents(inv)
	if len(events) != len(want) {
		t.Fatalf("expected a feed event per stay in L2, got %d", len(events))
	}
	for i, w := range want {
		p := events[i].Feed
		if events[i].GroupID != g.ID || !p.Quantity.Equal(dec(w.qty)) ||
			!p.StartDate.Equal(day0.AddDate(0, 0, w.start)) || !p.EndDate.Equal(day0.AddDate(0, 0, w.end)) {
			t.Fatalf("event %d: expected %+v, got %+v", i, w, p)
		}
	}
}

func TestSiloClose(t *testing.T) {
	d := day0.AddDate(0, 0, 4)
	limit := d.Add(30 * time.Hour)
	if got := siloClose(Location{}, d, limit); !got.Equal(d.Add(23*time.Hour + 59*time.Minute)) {
		t.Fatalf("expected default close at 23:59, got %s", got)
	}
	if got := siloClose(Location{CloseTime: "18:30"}, d, limit); !got.Equal(d.Add(18*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected close at 18:30, got %s", got)
	}
	if got := siloClose(Location{}, d, d.Add(12*time.Hour)); !got.Equal(d.Add(12 * time.Hour)) {
		t.Fatalf("expected close capped at the inventory time, got %s", got)
	}
}
