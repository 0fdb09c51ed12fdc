package core

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

const defaultSiloCloseTime = "23:59"

// CreateFeedInventory stores a draft silo count.
func (s *Service) CreateFeedInventory(ctx context.Context, inv FeedInventory) (FeedInventory, Result, error) {
	return create(s, ctx, "create_feed_inventory", func(t *txn) (FeedInventory, error) {
		if inv.Kind == "" {
			inv.Kind = domain.FeedInventoryReal
		}
		if inv.Kind != domain.FeedInventoryReal && inv.Kind != domain.FeedInventoryProvisional {
			return FeedInventory{}, domain.Errorf(domain.CodeInvalidConfiguration, "unknown feed inventory kind %q", inv.Kind)
		}
		silo, err := t.location(inv.SiloID)
		if err != nil {
			return FeedInventory{}, err
		}
		if !silo.Silo {
			return FeedInventory{}, domain.Errorf(domain.CodeInvalidConfiguration, "location %s is not a silo", silo.Name)
		}
		if _, err := t.specie(inv.SpecieID); err != nil {
			return FeedInventory{}, err
		}
		product, err := t.product(inv.FeedProductID)
		if err != nil {
			return FeedInventory{}, err
		}
		if inv.UoMID == "" {
			inv.UoMID = product.DefaultUoMID
		}
		if err := t.requireLocations(inv.DestinationIDs...); err != nil {
			return FeedInventory{}, err
		}
		if inv.Quantity.IsNegative() {
			return FeedInventory{}, domain.Errorf(domain.CodeInvalidInventoryQuantity, "inventory quantity must not be negative, got %s", inv.Quantity)
		}
		if inv.Timestamp.IsZero() {
			inv.Timestamp = t.now
		}
		if err := t.checkTimestamp(inv.Timestamp); err != nil {
			return FeedInventory{}, err
		}
		inv.State = domain.FeedInventoryDraft
		inv.PrevInventoryID = ""
		inv.Lines = nil
		inv.FeedEventIDs = nil
		inv.MoveIDs = nil
		inv.SupersededByID = ""
		return t.tx.FeedInventories().Create(inv)
	})
}

// GetFeedInventory returns a feed inventory.
func (s *Service) GetFeedInventory(ctx context.Context, id string) (FeedInventory, error) {
	var out FeedInventory
	err := s.view(ctx, func(r *reader) error {
		var err error
		out, err = r.feedInventory(id)
		return err
	})
	return out, err
}

// ValidateFeedInventory settles a draft inventory. A real inventory
// attributes the silo consumption since the previous real count to the
// animals fed from it; a provisional one reconciles the silo against the
// feed lost and found.
func (s *Service) ValidateFeedInventory(ctx context.Context, id string) (FeedInventory, Result, error) {
	return create(s, ctx, "validate_feed_inventory", func(t *txn) (FeedInventory, error) {
		inv, err := t.feedInventory(id)
		if err != nil {
			return FeedInventory{}, err
		}
		if inv.State != domain.FeedInventoryDraft {
			return FeedInventory{}, domain.Errorf(domain.CodeInvalidEventState, "feed inventory %s is %s", id, inv.State)
		}
		if inv.Kind == domain.FeedInventoryProvisional {
			err = t.validateProvisionalInventory(&inv)
		} else {
			err = t.validateRealInventory(&inv)
		}
		if err != nil {
			return FeedInventory{}, err
		}
		inv.State = domain.FeedInventoryValidated
		return t.tx.FeedInventories().Update(id, func(stored *FeedInventory) error {
			*stored = inv
			return nil
		})
	})
}

// DraftFeedInventory returns a validated inventory to draft, deleting the
// feed events it emitted and withdrawing its moves.
func (s *Service) DraftFeedInventory(ctx context.Context, id string) (FeedInventory, Result, error) {
	return create(s, ctx, "draft_feed_inventory", func(t *txn) (FeedInventory, error) {
		inv, err := t.feedInventory(id)
		if err != nil {
			return FeedInventory{}, err
		}
		if inv.State != domain.FeedInventoryValidated {
			return FeedInventory{}, domain.Errorf(domain.CodeInvalidEventState, "feed inventory %s is %s", id, inv.State)
		}
		if inv.Kind == domain.FeedInventoryReal {
			if later, ok := t.laterRealInventory(inv); ok {
				return FeedInventory{}, domain.Errorf(domain.CodeExistsLaterRealInventories, "inventory %s of the same silo is later", later.ID)
			}
		}
		if err := t.withdrawInventory(&inv); err != nil {
			return FeedInventory{}, err
		}
		inv.State = domain.FeedInventoryDraft
		return t.tx.FeedInventories().Update(id, func(stored *FeedInventory) error {
			*stored = inv
			return nil
		})
	})
}

// CancelFeedInventory cancels a draft inventory or a validated provisional
// one. Validated real inventories go back to draft first.
func (s *Service) CancelFeedInventory(ctx context.Context, id string) (FeedInventory, Result, error) {
	return create(s, ctx, "cancel_feed_inventory", func(t *txn) (FeedInventory, error) {
		inv, err := t.feedInventory(id)
		if err != nil {
			return FeedInventory{}, err
		}
		switch {
		case inv.State == domain.FeedInventoryDraft:
		case inv.State == domain.FeedInventoryValidated && inv.Kind == domain.FeedInventoryProvisional:
			if err := t.withdrawInventory(&inv); err != nil {
				return FeedInventory{}, err
			}
		default:
			return FeedInventory{}, domain.Errorf(domain.CodeInvalidEventState, "%s %s feed inventory %s cannot be cancelled", inv.State, inv.Kind, id)
		}
		inv.State = domain.FeedInventoryCancelled
		return t.tx.FeedInventories().Update(id, func(stored *FeedInventory) error {
			*stored = inv
			return nil
		})
	})
}

// DeleteFeedInventory removes a draft or cancelled inventory.
func (s *Service) DeleteFeedInventory(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_feed_inventory", func(t *txn) (string, error) {
		inv, err := t.feedInventory(id)
		if err != nil {
			return id, err
		}
		if inv.State == domain.FeedInventoryValidated {
			return id, domain.Errorf(domain.CodeInvalidEventState, "feed inventory %s is validated", id)
		}
		return id, t.tx.FeedInventories().Delete(id)
	})
}

// withdrawInventory deletes emitted feed events, cancels emitted moves and
// clears the derived fields.
func (t *txn) withdrawInventory(inv *FeedInventory) error {
	for _, id := range inv.FeedEventIDs {
		ev, ok := t.view.Events().Get(id)
		if !ok {
			continue
		}
		if err := t.ledger.Cancel(ev.MoveIDs...); err != nil {
			return err
		}
		if err := t.tx.Events().Delete(id); err != nil {
			return err
		}
	}
	if err := t.ledger.Cancel(inv.MoveIDs...); err != nil {
		return err
	}
	inv.PrevInventoryID = ""
	inv.Lines = nil
	inv.FeedEventIDs = nil
	inv.MoveIDs = nil
	return nil
}

func (r *reader) laterRealInventory(inv FeedInventory) (FeedInventory, bool) {
	for _, other := range r.view.FeedInventories().List() {
		if other.ID != inv.ID && other.SiloID == inv.SiloID && other.Kind == domain.FeedInventoryReal &&
			other.State == domain.FeedInventoryValidated && other.Timestamp.After(inv.Timestamp) {
			return other, true
		}
	}
	return FeedInventory{}, false
}

// previousRealInventory returns the latest validated real inventory of the
// silo before inv.
func (r *reader) previousRealInventory(inv FeedInventory) (FeedInventory, bool) {
	var prev FeedInventory
	found := false
	for _, other := range r.view.FeedInventories().List() {
		if other.ID == inv.ID || other.SiloID != inv.SiloID || other.Kind != domain.FeedInventoryReal || other.State != domain.FeedInventoryValidated {
			continue
		}
		if !other.Timestamp.Before(inv.Timestamp) {
			continue
		}
		if !found || other.Timestamp.After(prev.Timestamp) {
			prev, found = other, true
		}
	}
	return prev, found
}

// siloQuantity is the stock of the inventory product in the silo at time at,
// in the inventory unit.
func (r *reader) siloQuantity(inv FeedInventory, at time.Time) (decimal.Decimal, error) {
	product, err := r.product(inv.FeedProductID)
	if err != nil {
		return decimal.Zero, err
	}
	qty, err := r.stock.Quantity(stock.Query{LocationIDs: []string{inv.SiloID}, ProductIDs: []string{product.ID}, At: at})
	if err != nil {
		return decimal.Zero, err
	}
	return r.stock.Convert(qty, product.DefaultUoMID, inv.UoMID)
}

func (t *txn) feedLossLocation(inv FeedInventory) (string, error) {
	sp, err := t.specie(inv.SpecieID)
	if err != nil {
		return "", err
	}
	if sp.FeedLostFoundLocationID == "" {
		return "", domain.Errorf(domain.CodeInvalidConfiguration, "specie %s has no feed lost and found location", sp.Name)
	}
	return sp.FeedLostFoundLocationID, nil
}

func (t *txn) validateProvisionalInventory(inv *FeedInventory) error {
	if later, ok := t.laterRealInventory(*inv); ok {
		return domain.Errorf(domain.CodeExistsLaterRealInventories, "inventory %s of the same silo is later", later.ID)
	}
	have, err := t.siloQuantity(*inv, inv.Timestamp)
	if err != nil {
		return err
	}
	diff := have.Sub(inv.Quantity)
	if diff.IsZero() {
		return nil
	}
	loss, err := t.feedLossLocation(*inv)
	if err != nil {
		return err
	}
	sources, err := t.siloFIFO(inv.SiloID, inv.FeedProductID, inv.UoMID, inv.Timestamp)
	if err != nil {
		return err
	}
	if diff.IsPositive() {
		return t.postFeedLoss(inv, loss, sources, diff)
	}
	// The count exceeds the ledger: bring the surplus back on the newest lot.
	lotID := ""
	if len(sources) > 0 {
		lotID = sources[len(sources)-1].LotID
	}
	m, err := t.ledger.Post(stock.MoveRequest{
		ProductID:      inv.FeedProductID,
		UoMID:          inv.UoMID,
		Quantity:       diff.Neg(),
		FromLocationID: loss,
		ToLocationID:   inv.SiloID,
		LotID:          lotID,
		EffectiveDate:  inv.Timestamp,
		Origin:         domain.Origin{Kind: domain.OriginFeedInventory, ID: inv.ID},
	})
	if err != nil {
		return err
	}
	inv.MoveIDs = append(inv.MoveIDs, m.ID)
	return nil
}

// postFeedLoss moves qty out of the silo into the feed lost and found,
// consuming lots first in first out.
func (t *txn) postFeedLoss(inv *FeedInventory, loss string, sources []feedSource, qty decimal.Decimal) error {
	uom, err := t.uom(inv.UoMID)
	if err != nil {
		return err
	}
	f := &fifo{sources: sources}
	draws := f.take(qty)
	parts := make([]decimal.Decimal, len(draws))
	for i, d := range draws {
		parts[i] = d.Qty
	}
	for i, q := range quantize(parts, uom.Digits) {
		if !q.IsPositive() {
			continue
		}
		m, err := t.ledger.Post(stock.MoveRequest{
			ProductID:      inv.FeedProductID,
			UoMID:          inv.UoMID,
			Quantity:       q,
			FromLocationID: inv.SiloID,
			ToLocationID:   loss,
			LotID:          draws[i].LotID,
			EffectiveDate:  inv.Timestamp,
			Origin:         domain.Origin{Kind: domain.OriginFeedInventory, ID: inv.ID},
		})
		if err != nil {
			return err
		}
		inv.MoveIDs = append(inv.MoveIDs, m.ID)
	}
	return nil
}

// supersedeProvisionals cancels the validated provisional counts of the silo
// between the previous real inventory and inv.
func (t *txn) supersedeProvisionals(inv FeedInventory, after time.Time) error {
	for _, other := range t.view.FeedInventories().List() {
		if other.SiloID != inv.SiloID || other.Kind != domain.FeedInventoryProvisional || other.State != domain.FeedInventoryValidated {
			continue
		}
		if !other.Timestamp.After(after) || other.Timestamp.After(inv.Timestamp) {
			continue
		}
		if err := t.ledger.Cancel(other.MoveIDs...); err != nil {
			return err
		}
		if _, err := t.tx.FeedInventories().Update(other.ID, func(p *FeedInventory) error {
			p.State = domain.FeedInventoryCancelled
			p.SupersededByID = inv.ID
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// feedChunk accumulates the feed one span drew from one silo lot.
type feedChunk struct {
	span  span
	lotID string
	qty   decimal.Decimal
	first time.Time
	last  time.Time
}

func (t *txn) validateRealInventory(inv *FeedInventory) error {
	if later, ok := t.laterRealInventory(*inv); ok {
		return domain.Errorf(domain.CodeExistsLaterRealInventories, "inventory %s of the same silo is later", later.ID)
	}
	silo, err := t.location(inv.SiloID)
	if err != nil {
		return err
	}
	sp, err := t.specie(inv.SpecieID)
	if err != nil {
		return err
	}
	uom, err := t.uom(inv.UoMID)
	if err != nil {
		return err
	}

	var t0 time.Time
	prev, ok := t.previousRealInventory(*inv)
	if ok {
		t0 = prev.Timestamp
		inv.PrevInventoryID = prev.ID
	} else {
		fills := t.stock.DoneMoves(func(m Move) bool {
			return m.ToLocationID == inv.SiloID && m.ProductID == inv.FeedProductID && !m.EffectiveDate.After(inv.Timestamp)
		})
		if len(fills) == 0 {
			return domain.Errorf(domain.CodeMissingPreviousInventory, "silo %s has no previous inventory nor stock", silo.Name)
		}
		t0 = dayOf(fills[0].EffectiveDate).Add(-oneDay)
	}
	if err := t.supersedeProvisionals(*inv, t0); err != nil {
		return err
	}

	have, err := t.siloQuantity(*inv, inv.Timestamp)
	if err != nil {
		return err
	}
	consumed := have.Sub(inv.Quantity)
	if !consumed.IsPositive() {
		return domain.Errorf(domain.CodeInvalidInventoryQuantity, "silo %s holds %s, count of %s must be lower", silo.Name, have, inv.Quantity)
	}
	sources, err := t.siloFIFO(inv.SiloID, inv.FeedProductID, inv.UoMID, inv.Timestamp)
	if err != nil {
		return err
	}

	destinations := inv.DestinationIDs
	if len(destinations) == 0 {
		destinations = silo.LocationsToFed
	}
	spans, err := t.occupancy(destinations, sp.AnimalProducts(), t0, inv.Timestamp)
	if err != nil {
		return err
	}
	perLocation, total := locationAnimalDays(spans)
	if total == 0 {
		loss, err := t.feedLossLocation(*inv)
		if err != nil {
			return err
		}
		return t.postFeedLoss(inv, loss, sources, consumed)
	}
	rate := consumed.Div(decimal.NewFromInt(int64(total)))

	chunks := t.attributeFeed(spans, sources, rate, t0, inv.Timestamp)
	parts := make([]decimal.Decimal, len(chunks))
	for i, c := range chunks {
		parts[i] = c.qty
	}
	var orphan []draw
	for i, q := range quantize(parts, uom.Digits) {
		if !q.IsPositive() {
			continue
		}
		c := chunks[i]
		ev, ok, err := t.emitFeedEvent(inv, silo, c, q)
		if err != nil {
			return err
		}
		if !ok {
			orphan = append(orphan, draw{LotID: c.lotID, Qty: q})
			continue
		}
		inv.FeedEventIDs = append(inv.FeedEventIDs, ev.ID)
	}
	if len(orphan) > 0 {
		loss, err := t.feedLossLocation(*inv)
		if err != nil {
			return err
		}
		for _, d := range orphan {
			if err := t.postFeedLoss(inv, loss, []feedSource{{LotID: d.LotID, Available: d.Qty}}, d.Qty); err != nil {
				return err
			}
		}
	}

	locations := make([]string, 0, len(perLocation))
	for loc := range perLocation {
		locations = append(locations, loc)
	}
	sort.Strings(locations)
	lineParts := make([]decimal.Decimal, len(locations))
	for i, loc := range locations {
		lineParts[i] = rate.Mul(decimal.NewFromInt(int64(perLocation[loc])))
	}
	lineQty := quantize(lineParts, uom.Digits)
	inv.Lines = nil
	for i, loc := range locations {
		inv.Lines = append(inv.Lines, domain.FeedInventoryLine{
			LocationID:           loc,
			AnimalDays:           perLocation[loc],
			ConsumedPerAnimalDay: rate.Round(uom.Digits + 2),
			Consumed:             lineQty[i],
		})
	}
	return nil
}

// attributeFeed walks the period day by day; every open span draws rate per
// animal from the silo lots in FIFO order.
func (t *txn) attributeFeed(spans []span, sources []feedSource, rate decimal.Decimal, t0, t1 time.Time) []*feedChunk {
	type chunkKey struct {
		span  int
		lotID string
	}
	f := &fifo{sources: sources}
	index := make(map[chunkKey]*feedChunk)
	var chunks []*feedChunk
	for d := dayOf(t0).Add(oneDay); !d.After(dayOf(t1)); d = d.Add(oneDay) {
		for i, s := range spans {
			if d.Before(s.Start) || d.After(s.End) {
				continue
			}
			for _, dr := range f.take(rate.Mul(decimal.NewFromInt(int64(s.Qty)))) {
				k := chunkKey{i, dr.LotID}
				c := index[k]
				if c == nil {
					c = &feedChunk{span: s, lotID: dr.LotID, first: d}
					index[k] = c
					chunks = append(chunks, c)
				}
				c.qty = c.qty.Add(dr.Qty)
				c.last = d
			}
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if !a.first.Equal(b.first) {
			return a.first.Before(b.first)
		}
		if a.span.LocationID != b.span.LocationID {
			return a.span.LocationID < b.span.LocationID
		}
		if a.span.LotID != b.span.LotID {
			return a.span.LotID < b.span.LotID
		}
		return a.lotID < b.lotID
	})
	return chunks
}

// emitFeedEvent creates and validates the feed event of a chunk. It reports
// false when the animal lot no longer has an owner to feed.
func (t *txn) emitFeedEvent(inv *FeedInventory, silo Location, c *feedChunk, qty decimal.Decimal) (Event, bool, error) {
	lot, err := t.lotOwner(c.span.LotID)
	if err != nil {
		return Event{}, false, err
	}
	if lot.AnimalID == "" && lot.GroupID == "" {
		return Event{}, false, nil
	}
	ev, err := t.synthesize(Event{
		Kind:       domain.EventFeed,
		AnimalID:   lot.AnimalID,
		GroupID:    lot.GroupID,
		LocationID: c.span.LocationID,
		Timestamp:  siloClose(silo, c.last, inv.Timestamp),
		Feed: &domain.FeedPayload{
			FeedLocationID:  inv.SiloID,
			FeedProductID:   inv.FeedProductID,
			FeedLotID:       c.lotID,
			UoMID:           inv.UoMID,
			Quantity:        qty,
			StartDate:       c.first,
			EndDate:         c.last,
			FeedInventoryID: inv.ID,
		},
	})
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

// lotOwner follows reclassifications from a lot to the lot that now carries
// its animal or group.
func (t *txn) lotOwner(id string) (Lot, error) {
	lot, err := t.lot(id)
	if err != nil {
		return Lot{}, err
	}
	seen := map[string]bool{id: true}
	for lot.AnimalID == "" && lot.GroupID == "" && lot.SuccessorLotID != "" && !seen[lot.SuccessorLotID] {
		seen[lot.SuccessorLotID] = true
		if lot, err = t.lot(lot.SuccessorLotID); err != nil {
			return Lot{}, err
		}
	}
	return lot, nil
}

// siloClose is the silo closing time on day d, capped at limit.
func siloClose(silo Location, d, limit time.Time) time.Time {
	hhmm := silo.CloseTime
	if hhmm == "" {
		hhmm = defaultSiloCloseTime
	}
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		clock, _ = time.Parse("15:04", defaultSiloCloseTime)
	}
	at := dayOf(d).Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
	if at.After(limit) {
		return limit
	}
	return at
}
