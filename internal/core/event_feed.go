package core

import (
	"time"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

// validateFeed handles feed and medication events: consumption of a silo
// product by the subject over [StartDate, EndDate].
func (t *txn) validateFeed(ev *Event) error {
	p := ev.Feed
	if p.EndDate.IsZero() {
		p.EndDate = dayOf(ev.Timestamp)
	}
	if p.StartDate.IsZero() {
		p.StartDate = p.EndDate
	}
	if p.StartDate.After(p.EndDate) {
		return domain.Errorf(domain.CodeInvalidDateRange, "start %s is after end %s", p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly))
	}
	if !p.Quantity.IsPositive() {
		return domain.Errorf(domain.CodeInvalidQuantity, "%s quantity must be positive, got %s", ev.Kind, p.Quantity)
	}
	product, err := t.product(p.FeedProductID)
	if err != nil {
		return err
	}
	if p.UoMID == "" {
		p.UoMID = product.DefaultUoMID
	}
	if _, err := t.location(p.FeedLocationID); err != nil {
		return err
	}

	// Events emitted by a feed inventory were derived from occupancy already.
	if p.FeedInventoryID == "" {
		lot, err := t.subjectLot(*ev)
		if err != nil {
			return err
		}
		for _, at := range []time.Time{endOfDay(p.StartDate), endOfDay(p.EndDate)} {
			if err := t.requirePresence(*ev, lot, ev.LocationID, 1, at); err != nil {
				return err
			}
		}
		if err := t.requireFeedStock(p, product, ev.Timestamp); err != nil {
			return err
		}
	}

	production, err := t.productionLocation(ev.FarmID)
	if err != nil {
		return err
	}
	move, err := t.ledger.Post(stock.MoveRequest{
		ProductID:      p.FeedProductID,
		UoMID:          p.UoMID,
		Quantity:       p.Quantity,
		FromLocationID: p.FeedLocationID,
		ToLocationID:   production,
		LotID:          p.FeedLotID,
		EffectiveDate:  ev.Timestamp,
		UnitPrice:      t.supplyPrice(p.FeedLotID, product),
		Origin:         eventOrigin(ev.ID),
	})
	if err != nil {
		return err
	}
	ev.MoveIDs = append(ev.MoveIDs, move.ID)
	return nil
}

// requireFeedStock checks the silo holds the requested quantity, expressed in
// the product default unit, of the lot or else of the product.
func (t *txn) requireFeedStock(p *domain.FeedPayload, product Product, at time.Time) error {
	need, err := t.stock.Convert(p.Quantity, p.UoMID, product.DefaultUoMID)
	if err != nil {
		return err
	}
	q := stock.Query{LocationIDs: []string{p.FeedLocationID}, ProductIDs: []string{product.ID}, At: at}
	if p.FeedLotID != "" {
		q.LotIDs = []string{p.FeedLotID}
	}
	have, err := t.stock.Quantity(q)
	if err != nil {
		return err
	}
	if have.GreaterThanOrEqual(need) {
		return nil
	}
	if p.FeedLotID != "" {
		return domain.Errorf(domain.CodeNotEnoughFeedLot, "lot %s has %s of %s needed at %s", p.FeedLotID, have, need, p.FeedLocationID)
	}
	return domain.Errorf(domain.CodeNotEnoughFeedProduct, "product %s has %s of %s needed at %s", product.Code, have, need, p.FeedLocationID)
}

func (t *txn) supplyPrice(lotID string, product Product) decimal.Decimal {
	if lotID != "" {
		if lot, err := t.lot(lotID); err == nil && len(lot.CostLines) > 0 {
			return lot.CostPrice()
		}
	}
	return product.CostPrice
}
