package stock

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/pkg/domain"
)

// Key identifies a stock position.
type Key struct {
	LocationID string
	ProductID  string
	LotID      string
}

// Query filters ProductsByLocation. Empty slices match everything; a zero At
// means no date bound, otherwise moves effective after At are ignored.
type Query struct {
	LocationIDs []string
	ProductIDs  []string
	LotIDs      []string
	At          time.Time
}

func (q Query) match(m domain.Move) (from, to bool) {
	if !q.At.IsZero() && m.EffectiveDate.After(q.At) {
		return false, false
	}
	if len(q.ProductIDs) > 0 && !slices.Contains(q.ProductIDs, m.ProductID) {
		return false, false
	}
	if len(q.LotIDs) > 0 && !slices.Contains(q.LotIDs, m.LotID) {
		return false, false
	}
	if len(q.LocationIDs) == 0 {
		return true, true
	}
	return slices.Contains(q.LocationIDs, m.FromLocationID), slices.Contains(q.LocationIDs, m.ToLocationID)
}

// ProductsByLocation sums done moves into per-position quantities expressed in
// each product's default unit. Positions that net to zero are omitted.
func (r *Reader) ProductsByLocation(q Query) (map[Key]decimal.Decimal, error) {
	out := make(map[Key]decimal.Decimal)
	for _, m := range r.view.Moves().List() {
		if m.State != domain.MoveDone {
			continue
		}
		from, to := q.match(m)
		if !from && !to {
			continue
		}
		qty, err := r.defaultQuantity(m)
		if err != nil {
			return nil, err
		}
		if from {
			k := Key{LocationID: m.FromLocationID, ProductID: m.ProductID, LotID: m.LotID}
			out[k] = out[k].Sub(qty)
		}
		if to {
			k := Key{LocationID: m.ToLocationID, ProductID: m.ProductID, LotID: m.LotID}
			out[k] = out[k].Add(qty)
		}
	}
	for k, v := range out {
		if v.IsZero() {
			delete(out, k)
		}
	}
	return out, nil
}

// Quantity sums every position matched by q.
func (r *Reader) Quantity(q Query) (decimal.Decimal, error) {
	positions, err := r.ProductsByLocation(q)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, v := range positions {
		total = total.Add(v)
	}
	return total, nil
}

// LotLocations returns the stock-bearing locations holding a positive
// quantity of lot at time at.
func (r *Reader) LotLocations(lotID string, at time.Time) (map[string]decimal.Decimal, error) {
	positions, err := r.ProductsByLocation(Query{LotIDs: []string{lotID}, At: at})
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal)
	for k, v := range positions {
		if !v.IsPositive() {
			continue
		}
		loc, ok := r.view.Locations().Get(k.LocationID)
		if !ok || !loc.StockBearing() {
			continue
		}
		out[k.LocationID] = out[k.LocationID].Add(v)
	}
	return out, nil
}

// LotQuantity returns the quantity of lot held at the given locations.
func (r *Reader) LotQuantity(lotID string, locationIDs []string, at time.Time) (decimal.Decimal, error) {
	return r.Quantity(Query{LocationIDs: locationIDs, LotIDs: []string{lotID}, At: at})
}

func (r *Reader) defaultQuantity(m domain.Move) (decimal.Decimal, error) {
	product, ok := r.view.Products().Get(m.ProductID)
	if !ok || product.DefaultUoMID == "" || product.DefaultUoMID == m.UoMID {
		return m.Quantity, nil
	}
	return r.Convert(m.Quantity, m.UoMID, product.DefaultUoMID)
}
