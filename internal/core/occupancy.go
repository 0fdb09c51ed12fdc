package core

import (
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
)

const oneDay = 24 * time.Hour

// span is an uninterrupted stay of qty animals of one lot in one location,
// covering whole days Start through End.
type span struct {
	LocationID string
	LotID      string
	Qty        int
	Start      time.Time
	End        time.Time
}

// Days is the number of calendar days the span covers.
func (s span) Days() int {
	return int(s.End.Sub(s.Start)/oneDay) + 1
}

// AnimalDays is Qty times Days.
func (s span) AnimalDays() int {
	return s.Qty * s.Days()
}

type spanKey struct {
	locationID string
	lotID      string
}

// occupancy reconstructs which animal lots stood in the destinations on each
// day after t0 up to t1. Stock is seeded at the end of t0's day, then walked
// day by day: a departure closes the open span the day before and reopens it
// with the remainder, an arrival closes it and reopens it with the sum.
func (r *reader) occupancy(destinations, products []string, t0, t1 time.Time) ([]span, error) {
	if len(destinations) == 0 || len(products) == 0 {
		return nil, nil
	}
	positions := func(at time.Time) (map[spanKey]int, error) {
		raw, err := r.stock.ProductsByLocation(stock.Query{LocationIDs: destinations, ProductIDs: products, At: at})
		if err != nil {
			return nil, err
		}
		out := make(map[spanKey]int, len(raw))
		for k, v := range raw {
			// Moves between two destinations show up on both sides.
			if !slices.Contains(destinations, k.LocationID) {
				continue
			}
			if n := int(v.IntPart()); n > 0 {
				out[spanKey{k.LocationID, k.LotID}] = out[spanKey{k.LocationID, k.LotID}] + n
			}
		}
		return out, nil
	}

	first := dayOf(t0).Add(oneDay)
	last := dayOf(t1)
	current, err := positions(endOfDay(t0))
	if err != nil {
		return nil, err
	}
	open := make(map[spanKey]*span, len(current))
	for k, n := range current {
		open[k] = &span{LocationID: k.locationID, LotID: k.lotID, Qty: n, Start: first}
	}
	var closed []span
	closeAt := func(k spanKey, end time.Time) {
		s := open[k]
		delete(open, k)
		if s == nil || end.Before(s.Start) {
			return
		}
		s.End = end
		closed = append(closed, *s)
	}

	for d := first; !d.After(last); d = d.Add(oneDay) {
		at := endOfDay(d)
		if at.After(t1) {
			at = t1
		}
		next, err := positions(at)
		if err != nil {
			return nil, err
		}
		keys := make(map[spanKey]struct{}, len(next)+len(open))
		for k := range next {
			keys[k] = struct{}{}
		}
		for k := range open {
			keys[k] = struct{}{}
		}
		for k := range keys {
			have := 0
			if s := open[k]; s != nil {
				have = s.Qty
			}
			now := next[k]
			if now == have {
				continue
			}
			closeAt(k, d.Add(-oneDay))
			if now > 0 {
				open[k] = &span{LocationID: k.locationID, LotID: k.lotID, Qty: now, Start: d}
			}
		}
	}
	for k := range open {
		closeAt(k, last)
	}
	sort.Slice(closed, func(i, j int) bool {
		a, b := closed[i], closed[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		return a.LotID < b.LotID
	})
	return closed, nil
}

// locationAnimalDays sums animal-days per location.
func locationAnimalDays(spans []span) (map[string]int, int) {
	per := make(map[string]int)
	total := 0
	for _, s := range spans {
		n := s.AnimalDays()
		per[s.LocationID] += n
		total += n
	}
	return per, total
}

// feedSource is one silo lot available to FIFO consumption.
type feedSource struct {
	LotID     string
	Available decimal.Decimal
	firstIn   time.Time
}

// siloFIFO lists the lots of product held in silo at time at, in uomID, oldest
// first entry first.
func (r *reader) siloFIFO(siloID, productID, uomID string, at time.Time) ([]feedSource, error) {
	positions, err := r.stock.ProductsByLocation(stock.Query{LocationIDs: []string{siloID}, ProductIDs: []string{productID}, At: at})
	if err != nil {
		return nil, err
	}
	product, err := r.product(productID)
	if err != nil {
		return nil, err
	}
	var out []feedSource
	for k, v := range positions {
		if k.LocationID != siloID || !v.IsPositive() {
			continue
		}
		qty, err := r.stock.Convert(v, product.DefaultUoMID, uomID)
		if err != nil {
			return nil, err
		}
		src := feedSource{LotID: k.LotID, Available: qty}
		for _, m := range r.stock.DoneMoves(func(m Move) bool {
			return m.ToLocationID == siloID && m.ProductID == productID && m.LotID == k.LotID
		}) {
			src.firstIn = m.EffectiveDate
			break
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].firstIn.Equal(out[j].firstIn) {
			return out[i].firstIn.Before(out[j].firstIn)
		}
		return out[i].LotID < out[j].LotID
	})
	return out, nil
}

// fifo hands out quantities from sources in order. The last source absorbs
// any overdraw.
type fifo struct {
	sources []feedSource
	head    int
}

type draw struct {
	LotID string
	Qty   decimal.Decimal
}

func (f *fifo) take(need decimal.Decimal) []draw {
	var out []draw
	for need.IsPositive() && len(f.sources) > 0 {
		src := &f.sources[f.head]
		qty := need
		if f.head < len(f.sources)-1 && src.Available.LessThan(need) {
			qty = src.Available
		}
		if qty.IsPositive() {
			out = append(out, draw{LotID: src.LotID, Qty: qty})
		}
		src.Available = src.Available.Sub(qty)
		need = need.Sub(qty)
		if !src.Available.IsPositive() && f.head < len(f.sources)-1 {
			f.head++
		}
	}
	return out
}

// quantize rounds a running series so the rounded parts sum to the rounded
// total.
func quantize(parts []decimal.Decimal, digits int32) []decimal.Decimal {
	out := make([]decimal.Decimal, len(parts))
	cum := decimal.Zero
	prev := decimal.Zero
	for i, p := range parts {
		cum = cum.Add(p)
		rounded := cum.Round(digits)
		out[i] = rounded.Sub(prev)
		prev = rounded
	}
	return out
}
