// Package stock implements the inventory ledger consumed by the animal
// lifecycle engine: moves between locations, lot quantities, unit conversion
// and production orders, all inside one domain transaction.
package stock

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/pkg/domain"
)

// Reader answers stock queries over a read-only view.
type Reader struct {
	view domain.TransactionView
}

// NewReader binds a reader to view.
func NewReader(view domain.TransactionView) *Reader {
	return &Reader{view: view}
}

// Ledger operates on the tables of a single transaction. Its embedded Reader
// sees the writes made through the ledger.
type Ledger struct {
	*Reader
	tx domain.Transaction
}

// NewLedger binds a ledger to tx.
func NewLedger(tx domain.Transaction) *Ledger {
	return &Ledger{Reader: NewReader(tx.Snapshot()), tx: tx}
}

// MoveRequest describes a move to create. UoMID defaults to the product unit.
type MoveRequest struct {
	ProductID      string
	UoMID          string
	Quantity       decimal.Decimal
	FromLocationID string
	ToLocationID   string
	LotID          string
	EffectiveDate  time.Time
	UnitPrice      decimal.Decimal
	Origin         domain.Origin
	ProductionID   string
}

// CreateMove stores a draft move after checking its references.
func (l *Ledger) CreateMove(req MoveRequest) (domain.Move, error) {
	product, ok := l.tx.Products().Get(req.ProductID)
	if !ok {
		return domain.Move{}, domain.Errorf(domain.CodeNotFound, "product %s", req.ProductID)
	}
	if req.UoMID == "" {
		req.UoMID = product.DefaultUoMID
	}
	if _, ok := l.tx.UoMs().Get(req.UoMID); !ok {
		return domain.Move{}, domain.Errorf(domain.CodeNotFound, "unit %s", req.UoMID)
	}
	if !req.Quantity.IsPositive() {
		return domain.Move{}, domain.Errorf(domain.CodeInvalidQuantity, "move quantity %s must be positive", req.Quantity)
	}
	for _, id := range []string{req.FromLocationID, req.ToLocationID} {
		if _, ok := l.tx.Locations().Get(id); !ok {
			return domain.Move{}, domain.Errorf(domain.CodeNotFound, "location %q", id)
		}
	}
	if req.LotID != "" {
		lot, ok := l.tx.Lots().Get(req.LotID)
		if !ok {
			return domain.Move{}, domain.Errorf(domain.CodeNotFound, "lot %s", req.LotID)
		}
		if lot.ProductID != req.ProductID {
			return domain.Move{}, fmt.Errorf("lot %s belongs to product %s, not %s", lot.ID, lot.ProductID, req.ProductID)
		}
	}
	return l.tx.Moves().Create(domain.Move{
		ProductID:      req.ProductID,
		UoMID:          req.UoMID,
		Quantity:       req.Quantity,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		LotID:          req.LotID,
		PlannedDate:    req.EffectiveDate,
		EffectiveDate:  req.EffectiveDate,
		UnitPrice:      req.UnitPrice,
		State:          domain.MoveDraft,
		Origin:         req.Origin,
		ProductionID:   req.ProductionID,
	})
}

func (l *Ledger) transition(id string, from []domain.MoveState, to domain.MoveState) error {
	_, err := l.tx.Moves().Update(id, func(m *domain.Move) error {
		for _, s := range from {
			if m.State == s {
				m.State = to
				return nil
			}
		}
		return fmt.Errorf("move %s: cannot go from %s to %s", id, m.State, to)
	})
	return err
}

// Assign reserves draft moves.
func (l *Ledger) Assign(ids ...string) error {
	for _, id := range ids {
		if err := l.transition(id, []domain.MoveState{domain.MoveDraft}, domain.MoveAssigned); err != nil {
			return err
		}
	}
	return nil
}

// Do completes assigned moves; only done moves count towards stock.
func (l *Ledger) Do(ids ...string) error {
	for _, id := range ids {
		if err := l.transition(id, []domain.MoveState{domain.MoveAssigned}, domain.MoveDone); err != nil {
			return err
		}
	}
	return nil
}

// Cancel withdraws moves from stock accounting.
func (l *Ledger) Cancel(ids ...string) error {
	states := []domain.MoveState{domain.MoveDraft, domain.MoveAssigned, domain.MoveDone}
	for _, id := range ids {
		if err := l.transition(id, states, domain.MoveCancelled); err != nil {
			return err
		}
	}
	return nil
}

// Post creates, assigns and completes a move.
func (l *Ledger) Post(req MoveRequest) (domain.Move, error) {
	m, err := l.CreateMove(req)
	if err != nil {
		return domain.Move{}, err
	}
	if err := l.Assign(m.ID); err != nil {
		return domain.Move{}, err
	}
	if err := l.Do(m.ID); err != nil {
		return domain.Move{}, err
	}
	m.State = domain.MoveDone
	return m, nil
}

// Reverse posts the inverse of a done move at the given date.
func (l *Ledger) Reverse(id string, at time.Time, origin domain.Origin) (domain.Move, error) {
	m, ok := l.tx.Moves().Get(id)
	if !ok {
		return domain.Move{}, domain.Errorf(domain.CodeNotFound, "move %s", id)
	}
	if m.State != domain.MoveDone {
		return domain.Move{}, fmt.Errorf("move %s is %s, only done moves can be reversed", id, m.State)
	}
	return l.Post(MoveRequest{
		ProductID:      m.ProductID,
		UoMID:          m.UoMID,
		Quantity:       m.Quantity,
		FromLocationID: m.ToLocationID,
		ToLocationID:   m.FromLocationID,
		LotID:          m.LotID,
		EffectiveDate:  at,
		UnitPrice:      m.UnitPrice,
		Origin:         origin,
	})
}

// DoneMoves returns done moves accepted by keep, ordered by effective date
// then id.
func (r *Reader) DoneMoves(keep func(domain.Move) bool) []domain.Move {
	var out []domain.Move
	for _, m := range r.view.Moves().List() {
		if m.State != domain.MoveDone {
			continue
		}
		if keep == nil || keep(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EffectiveDate.Equal(out[j].EffectiveDate) {
			return out[i].EffectiveDate.Before(out[j].EffectiveDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Convert expresses qty of unit from in unit to.
func (r *Reader) Convert(qty decimal.Decimal, from, to string) (decimal.Decimal, error) {
	return Convert(r.view.UoMs(), qty, from, to)
}

// Convert expresses qty of unit from in unit to using the unit table.
func Convert(units domain.ReadTable[domain.UoM], qty decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return qty, nil
	}
	a, ok := units.Get(from)
	if !ok {
		return decimal.Zero, domain.Errorf(domain.CodeUnitConversion, "unknown unit %s", from)
	}
	b, ok := units.Get(to)
	if !ok {
		return decimal.Zero, domain.Errorf(domain.CodeUnitConversion, "unknown unit %s", to)
	}
	if a.Category != b.Category {
		return decimal.Zero, domain.Errorf(domain.CodeUnitConversion, "cannot convert %s (%s) to %s (%s)", a.Name, a.Category, b.Name, b.Category)
	}
	if b.Factor.IsZero() {
		return decimal.Zero, domain.Errorf(domain.CodeUnitConversion, "unit %s has no factor", b.Name)
	}
	return qty.Mul(a.Factor).Div(b.Factor), nil
}
