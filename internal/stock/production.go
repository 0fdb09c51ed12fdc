package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/pkg/domain"
)

// ProductionRequest describes a production order and its moves.
type ProductionRequest struct {
	BOMID         string
	WarehouseID   string
	LocationID    string
	ProductID     string
	UoMID         string
	Quantity      decimal.Decimal
	EffectiveDate time.Time
	Origin        domain.Origin
	Inputs        []MoveRequest
	Outputs       []MoveRequest
}

// CreateProduction stores a draft production with draft input and output
// moves.
func (l *Ledger) CreateProduction(req ProductionRequest) (domain.Production, error) {
	p, err := l.tx.Productions().Create(domain.Production{
		BOMID:         req.BOMID,
		WarehouseID:   req.WarehouseID,
		LocationID:    req.LocationID,
		ProductID:     req.ProductID,
		UoMID:         req.UoMID,
		Quantity:      req.Quantity,
		EffectiveDate: req.EffectiveDate,
		State:         domain.ProductionDraft,
		Origin:        req.Origin,
	})
	if err != nil {
		return domain.Production{}, err
	}
	var inputs, outputs []string
	for _, in := range req.Inputs {
		in.ProductionID = p.ID
		m, err := l.CreateMove(in)
		if err != nil {
			return domain.Production{}, fmt.Errorf("production input: %w", err)
		}
		inputs = append(inputs, m.ID)
	}
	for _, out := range req.Outputs {
		out.ProductionID = p.ID
		m, err := l.CreateMove(out)
		if err != nil {
			return domain.Production{}, fmt.Errorf("production output: %w", err)
		}
		outputs = append(outputs, m.ID)
	}
	return l.tx.Productions().Update(p.ID, func(p *domain.Production) error {
		p.InputMoveIDs = inputs
		p.OutputMoveIDs = outputs
		return nil
	})
}

func (l *Ledger) advance(id string, from, to domain.ProductionState, moves func(domain.Production) error) (domain.Production, error) {
	p, ok := l.tx.Productions().Get(id)
	if !ok {
		return domain.Production{}, domain.Errorf(domain.CodeNotFound, "production %s", id)
	}
	if p.State != from {
		return domain.Production{}, fmt.Errorf("production %s: cannot go from %s to %s", id, p.State, to)
	}
	if moves != nil {
		if err := moves(p); err != nil {
			return domain.Production{}, err
		}
	}
	return l.tx.Productions().Update(id, func(p *domain.Production) error {
		p.State = to
		return nil
	})
}

// WaitProduction confirms a draft production.
func (l *Ledger) WaitProduction(id string) (domain.Production, error) {
	return l.advance(id, domain.ProductionDraft, domain.ProductionWaiting, nil)
}

// AssignProduction reserves every move of a waiting production.
func (l *Ledger) AssignProduction(id string) (domain.Production, error) {
	return l.advance(id, domain.ProductionWaiting, domain.ProductionAssigned, func(p domain.Production) error {
		if err := l.Assign(p.InputMoveIDs...); err != nil {
			return err
		}
		return l.Assign(p.OutputMoveIDs...)
	})
}

// RunProduction consumes the inputs.
func (l *Ledger) RunProduction(id string) (domain.Production, error) {
	return l.advance(id, domain.ProductionAssigned, domain.ProductionRunning, func(p domain.Production) error {
		return l.Do(p.InputMoveIDs...)
	})
}

// DoneProduction emits the outputs.
func (l *Ledger) DoneProduction(id string) (domain.Production, error) {
	return l.advance(id, domain.ProductionRunning, domain.ProductionDone, func(p domain.Production) error {
		return l.Do(p.OutputMoveIDs...)
	})
}

// Produce creates a production and drives it to done.
func (l *Ledger) Produce(req ProductionRequest) (domain.Production, error) {
	p, err := l.CreateProduction(req)
	if err != nil {
		return domain.Production{}, err
	}
	for _, step := range []func(string) (domain.Production, error){
		l.WaitProduction, l.AssignProduction, l.RunProduction, l.DoneProduction,
	} {
		if p, err = step(p.ID); err != nil {
			return domain.Production{}, err
		}
	}
	return p, nil
}
