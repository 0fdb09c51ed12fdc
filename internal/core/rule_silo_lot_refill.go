package core

import (
	"context"
	"fmt"

	"herdcore/pkg/domain"
)

// NewSiloLotRefillRule blocks a feed lot from entering the same silo twice.
// The FIFO attribution of consumption orders lots by their first entry, so a
// second receipt of an old lot would be drawn before newer lots. Event moves
// and inventory corrections are not receipts.
func NewSiloLotRefillRule() domain.Rule {
	return siloLotRefillRule{}
}

type siloLotRefillRule struct{}

func (siloLotRefillRule) Name() string { return "silo_lot_refill" }

func (r siloLotRefillRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	type entry struct{ silo, lot string }
	candidates := make(map[entry]struct{})
	for _, id := range domain.ChangedIDs(changes, domain.EntityMove) {
		m, ok := view.Moves().Get(id)
		if !ok || m.LotID == "" || m.State != domain.MoveDone {
			continue
		}
		loc, ok := view.Locations().Get(m.ToLocationID)
		if !ok || !loc.Silo {
			continue
		}
		candidates[entry{silo: loc.ID, lot: m.LotID}] = struct{}{}
	}
	if len(candidates) == 0 {
		return res, nil
	}
	entries := make(map[entry]int)
	for _, m := range view.Moves().List() {
		if m.State != domain.MoveDone || m.Origin.Kind == domain.OriginEvent || m.Origin.Kind == domain.OriginFeedInventory {
			continue
		}
		k := entry{silo: m.ToLocationID, lot: m.LotID}
		if _, ok := candidates[k]; ok {
			entries[k]++
		}
	}
	for k, n := range entries {
		if n < 2 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("lot %s entered silo %s %d times", k.lot, k.silo, n),
			Entity:   domain.EntityLot,
			EntityID: k.lot,
		})
	}
	return res, nil
}
