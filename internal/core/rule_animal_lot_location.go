package core

import (
	"context"
	"fmt"
	"sort"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

// NewAnimalLotLocationRule blocks ledger states where a single animal's lot is
// held in more than one location or in a quantity other than one.
func NewAnimalLotLocationRule() domain.Rule {
	return animalLotLocationRule{}
}

type animalLotLocationRule struct{}

func (animalLotLocationRule) Name() string { return "animal_lot_location" }

func (r animalLotLocationRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	lots := make(map[string]struct{})
	for _, id := range domain.ChangedIDs(changes, domain.EntityMove) {
		m, ok := view.Moves().Get(id)
		if !ok || m.LotID == "" {
			continue
		}
		lots[m.LotID] = struct{}{}
	}
	if len(lots) == 0 {
		return res, nil
	}
	reader := stock.NewReader(view)
	ids := make([]string, 0, len(lots))
	for id := range lots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, lotID := range ids {
		lot, ok := view.Lots().Get(lotID)
		if !ok || !lot.AnimalType.IsIndividual() {
			continue
		}
		locations, err := reader.LotLocations(lotID, noDateBound)
		if err != nil {
			return domain.Result{}, err
		}
		if len(locations) > 1 {
			res.Violations = append(res.Violations, r.violation(lot, fmt.Sprintf("animal lot %s is held in %d locations", lot.Number, len(locations))))
			continue
		}
		for loc, qty := range locations {
			if !qty.Equal(one) {
				res.Violations = append(res.Violations, r.violation(lot, fmt.Sprintf("animal lot %s holds %s units in %s", lot.Number, qty, loc)))
			}
		}
	}
	return res, nil
}

func (r animalLotLocationRule) violation(lot domain.Lot, msg string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityLot,
		EntityID: lot.ID,
	}
}
