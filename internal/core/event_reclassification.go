package core

import (
	"slices"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

// validateReclassification swaps the subject's lot for a lot of another
// product through a production at the farm's production location.
func (t *txn) validateReclassification(ev *Event) error {
	p := ev.Reclassification
	sp, err := t.specie(ev.SpecieID)
	if err != nil {
		return err
	}
	if !slices.Contains(sp.ReclassificationProductIDs, p.ReclassifiedProductID) {
		return domain.Errorf(domain.CodeInvalidReclassificationProduct, "product %s is not a reclassification product of %s", p.ReclassifiedProductID, sp.Name)
	}
	product, err := t.product(p.ReclassifiedProductID)
	if err != nil {
		return err
	}
	old, err := t.subjectLot(*ev)
	if err != nil {
		return err
	}
	if old.ProductID == product.ID {
		return domain.Errorf(domain.CodeInvalidReclassificationProduct, "lot %s already is %s", old.Number, product.Code)
	}
	count, err := t.lotCount(old.ID, ev.LocationID, ev.Timestamp)
	if err != nil {
		return err
	}
	total, err := t.storageSum(old.ID, ev.Timestamp)
	if err != nil {
		return err
	}
	if count < 1 || count != total {
		if err := t.requirePresence(*ev, old, ev.LocationID, max(total, 1), ev.Timestamp); err != nil {
			return err
		}
	}
	production, err := t.productionLocation(ev.FarmID)
	if err != nil {
		return err
	}

	lot, err := t.tx.Lots().Create(Lot{
		Number:     old.Number,
		ProductID:  product.ID,
		AnimalType: ev.AnimalType,
		AnimalID:   ev.AnimalID,
		GroupID:    ev.GroupID,
		CostLines: []domain.LotCostLine{{
			Category:  "reclassification",
			UnitPrice: old.CostPrice(),
			Origin:    eventOrigin(ev.ID),
		}},
	})
	if err != nil {
		return err
	}
	qty := decimal.NewFromInt(int64(count))
	prod, err := t.ledger.Produce(stock.ProductionRequest{
		WarehouseID:   ev.FarmID,
		LocationID:    production,
		ProductID:     product.ID,
		UoMID:         product.DefaultUoMID,
		Quantity:      qty,
		EffectiveDate: ev.Timestamp,
		Origin:        eventOrigin(ev.ID),
		Inputs: []stock.MoveRequest{{
			ProductID:      old.ProductID,
			Quantity:       qty,
			FromLocationID: ev.LocationID,
			ToLocationID:   production,
			LotID:          old.ID,
			EffectiveDate:  ev.Timestamp,
			UnitPrice:      old.CostPrice(),
			Origin:         eventOrigin(ev.ID),
		}},
		Outputs: []stock.MoveRequest{{
			ProductID:      product.ID,
			Quantity:       qty,
			FromLocationID: production,
			ToLocationID:   ev.LocationID,
			LotID:          lot.ID,
			EffectiveDate:  ev.Timestamp,
			UnitPrice:      lot.CostPrice(),
			Origin:         eventOrigin(ev.ID),
		}},
	})
	if err != nil {
		return err
	}
	ev.MoveIDs = append(ev.MoveIDs, prod.InputMoveIDs...)
	ev.MoveIDs = append(ev.MoveIDs, prod.OutputMoveIDs...)
	p.NewLotID = lot.ID
	p.ProductionID = prod.ID

	if _, err := t.tx.Lots().Update(old.ID, func(l *Lot) error {
		l.AnimalID = ""
		l.GroupID = ""
		l.SuccessorLotID = lot.ID
		return nil
	}); err != nil {
		return err
	}
	if ev.AnimalType == domain.AnimalGroupType {
		_, err = t.tx.Groups().Update(ev.GroupID, func(g *AnimalGroup) error {
			g.LotID = lot.ID
			return nil
		})
		return err
	}
	_, err = t.tx.Animals().Update(ev.AnimalID, func(a *Animal) error {
		a.LotID = lot.ID
		return nil
	})
	return err
}
