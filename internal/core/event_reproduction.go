package core

import (
	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

func (t *txn) validateInsemination(ev *Event) error {
	p := ev.Insemination
	t.tx.LockAnimal(ev.AnimalID)
	female, err := t.animal(ev.AnimalID)
	if err != nil {
		return err
	}
	c, ok := t.currentCycle(female.ID)
	if ok && c.State != domain.CycleMated && c.State != domain.CycleUnmated {
		return domain.Errorf(domain.CodeIncompatibleCycleState, "female %s cycle %d is %s", female.Number, c.Sequence, c.State)
	}
	if !ok || c.Closed() || c.WeaningEventID != "" {
		if c, err = t.openCycle(female, *ev); err != nil {
			return err
		}
	}

	productID := p.DoseProductID
	if productID == "" {
		sp, err := t.specie(ev.SpecieID)
		if err != nil {
			return err
		}
		if sp.SemenProductID == "" {
			return domain.Errorf(domain.CodeInvalidConfiguration, "specie %s has no semen product", sp.Name)
		}
		productID = sp.SemenProductID
	}
	product, err := t.product(productID)
	if err != nil {
		return err
	}
	farm, err := t.location(ev.FarmID)
	if err != nil {
		return err
	}
	if farm.StorageLocationID == "" {
		return domain.Errorf(domain.CodeInvalidConfiguration, "farm %s has no storage location", farm.Name)
	}
	q := stock.Query{LocationIDs: []string{farm.StorageLocationID}, ProductIDs: []string{productID}, At: ev.Timestamp}
	if p.DoseLotID != "" {
		q.LotIDs = []string{p.DoseLotID}
	}
	have, err := t.stock.Quantity(q)
	if err != nil {
		return err
	}
	if have.LessThan(one) {
		return domain.Errorf(domain.CodeDoseNotInFarm, "no %s dose in farm %s", product.Code, farm.Name)
	}
	production, err := t.productionLocation(farm.ID)
	if err != nil {
		return err
	}
	move, err := t.ledger.Post(stock.MoveRequest{
		ProductID:      productID,
		Quantity:       decimal.NewFromInt(1),
		FromLocationID: farm.StorageLocationID,
		ToLocationID:   production,
		LotID:          p.DoseLotID,
		EffectiveDate:  ev.Timestamp,
		UnitPrice:      t.supplyPrice(p.DoseLotID, product),
		Origin:         eventOrigin(ev.ID),
	})
	if err != nil {
		return err
	}
	ev.MoveIDs = append(ev.MoveIDs, move.ID)

	p.CycleID = c.ID
	if _, err := t.updateCycle(c.ID, ev, func(c *FemaleCycle) {
		c.InseminationEventIDs = append(c.InseminationEventIDs, ev.ID)
	}); err != nil {
		return err
	}
	return t.refreshFemale(female.ID)
}

func (t *txn) validateDiagnosis(ev *Event) error {
	t.tx.LockAnimal(ev.AnimalID)
	c, err := t.requireCycleState(ev.AnimalID, domain.CycleMated, domain.CyclePregnant)
	if err != nil {
		return err
	}
	switch ev.Diagnosis.Result {
	case domain.DiagnosisNegative, domain.DiagnosisPositive, domain.DiagnosisNonConclusive, domain.DiagnosisNotPregnant:
	default:
		return domain.Errorf(domain.CodeInvalidConfiguration, "unknown diagnosis result %q", ev.Diagnosis.Result)
	}
	ev.Diagnosis.CycleID = c.ID
	if _, err := t.updateCycle(c.ID, ev, func(c *FemaleCycle) {
		c.DiagnosisEventIDs = append(c.DiagnosisEventIDs, ev.ID)
	}); err != nil {
		return err
	}
	return t.refreshFemale(ev.AnimalID)
}

func (t *txn) validateAbort(ev *Event) error {
	t.tx.LockAnimal(ev.AnimalID)
	c, err := t.requireCycleState(ev.AnimalID, domain.CyclePregnant)
	if err != nil {
		return err
	}
	ev.Abort.CycleID = c.ID
	if _, err := t.updateCycle(c.ID, ev, func(c *FemaleCycle) {
		c.AbortEventID = ev.ID
	}); err != nil {
		return err
	}
	return t.refreshFemale(ev.AnimalID)
}
