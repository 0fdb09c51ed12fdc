package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

const defaultDoseExpirationDays = 4

// DoseCalculation reports how extracted semen splits into doses.
type DoseCalculation struct {
	CalculatedSemen decimal.Decimal
	SemenQty        decimal.Decimal
	// CalculatedUnits is how many doses of the default dose BOM SemenQty fills.
	CalculatedUnits decimal.Decimal
	DosesSemen      decimal.Decimal
	SemenRemaining  decimal.Decimal
}

// CreateDose adds a dose line to a draft semen extraction.
func (s *Service) CreateDose(ctx context.Context, d Dose) (Dose, Result, error) {
	return create(s, ctx, "create_dose", func(t *txn) (Dose, error) {
		ev, err := t.event(d.EventID)
		if err != nil {
			return Dose{}, err
		}
		if ev.Kind != domain.EventSemenExtraction || ev.State != domain.EventDraft {
			return Dose{}, domain.Errorf(domain.CodeInvalidEventState, "doses belong to draft semen extractions, %s is a %s %s", ev.ID, ev.State, ev.Kind)
		}
		if d.Quantity < 1 {
			return Dose{}, domain.Errorf(domain.CodeInvalidQuantity, "dose quantity must be positive, got %d", d.Quantity)
		}
		if _, err := t.bom(d.BOMID); err != nil {
			return Dose{}, err
		}
		last := 0
		for _, other := range t.dosesOf(ev.ID) {
			if other.BOMID == d.BOMID {
				return Dose{}, domain.Errorf(domain.CodeDoseAlreadyDefined, "extraction %s already has a dose of bom %s", ev.ID, d.BOMID)
			}
			if d.Sequence != 0 && other.Sequence == d.Sequence {
				return Dose{}, domain.Errorf(domain.CodeDoseAlreadyDefined, "extraction %s already has dose %d", ev.ID, d.Sequence)
			}
			last = max(last, other.Sequence)
		}
		if d.Sequence == 0 {
			d.Sequence = last + 1
		}
		d.LotID = ""
		d.ProductionID = ""
		return t.tx.Doses().Create(d)
	})
}

// DeleteDose removes a dose line of a draft extraction.
func (s *Service) DeleteDose(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_dose", func(t *txn) (string, error) {
		d, ok := t.view.Doses().Get(id)
		if !ok {
			return id, notFound(domain.EntityDose, id)
		}
		ev, err := t.event(d.EventID)
		if err != nil {
			return id, err
		}
		if ev.State != domain.EventDraft {
			return id, domain.Errorf(domain.CodeInvalidEventState, "extraction %s is %s", ev.ID, ev.State)
		}
		return id, t.tx.Doses().Delete(id)
	})
}

// CalculateDoses returns the dose calculator figures of a semen extraction.
func (s *Service) CalculateDoses(ctx context.Context, eventID string) (DoseCalculation, error) {
	var out DoseCalculation
	err := s.view(ctx, func(r *reader) error {
		ev, err := r.event(eventID)
		if err != nil {
			return err
		}
		if ev.SemenExtraction == nil {
			return domain.Errorf(domain.CodeIncompatibleAnimalAndEventType, "event %s is a %s", ev.ID, ev.Kind)
		}
		out, err = r.doseCalculation(ev)
		return err
	})
	return out, err
}

func (r *reader) dosesOf(eventID string) []Dose {
	var out []Dose
	for _, d := range r.view.Doses().List() {
		if d.EventID == eventID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// semenPerUnit returns the semen, in the formula unit, consumed by one output
// unit of bom, together with the bom input line carrying it.
func (r *reader) semenPerUnit(bom BOM, semenProductID, formulaUoMID string) (decimal.Decimal, domain.BOMLine, error) {
	if !bom.OutputQuantity.IsPositive() {
		return decimal.Zero, domain.BOMLine{}, domain.Errorf(domain.CodeInvalidConfiguration, "bom %s has no output quantity", bom.Name)
	}
	for _, line := range bom.Inputs {
		if line.ProductID != semenProductID {
			continue
		}
		qty, err := r.stock.Convert(line.Quantity, line.UoMID, formulaUoMID)
		if err != nil {
			return decimal.Zero, domain.BOMLine{}, err
		}
		return qty.Div(bom.OutputQuantity), line, nil
	}
	return decimal.Zero, domain.BOMLine{}, domain.Errorf(domain.CodeInvalidConfiguration, "bom %s does not consume semen", bom.Name)
}

func (r *reader) doseCalculation(ev Event) (DoseCalculation, error) {
	p := ev.SemenExtraction
	out := DoseCalculation{CalculatedSemen: p.SemenCalculatedQty(), SemenQty: p.SemenQty}
	if out.SemenQty.IsZero() {
		out.SemenQty = out.CalculatedSemen
	}
	sp, err := r.specie(ev.SpecieID)
	if err != nil {
		return out, err
	}
	if p.DoseBOMID != "" {
		bom, err := r.bom(p.DoseBOMID)
		if err != nil {
			return out, err
		}
		per, _, err := r.semenPerUnit(bom, sp.SemenProductID, p.FormulaUoMID)
		if err != nil {
			return out, err
		}
		if per.IsPositive() {
			out.CalculatedUnits = out.SemenQty.Div(per)
		}
	}
	out.DosesSemen = decimal.Zero
	for _, d := range r.dosesOf(ev.ID) {
		bom, err := r.bom(d.BOMID)
		if err != nil {
			return out, err
		}
		per, _, err := r.semenPerUnit(bom, sp.SemenProductID, p.FormulaUoMID)
		if err != nil {
			return out, err
		}
		out.DosesSemen = out.DosesSemen.Add(per.Mul(decimal.NewFromInt(int64(d.Quantity))))
	}
	out.SemenRemaining = out.SemenQty.Sub(out.DosesSemen)
	return out, nil
}

// checkQualityTest turns a confirmed test into its verdict. A test still in
// draft has not been confirmed and cannot succeed.
func (t *txn) checkQualityTest(p *domain.SemenExtractionPayload) error {
	if p.QualityTestID == "" {
		if p.TestRequired {
			return domain.Errorf(domain.CodeQualityTestNotSucceeded, "extraction requires a quality test")
		}
		return nil
	}
	q, ok := t.view.QualityTests().Get(p.QualityTestID)
	if !ok {
		return notFound(domain.EntityQualityTest, p.QualityTestID)
	}
	if q.State == domain.QualityTestConfirmed {
		q.State = domain.QualityTestSuccessful
		for _, line := range q.Lines {
			if !line.Passed() {
				q.State = domain.QualityTestFailed
				break
			}
		}
		verdict := q.State
		if _, err := t.tx.QualityTests().Update(q.ID, func(stored *QualityTest) error {
			stored.State = verdict
			return nil
		}); err != nil {
			return err
		}
	}
	if q.State != domain.QualityTestSuccessful && p.TestRequired {
		return domain.Errorf(domain.CodeQualityTestNotSucceeded, "quality test %s is %s", q.Reference, q.State)
	}
	return nil
}

func (t *txn) validateSemenExtraction(ev *Event) error {
	p := ev.SemenExtraction
	if err := t.checkQualityTest(p); err != nil {
		return err
	}
	doses := t.dosesOf(ev.ID)
	if len(doses) == 0 {
		return domain.Errorf(domain.CodeNoDosesOnValidate, "extraction %s has no doses", ev.ID)
	}
	calc, err := t.doseCalculation(*ev)
	if err != nil {
		return err
	}
	p.SemenQty = calc.SemenQty
	if calc.DosesSemen.GreaterThan(calc.SemenQty) {
		return domain.Errorf(domain.CodeMoreSemenInDosesThanProduced, "doses need %s but %s was extracted", calc.DosesSemen, calc.SemenQty)
	}

	male, err := t.animal(ev.AnimalID)
	if err != nil {
		return err
	}
	sp, err := t.specie(ev.SpecieID)
	if err != nil {
		return err
	}
	if sp.SemenProductID == "" {
		return domain.Errorf(domain.CodeInvalidConfiguration, "specie %s has no semen product", sp.Name)
	}
	line, err := t.farmLine(sp.ID, ev.FarmID, domain.AnimalMale)
	if err != nil {
		return err
	}
	farm, err := t.location(ev.FarmID)
	if err != nil {
		return err
	}
	production, err := t.productionLocation(farm.ID)
	if err != nil {
		return err
	}
	if _, err := t.location(p.DoseLocationID); err != nil {
		return err
	}

	number, err := t.nextNumber(line.SemenLotSequenceID)
	if err != nil {
		return err
	}
	semenLot, err := t.tx.Lots().Create(Lot{Number: number, ProductID: sp.SemenProductID})
	if err != nil {
		return err
	}
	m, err := t.ledger.Post(stock.MoveRequest{
		ProductID:      sp.SemenProductID,
		UoMID:          p.FormulaUoMID,
		Quantity:       p.SemenQty,
		FromLocationID: production,
		ToLocationID:   p.DoseLocationID,
		LotID:          semenLot.ID,
		EffectiveDate:  ev.Timestamp,
		Origin:         eventOrigin(ev.ID),
	})
	if err != nil {
		return err
	}
	ev.MoveIDs = append(ev.MoveIDs, m.ID)
	p.SemenLotID = semenLot.ID

	breed := ""
	if b, ok := t.view.Breeds().Get(male.BreedID); ok {
		breed = b.Name
	}
	for _, d := range doses {
		if err := t.produceDose(ev, d, doseContext{
			specie:     sp,
			line:       line,
			farm:       farm,
			production: production,
			semenLot:   semenLot,
			prefix:     fmt.Sprintf("%s/%s/%s", breed, male.Number, semenLot.Number),
		}); err != nil {
			return fmt.Errorf("dose %d: %w", d.Sequence, err)
		}
	}

	day := dayOf(ev.Timestamp)
	_, err = t.tx.Animals().Update(male.ID, func(a *Animal) error {
		a.LastExtraction = &day
		return nil
	})
	return err
}

type doseContext struct {
	specie     Specie
	line       FarmLine
	farm       Location
	production string
	semenLot   Lot
	prefix     string
}

// produceDose runs the production of one dose line: the semen input comes
// from the extraction's semen lot, other inputs from farm storage.
func (t *txn) produceDose(ev *Event, d Dose, dc doseContext) error {
	p := ev.SemenExtraction
	bom, err := t.bom(d.BOMID)
	if err != nil {
		return err
	}
	output, err := t.product(bom.OutputProductID)
	if err != nil {
		return err
	}
	units := decimal.NewFromInt(int64(d.Quantity))
	scale := units.Div(bom.OutputQuantity)
	per, semenLine, err := t.semenPerUnit(bom, dc.specie.SemenProductID, p.FormulaUoMID)
	if err != nil {
		return err
	}

	seq := fmt.Sprintf("%d", d.Sequence)
	if dc.line.DoseLotSequenceID != "" {
		if seq, err = t.nextNumber(dc.line.DoseLotSequenceID); err != nil {
			return err
		}
	}
	days := output.ExpirationDays
	if days <= 0 {
		days = defaultDoseExpirationDays
	}
	expiration := ev.Timestamp.Add(time.Duration(days) * 24 * time.Hour)
	doseLot, err := t.tx.Lots().Create(Lot{
		Number:     dc.prefix + "/" + seq,
		ProductID:  output.ID,
		Expiration: &expiration,
	})
	if err != nil {
		return err
	}

	inputs := []stock.MoveRequest{{
		ProductID:      semenLine.ProductID,
		UoMID:          p.FormulaUoMID,
		Quantity:       per.Mul(units),
		FromLocationID: p.DoseLocationID,
		ToLocationID:   dc.production,
		LotID:          dc.semenLot.ID,
		EffectiveDate:  ev.Timestamp,
		Origin:         eventOrigin(ev.ID),
	}}
	for _, in := range bom.Inputs {
		if in.ProductID == semenLine.ProductID {
			continue
		}
		inputs = append(inputs, stock.MoveRequest{
			ProductID:      in.ProductID,
			UoMID:          in.UoMID,
			Quantity:       in.Quantity.Mul(scale),
			FromLocationID: dc.farm.StorageLocationID,
			ToLocationID:   dc.production,
			EffectiveDate:  ev.Timestamp,
			Origin:         eventOrigin(ev.ID),
		})
	}
	prod, err := t.ledger.Produce(stock.ProductionRequest{
		BOMID:         bom.ID,
		WarehouseID:   dc.farm.ID,
		LocationID:    dc.production,
		ProductID:     output.ID,
		UoMID:         bom.OutputUoMID,
		Quantity:      units,
		EffectiveDate: ev.Timestamp,
		Origin:        eventOrigin(ev.ID),
		Inputs:        inputs,
		Outputs: []stock.MoveRequest{{
			ProductID:      output.ID,
			UoMID:          bom.OutputUoMID,
			Quantity:       units,
			FromLocationID: dc.production,
			ToLocationID:   p.DoseLocationID,
			LotID:          doseLot.ID,
			EffectiveDate:  ev.Timestamp,
			Origin:         eventOrigin(ev.ID),
		}},
	})
	if err != nil {
		return err
	}
	ev.MoveIDs = append(ev.MoveIDs, prod.InputMoveIDs...)
	ev.MoveIDs = append(ev.MoveIDs, prod.OutputMoveIDs...)
	_, err = t.tx.Doses().Update(d.ID, func(stored *Dose) error {
		stored.LotID = doseLot.ID
		stored.ProductionID = prod.ID
		return nil
	})
	return err
}
