package core

import (
	"testing"
	"time"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

func extraction(maleID string, at time.Time) Event {
	return Event{Kind: domain.EventSemenExtraction, AnimalID: maleID, Timestamp: at, SemenExtraction: &domain.SemenExtractionPayload{
		UntreatedSemenUoMID: "uom-cm3",
		UntreatedSemenQty:   dec("410"),
		FormulaUoMID:        "uom-cm3",
		FormulaFactor:       dec("1.5"),
		SemenQty:            dec("610"),
		DoseLocationID:      "farm-store",
		DoseBOMID:           "bom-dose",
	}}
}

func (f *fixture) dose(eventID string, qty int) Dose {
	f.t.Helper()
	d, _, err := f.svc.CreateDose(f.ctx, Dose{EventID: eventID, BOMID: "bom-dose", Quantity: qty})
	f.check("create dose", err)
	return d
}

func TestSemenExtractionProducesDoses(t *testing.T) {
	f := newFixture(t)
	male := f.animal(domain.AnimalMale, "L1", onDay(0))
	ev := f.draft(extraction(male.ID, onDay(10)))
	d := f.dose(ev.ID, 6)
	if d.Sequence != 1 {
		t.Fatalf("expected first dose sequence, got %d", d.Sequence)
	}

	calc, err := f.svc.CalculateDoses(f.ctx, ev.ID)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !calc.CalculatedSemen.Equal(dec("615")) || !calc.SemenQty.Equal(dec("610")) ||
		!calc.CalculatedUnits.Equal(dec("6.1")) || !calc.DosesSemen.Equal(dec("600")) ||
		!calc.SemenRemaining.Equal(dec("10")) {
		t.Fatalf("unexpected calculation %+v", calc)
	}

	done, _, err := f.svc.ValidateEvent(f.ctx, ev.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	semenLot := done.SemenExtraction.SemenLotID
	if semenLot == "" {
		t.Fatalf("expected a semen lot")
	}
	if got := f.quantity(stock.Query{LocationIDs: []string{"farm-store"}, LotIDs: []string{semenLot}}); !got.Equal(dec("10")) {
		t.Fatalf("expected 10 cm3 of semen left, got %s", got)
	}

	var stored Dose
	err = f.svc.Store().View(f.ctx, func(v TransactionView) error {
		var ok bool
		if stored, ok = v.Doses().Get(d.ID); !ok {
			return notFound(domain.EntityDose, d.ID)
		}
		return nil
	})
	f.check("get dose", err)
	if stored.LotID == "" || stored.ProductionID == "" {
		t.Fatalf("expected dose linked to its production, got %+v", stored)
	}
	lot := f.lot(stored.LotID)
	if lot.Number != "LW/M0001/S0001/D0001" || lot.ProductID != "prod-dose" {
		t.Fatalf("unexpected dose lot %+v", lot)
	}
	if lot.Expiration == nil || !lot.Expiration.Equal(onDay(10).Add(72*time.Hour)) {
		t.Fatalf("unexpected expiration %v", lot.Expiration)
	}
	if got := f.quantity(stock.Query{LocationIDs: []string{"farm-store"}, LotIDs: []string{stored.LotID}}); !got.Equal(dec("6")) {
		t.Fatalf("expected 6 doses in storage, got %s", got)
	}

	m := f.getAnimal(male.ID)
	if m.LastExtraction == nil || !m.LastExtraction.Equal(day0.AddDate(0, 0, 10)) {
		t.Fatalf("unexpected last extraction %v", m.LastExtraction)
	}
	if _, err := f.svc.DeleteDose(f.ctx, d.ID); !domain.HasCode(err, domain.CodeInvalidEventState) {
		t.Fatalf("expected doses of a validated extraction to be locked, got %v", err)
	}
}

func TestSemenExtractionChecks(t *testing.T) {
	f := newFixture(t)
	male := f.animal(domain.AnimalMale, "L1", onDay(0))

	empty := f.draft(extraction(male.ID, onDay(10)))
	_, _, err := f.svc.ValidateEvent(f.ctx, empty.ID)
	expectCode(t, err, domain.CodeNoDosesOnValidate)

	f.dose(empty.ID, 7)
	_, _, err = f.svc.ValidateEvent(f.ctx, empty.ID)
	expectCode(t, err, domain.CodeMoreSemenInDosesThanProduced)

	_, _, err = f.svc.CreateDose(f.ctx, Dose{EventID: empty.ID, BOMID: "bom-dose", Quantity: 1})
	expectCode(t, err, domain.CodeDoseAlreadyDefined)
	_, _, err = f.svc.CreateDose(f.ctx, Dose{EventID: empty.ID, BOMID: "bom-dose", Quantity: 0})
	expectCode(t, err, domain.CodeInvalidQuantity)

	if f.getEvent(empty.ID).State != domain.EventDraft {
		t.Fatalf("failed validation must leave the extraction draft")
	}
	if f.getAnimal(male.ID).LastExtraction != nil {
		t.Fatalf("failed validation must not touch the male")
	}

	female := f.animal(domain.AnimalFemale, "L1", onDay(0))
	_, _, err = f.svc.CreateEvent(f.ctx, extraction(female.ID, onDay(10)))
	expectCode(t, err, domain.CodeIncompatibleAnimalAndEventType)
}

func TestSemenExtractionQualityTest(t *testing.T) {
	f := newFixture(t)
	male := f.animal(domain.AnimalMale, "L1", onDay(0))
	q, _, err := f.svc.CreateQualityTest(f.ctx, QualityTest{Reference: "QT-1", Lines: []domain.QualityTestLine{
		{Name: "motility", Min: dec("70"), Max: dec("100"), Value: dec("60")},
	}})
	f.check("quality test", err)
	if q.State != domain.QualityTestDraft {
		t.Fatalf("expected draft quality test, got %s", q.State)
	}

	ev := extraction(male.ID, onDay(10))
	ev.SemenExtraction.TestRequired = true
	ev.SemenExtraction.QualityTestID = q.ID
	ev = f.draft(ev)
	f.dose(ev.ID, 6)
	_, _, err = f.svc.ValidateEvent(f.ctx, ev.ID)
	expectCode(t, err, domain.CodeQualityTestNotSucceeded)

	confirmed, _, err := f.svc.ConfirmQualityTest(f.ctx, q.ID)
	f.check("confirm quality test", err)
	if confirmed.State != domain.QualityTestConfirmed {
		t.Fatalf("expected confirmed quality test, got %s", confirmed.State)
	}
	_, _, err = f.svc.ConfirmQualityTest(f.ctx, q.ID)
	expectCode(t, err, domain.CodeInvalidEventState)

	_, _, err = f.svc.ValidateEvent(f.ctx, ev.ID)
	expectCode(t, err, domain.CodeQualityTestNotSucceeded)

	_, _, err = f.svc.UpdateQualityTest(f.ctx, q.ID, func(stored *QualityTest) error {
		stored.Lines[0].Value = dec("85")
		stored.State = domain.QualityTestSuccessful
		return nil
	})
	f.check("update quality test", err)
	if _, _, err := f.svc.ValidateEvent(f.ctx, ev.ID); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var got QualityTest
	err = f.svc.Store().View(f.ctx, func(v TransactionView) error {
		var ok bool
		if got, ok = v.QualityTests().Get(q.ID); !ok {
			return notFound(domain.EntityQualityTest, q.ID)
		}
		return nil
	})
	f.check("get quality test", err)
	if got.State != domain.QualityTestSuccessful {
		t.Fatalf("expected successful test, got %s", got.State)
	}
	_, _, err = f.svc.UpdateQualityTest(f.ctx, q.ID, func(*QualityTest) error { return nil })
	expectCode(t, err, domain.CodeInvalidEventState)
}

func TestQualityTestConfirmNeedsLines(t *testing.T) {
	f := newFixture(t)
	q, _, err := f.svc.CreateQualityTest(f.ctx, QualityTest{Reference: "QT-2"})
	f.check("quality test", err)
	_, _, err = f.svc.ConfirmQualityTest(f.ctx, q.ID)
	expectCode(t, err, domain.CodeInvalidQuantity)
}
