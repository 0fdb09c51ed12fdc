package core

import (
	"testing"

	"herdcore/pkg/domain"
)

func TestTransformIndividualIntoGroup(t *testing.T) {
	f := newFixture(t)
	a := f.animal(domain.AnimalIndividual, "L1", onDay(0))

	ev := f.validated(Event{Kind: domain.EventTransformation, AnimalID: a.ID, Timestamp: onDay(3), Transformation: &domain.TransformationPayload{
		ToLocationID: "L2",
		ToAnimalType: domain.AnimalGroupType,
	}})
	p := ev.Transformation
	if p.ToGroupID == "" || p.OutMoveID == "" || p.InMoveID == "" || len(ev.MoveIDs) != 2 {
		t.Fatalf("unexpected transformation %+v", p)
	}
	if out := f.move(p.OutMoveID); out.ToLocationID != "farm-prod" || out.LotID != a.LotID {
		t.Fatalf("expected source to leave through production, got %+v", out)
	}

	src := f.getAnimal(a.ID)
	if src.Active || src.RemovalReason != "transformation" {
		t.Fatalf("expected source retired by transformation, got %+v", src)
	}
	g := f.getGroup(p.ToGroupID)
	if g.InitialQuantity != 1 || g.Origin != domain.OriginRaised {
		t.Fatalf("unexpected new group %+v", g)
	}
	if locs := f.groupLocations(g.ID); len(locs) != 1 || locs["L2"] != 1 {
		t.Fatalf("unexpected group locations %v", locs)
	}
	cost, err := f.svc.LotCost(f.ctx, g.LotID)
	if err != nil || !cost.Equal(dec("200")) {
		t.Fatalf("expected source cost carried over, got %s %v", cost, err)
	}
}

func TestTransformGroupIntoIndividual(t *testing.T) {
	f := newFixture(t)
	g := f.group("L1", 3, onDay(0))

	ev := f.validated(Event{Kind: domain.EventTransformation, GroupID: g.ID, LocationID: "L1", Timestamp: onDay(3), Transformation: &domain.TransformationPayload{
		ToLocationID: "L1",
		ToAnimalType: domain.AnimalIndividual,
	}})
	if ev.Transformation.Quantity != 1 || ev.Transformation.ToAnimalID == "" {
		t.Fatalf("unexpected transformation %+v", ev.Transformation)
	}
	if locs := f.groupLocations(g.ID); locs["L1"] != 2 {
		t.Fatalf("expected 2 left in the group, got %v", locs)
	}
	a := f.getAnimal(ev.Transformation.ToAnimalID)
	if a.Type != domain.AnimalIndividual || a.Number != "I0001" || f.locationOf(a.ID) != "L1" {
		t.Fatalf("unexpected new animal %+v", a)
	}
	cost, err := f.svc.LotCost(f.ctx, a.LotID)
	if err != nil || !cost.Equal(dec("30")) {
		t.Fatalf("expected group cost carried over, got %s %v", cost, err)
	}
	if !f.getGroup(g.ID).Active {
		t.Fatalf("group with animals left must stay active")
	}
}

func TestTransformationChecks(t *testing.T) {
	f := newFixture(t)
	male := f.animal(domain.AnimalMale, "L1", onDay(0))
	err := f.validate(Event{Kind: domain.EventTransformation, AnimalID: male.ID, Timestamp: onDay(3), Transformation: &domain.TransformationPayload{
		ToLocationID: "L2",
		ToAnimalType: domain.AnimalFemale,
	}})
	expectCode(t, err, domain.CodeInvalidTransformation)

	err = f.validate(Event{Kind: domain.EventTransformation, AnimalID: male.ID, Timestamp: onDay(3), Transformation: &domain.TransformationPayload{
		ToLocationID: "removed",
		ToAnimalType: domain.AnimalIndividual,
	}})
	expectCode(t, err, domain.CodeInvalidAnimalDestination)

	g := f.group("L1", 3, onDay(0))
	err = f.validate(Event{Kind: domain.EventTransformation, GroupID: g.ID, LocationID: "L1", Timestamp: onDay(3), Transformation: &domain.TransformationPayload{
		ToLocationID: "L2",
		ToAnimalType: domain.AnimalFemale,
		Quantity:     2,
	}})
	expectCode(t, err, domain.CodeInvalidTransformation)
	if f.getAnimal(male.ID).Active != true {
		t.Fatalf("failed transformation must leave the source untouched")
	}
}

func TestReclassification(t *testing.T) {
	f := newFixture(t)
	a := f.animal(domain.AnimalIndividual, "L1", onDay(0))

	ev := f.validated(Event{Kind: domain.EventReclassification, AnimalID: a.ID, Timestamp: onDay(4), Reclassification: &domain.ReclassificationPayload{
		ReclassifiedProductID: "prod-fattening",
	}})
	p := ev.Reclassification
	if p.NewLotID == "" || p.NewLotID == a.LotID || p.ProductionID == "" {
		t.Fatalf("unexpected reclassification %+v", p)
	}
	got := f.getAnimal(a.ID)
	if got.LotID != p.NewLotID || f.locationOf(a.ID) != "L1" {
		t.Fatalf("expected animal on new lot in L1, got %+v", got)
	}
	if lot := f.lot(p.NewLotID); lot.ProductID != "prod-fattening" || lot.AnimalID != a.ID {
		t.Fatalf("unexpected new lot %+v", lot)
	}
	if old := f.lot(a.LotID); old.AnimalID != "" {
		t.Fatalf("expected old lot to be released, got %+v", old)
	}
	cost, err := f.svc.LotCost(f.ctx, p.NewLotID)
	if err != nil || !cost.Equal(dec("200")) {
		t.Fatalf("expected cost 200 on the new lot, got %s %v", cost, err)
	}

	err = f.validate(Event{Kind: domain.EventReclassification, AnimalID: a.ID, Timestamp: onDay(5), Reclassification: &domain.ReclassificationPayload{
		ReclassifiedProductID: "prod-fattening",
	}})
	expectCode(t, err, domain.CodeInvalidReclassificationProduct)
	err = f.validate(Event{Kind: domain.EventReclassification, AnimalID: a.ID, Timestamp: onDay(5), Reclassification: &domain.ReclassificationPayload{
		ReclassifiedProductID: "prod-group",
	}})
	expectCode(t, err, domain.CodeInvalidReclassificationProduct)
}
