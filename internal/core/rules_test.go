package core

import (
	"context"
	"errors"
	"testing"

	"herdcore/internal/infra/persistence/memory"
	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

func expectBlocked(t *testing.T, err error, rule string) {
	t.Helper()
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	for _, v := range violation.Result.Violations {
		if v.Rule == rule && v.Severity == domain.SeverityBlock {
			return
		}
	}
	t.Fatalf("expected %s to block, got %+v", rule, violation.Result.Violations)
}

func TestCatalogUniquenessRule(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.CreateProduct(f.ctx, Product{Code: "BOAR", DefaultUoMID: "uom-unit"})
	expectBlocked(t, err, "catalog_uniqueness")

	_, _, err = f.svc.UpdateSpecie(f.ctx, "pig", func(sp *Specie) error {
		sp.RemovedLocationID = "L1"
		return nil
	})
	expectBlocked(t, err, "catalog_uniqueness")

	_, _, err = f.svc.CreateSpecie(f.ctx, Specie{Name: "Boar stud", MaleEnabled: true, MaleProductID: "prod-male", SemenProductID: "prod-semen"})
	expectBlocked(t, err, "catalog_uniqueness")

	err = f.svc.Store().View(f.ctx, func(v TransactionView) error {
		if sp, ok := v.Species().Get("pig"); !ok || sp.RemovedLocationID != "removed" {
			t.Fatalf("blocked update must roll back, got %+v", sp)
		}
		return nil
	})
	f.check("view specie", err)
}

func TestAnimalLotLocationRule(t *testing.T) {
	f := newFixture(t)
	a := f.animal(domain.AnimalIndividual, "L1", onDay(0))
	_, _, err := f.svc.PostMove(f.ctx, stock.MoveRequest{
		ProductID:      "prod-individual",
		Quantity:       dec("1"),
		FromLocationID: "supplier",
		ToLocationID:   "L2",
		LotID:          a.LotID,
		EffectiveDate:  onDay(1),
	})
	expectBlocked(t, err, "animal_lot_location")
	if loc := f.locationOf(a.ID); loc != "L1" {
		t.Fatalf("expected animal to stay in L1, got %q", loc)
	}
}

func TestSiloLotRefillRuleBlocks(t *testing.T) {
	f := newFixture(t)
	f.fillSilo()
	_, _, err := f.svc.PostMove(f.ctx, stock.MoveRequest{
		ProductID:      "prod-feed",
		Quantity:       dec("1"),
		FromLocationID: "supplier",
		ToLocationID:   "silo",
		LotID:          "feed-lot-1",
		EffectiveDate:  onDay(1),
	})
	expectBlocked(t, err, "silo_lot_refill")
	if got := f.quantity(siloStock); !got.Equal(dec("5.3")) {
		t.Fatalf("expected the refill rolled back, got %s", got)
	}

	// A provisional count above the ledger brings the surplus back on the
	// silo lot without being a second receipt.
	prov := f.validatedInventory(domain.FeedInventoryProvisional, onDay(1), "5.50")
	if len(prov.MoveIDs) != 1 {
		t.Fatalf("expected one surplus move, got %+v", prov.MoveIDs)
	}
	if got := f.quantity(siloStock); !got.Equal(dec("5.5")) {
		t.Fatalf("expected 5.50 in the silo, got %s", got)
	}
}

func TestCycleSequenceRule(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(NewCycleSequenceRule())
	store := memory.NewStore(engine)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.Cycles().Create(FemaleCycle{AnimalID: "sow", Sequence: 1, FarrowingEventID: "far-1"}); err != nil {
			return err
		}
		_, err := tx.Cycles().Create(FemaleCycle{AnimalID: "sow", Sequence: 3})
		return err
	})
	expectBlocked(t, err, "cycle_sequence")

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.Cycles().Create(FemaleCycle{AnimalID: "sow", Sequence: 1}); err != nil {
			return err
		}
		_, err := tx.Cycles().Create(FemaleCycle{AnimalID: "sow", Sequence: 2})
		return err
	})
	expectBlocked(t, err, "cycle_sequence")

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.Cycles().Create(FemaleCycle{AnimalID: "sow", Sequence: 1, AbortEventID: "abort-1"}); err != nil {
			return err
		}
		_, err := tx.Cycles().Create(FemaleCycle{AnimalID: "sow", Sequence: 2})
		return err
	})
	if err != nil {
		t.Fatalf("a closed cycle followed by an open one is valid: %v", err)
	}
}

func TestDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	got := NewDefaultRulesEngine().Rules()
	want := []string{"animal_lot_location", "cycle_sequence", "catalog_uniqueness", "silo_lot_refill"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
