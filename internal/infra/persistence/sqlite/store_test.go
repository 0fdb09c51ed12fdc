package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"herdcore/pkg/domain"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "herd.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Path() != path || store.DB() == nil {
		t.Fatalf("unexpected store accessors")
	}
	ctx := context.Background()
	var moveID string
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		m, err := tx.Moves().Create(domain.Move{
			ProductID: "feed",
			Quantity:  decimal.RequireFromString("1250.5"),
			State:     domain.MoveDone,
		})
		moveID = m.ID
		return err
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	err = reopened.View(ctx, func(v domain.TransactionView) error {
		m, ok := v.Moves().Get(moveID)
		if !ok {
			t.Fatalf("expected move %s after reopen", moveID)
		}
		if !m.Quantity.Equal(decimal.RequireFromString("1250.5")) || m.State != domain.MoveDone {
			t.Fatalf("unexpected move %+v", m)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestFailedTransactionIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herd.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.Breeds().Create(domain.Breed{Name: "Duroc"}); err != nil {
			return err
		}
		_, err := tx.Breeds().Update("missing", func(*domain.Breed) error { return nil })
		return err
	})
	if err == nil {
		t.Fatalf("expected update error")
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no persisted buckets, got %d", count)
	}
}
