package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"stockledger/internal/domain"
)

func TestLoadReturnsDefaultsUntilSaved(t *testing.T) {
	store := NewStore()
	defaults := domain.Snapshot{Balance: decimal.NewFromInt(10), Warehouse: map[string]domain.Product{}}

	snap, err := store.Load(context.Background(), defaults)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if !snap.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected default balance, got %s", snap.Balance)
	}
	if _, ok := store.Saved(); ok {
		t.Fatal("expected nothing saved yet")
	}
}

func TestSaveIsolatesCallerMaps(t *testing.T) {
	store := NewStore()
	snap := domain.Snapshot{
		Balance:   decimal.NewFromInt(5),
		Warehouse: map[string]domain.Product{"bike": {Price: decimal.NewFromInt(1), Quantity: 1}},
		History:   []string{"a"},
	}
	if err := store.Save(context.Background(), snap); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	snap.Warehouse["bike"] = domain.Product{Quantity: 99}
	snap.History[0] = "mutated"

	saved, _ := store.Saved()
	if saved.Warehouse["bike"].Quantity != 1 || saved.History[0] != "a" {
		t.Fatalf("saved snapshot shares memory with caller: %+v", saved)
	}
	if store.SaveCount() != 1 {
		t.Fatalf("expected 1 save, got %d", store.SaveCount())
	}
}

func TestFailSaves(t *testing.T) {
	store := NewStore()
	store.FailSaves(true)
	if err := store.Save(context.Background(), domain.Snapshot{}); err != ErrInjected {
		t.Fatalf("expected injected failure, got %v", err)
	}
}
