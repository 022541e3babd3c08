package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/service"
)

func entry(accountID string, amount string, direction domain.Direction) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:        "e-" + amount + "-" + string(direction),
		UserID:    "user-1",
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
		Direction: direction,
	}
}

func TestReconciler_BalanceIsInMinusOut(t *testing.T) {
	ledger := newMockLedgerStore(
		entry("acc-1", "100.00", domain.DirectionIn),
		entry("acc-1", "30.25", domain.DirectionOut),
		entry("acc-2", "999.99", domain.DirectionIn),
	)
	r := service.NewReconciler(ledger, zap.NewNop())

	balance, err := r.Balance(context.Background(), "acc-1")
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(decimal.RequireFromString("69.75")) {
		t.Errorf("expected 69.75, got %s", balance)
	}
}

func TestReconciler_EqualBalancesWriteNothing(t *testing.T) {
	ledger := newMockLedgerStore(
		entry("acc-1", "100.00", domain.DirectionIn),
	)
	r := service.NewReconciler(ledger, zap.NewNop())

	if err := r.Reconcile(context.Background(), testAccount(), decimal.RequireFromString("100.00")); err != nil {
		t.Fatal(err)
	}
	if got := len(ledger.all()); got != 1 {
		t.Errorf("expected no alignment entry, got %d entries", got)
	}
}

func TestReconciler_ShortfallWritesInAlignment(t *testing.T) {
	ledger := newMockLedgerStore(
		entry("acc-1", "100.00", domain.DirectionIn),
	)
	r := service.NewReconciler(ledger, zap.NewNop())

	if err := r.Reconcile(context.Background(), testAccount(), decimal.RequireFromString("150.50")); err != nil {
		t.Fatal(err)
	}

	entries := ledger.all()
	if len(entries) != 2 {
		t.Fatalf("expected 1 alignment entry, got %d entries", len(entries))
	}
	adj := entries[1]
	if adj.Direction != domain.DirectionIn {
		t.Errorf("expected IN alignment, got %s", adj.Direction)
	}
	if !adj.Amount.Equal(decimal.RequireFromString("50.50")) {
		t.Errorf("expected 50.50, got %s", adj.Amount)
	}
	if adj.Description != "Account alignment" {
		t.Errorf("unexpected description %q", adj.Description)
	}

	balance, _ := r.Balance(context.Background(), "acc-1")
	if !balance.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("expected ledger to land on 150.50, got %s", balance)
	}
}

func TestReconciler_ExcessWritesOutAlignment(t *testing.T) {
	ledger := newMockLedgerStore(
		entry("acc-1", "200.00", domain.DirectionIn),
	)
	r := service.NewReconciler(ledger, zap.NewNop())

	if err := r.Reconcile(context.Background(), testAccount(), decimal.RequireFromString("180.00")); err != nil {
		t.Fatal(err)
	}

	entries := ledger.all()
	adj := entries[len(entries)-1]
	if adj.Direction != domain.DirectionOut {
		t.Errorf("expected OUT alignment, got %s", adj.Direction)
	}
	if !adj.Amount.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("expected 20.00, got %s", adj.Amount)
	}
}

func TestReconciler_ComparisonIsExact(t *testing.T) {
	// 0.10 + 0.20 must equal 0.30 exactly with decimal arithmetic.
	ledger := newMockLedgerStore(
		entry("acc-1", "0.10", domain.DirectionIn),
		entry("acc-1", "0.20", domain.DirectionIn),
	)
	r := service.NewReconciler(ledger, zap.NewNop())

	if err := r.Reconcile(context.Background(), testAccount(), decimal.RequireFromString("0.30")); err != nil {
		t.Fatal(err)
	}
	if got := len(ledger.all()); got != 2 {
		t.Errorf("expected no alignment entry for an exact match, got %d entries", got)
	}
}
