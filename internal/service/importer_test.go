package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/observability"
	"github.com/nexabudget/nexabudget-go/internal/service"
)

func newImporter(ledger *mockLedgerStore, completer *mockCompleter) *service.Importer {
	metrics := observability.NewMetrics()
	sem := service.NewSemanticCache(newMockSemanticStore(), &mockEmbedder{}, 0.85, 1, metrics, zap.NewNop())
	classifier := service.NewClassifier(
		newMockCategoryStore(testCategories()...), sem, completer,
		noopCache[[]domain.Category]{}, metrics, zap.NewNop(),
	)
	return service.NewImporter(ledger, classifier, metrics, zap.NewNop())
}

func feedRecord(externalID, amount, date, payee string) domain.FeedTransaction {
	return domain.FeedTransaction{
		ExternalID: externalID,
		Amount:     domain.FeedAmount{Amount: amount, Currency: "EUR"},
		ValueDate:  date,
		PayeeName:  payee,
	}
}

func testAccount() *domain.Account {
	return &domain.Account{
		ID:                "acc-1",
		UserID:            "user-1",
		Name:              "Checking",
		Currency:          "EUR",
		RequisitionID:     "req-1",
		ExternalAccountID: "ext-1",
	}
}

func TestImporter_NegativeAmountBecomesOutEntry(t *testing.T) {
	ledger := newMockLedgerStore()
	imp := newImporter(ledger, &mockCompleter{answer: "Groceries"})

	stats := imp.Import(context.Background(), []domain.FeedTransaction{
		feedRecord("tx-1", "-12.50", "2026-08-30", "Market"),
	}, "user-1", testAccount(), nil)

	if stats.Imported != 1 || stats.Skipped != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	entries := ledger.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Direction != domain.DirectionOut {
		t.Errorf("expected OUT, got %s", e.Direction)
	}
	if !e.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("expected amount 12.50, got %s", e.Amount)
	}
	if e.Description != "Market" {
		t.Errorf("expected description 'Market', got %q", e.Description)
	}
	if e.CategoryID != "cat-groceries" {
		t.Errorf("expected Groceries category, got %q", e.CategoryID)
	}
	if e.ExternalID != "tx-1" {
		t.Errorf("expected external id preserved, got %q", e.ExternalID)
	}
	want := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	if !e.Date.Equal(want) {
		t.Errorf("expected date %v, got %v", want, e.Date)
	}
}

func TestImporter_PositiveAmountBecomesInEntry(t *testing.T) {
	ledger := newMockLedgerStore()
	imp := newImporter(ledger, &mockCompleter{answer: "Salary"})

	imp.Import(context.Background(), []domain.FeedTransaction{
		feedRecord("tx-2", "2500.00", "2026-08-28", "ACME Corp"),
	}, "user-1", testAccount(), nil)

	entries := ledger.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Direction != domain.DirectionIn {
		t.Errorf("expected IN, got %s", entries[0].Direction)
	}
	if entries[0].CategoryID != "cat-salary" {
		t.Errorf("expected Salary category, got %q", entries[0].CategoryID)
	}
}

func TestImporter_ReimportIsIdempotent(t *testing.T) {
	ledger := newMockLedgerStore()
	imp := newImporter(ledger, &mockCompleter{answer: "Groceries"})
	records := []domain.FeedTransaction{
		feedRecord("tx-1", "-12.50", "2026-08-30", "Market"),
		feedRecord("tx-2", "-8.00", "2026-08-30", "Bakery"),
	}
	account := testAccount()

	first := imp.Import(context.Background(), records, "user-1", account, nil)
	if first.Imported != 2 {
		t.Fatalf("expected 2 imported on first pass, got %+v", first)
	}

	second := imp.Import(context.Background(), records, "user-1", account, nil)
	if second.Imported != 0 || second.Skipped != 2 {
		t.Fatalf("expected all skipped on re-import, got %+v", second)
	}
	if got := len(ledger.all()); got != 2 {
		t.Errorf("expected 2 entries total, got %d", got)
	}
}

func TestImporter_BadDateIsolatesRecord(t *testing.T) {
	ledger := newMockLedgerStore()
	imp := newImporter(ledger, &mockCompleter{answer: "Groceries"})

	stats := imp.Import(context.Background(), []domain.FeedTransaction{
		feedRecord("tx-1", "-12.50", "30/08/2026", "Market"),
		feedRecord("tx-2", "-8.00", "2026-08-30", "Bakery"),
	}, "user-1", testAccount(), nil)

	if stats.Failed != 1 || stats.Imported != 1 {
		t.Fatalf("expected 1 failed and 1 imported, got %+v", stats)
	}
	entries := ledger.all()
	if len(entries) != 1 || entries[0].ExternalID != "tx-2" {
		t.Fatalf("expected only the valid record persisted, got %+v", entries)
	}
}

func TestImporter_SinceFilterSkipsOldRecords(t *testing.T) {
	ledger := newMockLedgerStore()
	imp := newImporter(ledger, &mockCompleter{answer: "Groceries"})
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	stats := imp.Import(context.Background(), []domain.FeedTransaction{
		feedRecord("tx-old", "-5.00", "2026-07-15", "Old purchase"),
		feedRecord("tx-new", "-7.00", "2026-08-15", "New purchase"),
	}, "user-1", testAccount(), &since)

	if stats.Imported != 1 || stats.Skipped != 1 {
		t.Fatalf("expected 1 imported and 1 skipped, got %+v", stats)
	}
	entries := ledger.all()
	if len(entries) != 1 || entries[0].ExternalID != "tx-new" {
		t.Fatalf("expected only the recent record, got %+v", entries)
	}
}

func TestImporter_ClassificationFailureStillImports(t *testing.T) {
	ledger := newMockLedgerStore()
	imp := newImporter(ledger, &mockCompleter{answer: "Nonsense"})

	stats := imp.Import(context.Background(), []domain.FeedTransaction{
		feedRecord("tx-1", "-12.50", "2026-08-30", "Market"),
	}, "user-1", testAccount(), nil)

	if stats.Imported != 1 {
		t.Fatalf("expected the entry persisted uncategorized, got %+v", stats)
	}
	entries := ledger.all()
	if entries[0].CategoryID != "" {
		t.Errorf("expected no category, got %q", entries[0].CategoryID)
	}
}
