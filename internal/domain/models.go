// Package domain defines the core business entities for NexaBudget.
// These models are independent of external services and represent the
// canonical data structures used throughout the backend.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Users
// ============================================================

// User represents an authenticated NexaBudget user.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ============================================================
// Accounts
// ============================================================

// Account is a money account owned by a user. Its balance is never stored:
// it is always derived by summing the account's ledger entries.
type Account struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	Currency          string     `json:"currency"`
	RequisitionID     string     `json:"requisition_id,omitempty"`
	ExternalAccountID string     `json:"external_account_id,omitempty"`
	LastExternalSync  *time.Time `json:"last_external_sync,omitempty"`
	IsSynchronizing   bool       `json:"is_synchronizing"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Linked reports whether the account is connected to an external bank
// account through the aggregation provider.
func (a *Account) Linked() bool {
	return a.RequisitionID != "" && a.ExternalAccountID != ""
}

// AccountResponse is the account as returned to API clients, with the
// derived balance attached.
type AccountResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	Currency         string          `json:"currency"`
	ActualBalance    decimal.Decimal `json:"actual_balance"`
	IsLinkedExternal bool            `json:"is_linked_to_external"`
	IsSynchronizing  bool            `json:"is_synchronizing"`
	LastExternalSync *time.Time      `json:"last_external_sync,omitempty"`
}

// ============================================================
// Ledger
// ============================================================

// Direction tells whether money entered or left the account.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// LedgerEntry is one dated, directional money movement belonging to an
// account. Amount is always positive; Direction carries the sign.
// ExternalID is set only on provider-imported entries and is the
// idempotency key for imports (unique per account).
type LedgerEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Note        string          `json:"note,omitempty"`
	ExternalID  string          `json:"external_id,omitempty"`
	TransferID  string          `json:"transfer_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed returns the entry amount with its direction applied
// (IN positive, OUT negative).
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == DirectionOut {
		return e.Amount.Neg()
	}
	return e.Amount
}

// ============================================================
// Categories
// ============================================================

// Category is a spending/income bucket. UserID empty means it is a global
// default category visible to every user.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
}

// ============================================================
// Semantic cache
// ============================================================

// CachedAnswer is one (prompt, answer, embedding) triple in the semantic
// cache. At most one row exists per distinct prompt text.
type CachedAnswer struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Answer    string    `json:"answer"`
	Embedding []float64 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// CachedMatch is a nearest-neighbor search result with its similarity score.
type CachedMatch struct {
	CachedAnswer
	Similarity float64 `json:"similarity"`
}

// ============================================================
// Sync
// ============================================================

// SyncRequest triggers a background bank sync for an account. ActualBalance,
// when present, is the balance the bank currently reports; the reconciler
// aligns the ledger to it.
type SyncRequest struct {
	ActualBalance *decimal.Decimal `json:"actual_balance,omitempty"`
}

// SyncStatus is the persisted sync state exposed to API clients.
type SyncStatus struct {
	AccountID        string     `json:"account_id"`
	IsSynchronizing  bool       `json:"is_synchronizing"`
	LastExternalSync *time.Time `json:"last_external_sync,omitempty"`
}

// SyncMetrics is a read-model over the sync counters for the metrics
// endpoint.
type SyncMetrics struct {
	RunsCompleted     int64   `json:"runs_completed"`
	RunsFailed        int64   `json:"runs_failed"`
	RunsSkipped       int64   `json:"runs_skipped"`
	EntriesImported   int64   `json:"entries_imported"`
	SemanticHitRate   float64 `json:"semantic_cache_hit_rate"`
	ClassifierFailure float64 `json:"classifier_failure_rate"`
}
