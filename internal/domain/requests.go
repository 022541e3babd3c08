package domain

import "github.com/shopspring/decimal"

// ============================================================
// API request payloads
// ============================================================

// AccountRequest creates or renames an account. StarterBalance, when set on
// creation, seeds the ledger with an opening entry so the derived balance
// starts at that value.
type AccountRequest struct {
	Name           string           `json:"name"`
	Type           string           `json:"type"`
	Currency       string           `json:"currency"`
	StarterBalance *decimal.Decimal `json:"starter_balance,omitempty"`
}

// LinkRequest connects an account to an external bank account.
type LinkRequest struct {
	RequisitionID     string `json:"requisition_id"`
	ExternalAccountID string `json:"external_account_id"`
}

// EntryRequest creates a manual ledger entry. Date uses the 2006-01-02
// civil date format.
type EntryRequest struct {
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Note        string          `json:"note,omitempty"`
}

// TransferRequest moves money between two of the user's accounts by
// creating a paired OUT/IN entry sharing a transfer id.
type TransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	Date          string          `json:"date"`
}

// CategoryRequest creates or renames a user category.
type CategoryRequest struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
}

// RecategorizeRequest changes the category of an existing entry.
type RecategorizeRequest struct {
	CategoryID string `json:"category_id"`
}
