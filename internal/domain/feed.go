package domain

// DTOs for the bank-aggregation integrator. Field names mirror the
// integrator's JSON contract; the importer only consumes ExternalID,
// Amount, ValueDate and PayeeName.

// FeedBank is one institution selectable for linking.
type FeedBank struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	BIC       string   `json:"bic,omitempty"`
	LogoURL   string   `json:"logo,omitempty"`
	Countries []string `json:"countries,omitempty"`
}

// FeedWebToken is the consent link handed to the frontend during onboarding.
type FeedWebToken struct {
	RequisitionID string `json:"requisition_id"`
	Link          string `json:"link"`
}

// FeedBankAccount is one external account reachable under a requisition.
type FeedBankAccount struct {
	ExternalAccountID string `json:"account_id"`
	IBAN              string `json:"iban,omitempty"`
	Name              string `json:"name,omitempty"`
	Currency          string `json:"currency,omitempty"`
}

// FeedAmount is the integrator's amount envelope: a decimal string plus
// its currency.
type FeedAmount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// FeedTransaction is one transaction record from the provider feed.
// ExternalID is the provider-assigned idempotency key.
type FeedTransaction struct {
	ExternalID      string     `json:"transaction_id"`
	Amount          FeedAmount `json:"transaction_amount"`
	ValueDate       string     `json:"value_date"` // ISO date, 2006-01-02
	PayeeName       string     `json:"payee_name"`
	RemittanceLines []string   `json:"remittance_information,omitempty"`
}
