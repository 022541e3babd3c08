package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexabudget/nexabudget-go/internal/domain"
)

// In-memory fakes for the store and provider ports. The stores are
// mutex-guarded because sync runs touch them from worker goroutines.

// ------------------------------------------------------------
// AccountStore
// ------------------------------------------------------------

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	updates  []map[string]any
	failGet  error
}

func newMockAccountStore(accounts ...*domain.Account) *mockAccountStore {
	m := &mockAccountStore{accounts: make(map[string]*domain.Account)}
	for _, a := range accounts {
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func (m *mockAccountStore) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountStore) GetAccountForUser(_ context.Context, accountID, userID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	a, ok := m.accounts[accountID]
	if !ok || a.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountStore) ListAccounts(_ context.Context, userID string) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAccountStore) ListAccountsByCurrency(_ context.Context, userID, currency string) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Account
	for _, a := range m.accounts {
		if a.UserID == userID && a.Currency == currency {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAccountStore) CreateAccount(_ context.Context, account *domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *account
	cp.CreatedAt = time.Now()
	m.accounts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockAccountStore) UpdateAccount(_ context.Context, accountID string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	m.updates = append(m.updates, updates)
	for key, val := range updates {
		switch key {
		case "name":
			a.Name = val.(string)
		case "type":
			a.Type = val.(string)
		case "requisition_id":
			a.RequisitionID = val.(string)
		case "external_account_id":
			a.ExternalAccountID = val.(string)
		case "is_synchronizing":
			a.IsSynchronizing = val.(bool)
		case "last_external_sync":
			ts, err := time.Parse(time.RFC3339, val.(string))
			if err != nil {
				return err
			}
			a.LastExternalSync = &ts
		}
	}
	return nil
}

func (m *mockAccountStore) DeleteAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, accountID)
	return nil
}

func (m *mockAccountStore) get(accountID string) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[accountID]
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// ------------------------------------------------------------
// LedgerStore
// ------------------------------------------------------------

type mockLedgerStore struct {
	mu         sync.Mutex
	entries    []domain.LedgerEntry
	failCreate error
}

func newMockLedgerStore(entries ...domain.LedgerEntry) *mockLedgerStore {
	return &mockLedgerStore{entries: append([]domain.LedgerEntry(nil), entries...)}
}

func (m *mockLedgerStore) GetEntryForUser(_ context.Context, entryID, userID string) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == entryID && m.entries[i].UserID == userID {
			cp := m.entries[i]
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "ledger entry", ID: entryID}
}

func (m *mockLedgerStore) ListEntriesByUser(_ context.Context, userID string) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for i := range m.entries {
		if m.entries[i].UserID == userID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockLedgerStore) ListEntriesByAccount(_ context.Context, accountID string) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for i := range m.entries {
		if m.entries[i].AccountID == accountID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockLedgerStore) ListEntriesByTransfer(_ context.Context, transferID, userID string) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for i := range m.entries {
		if m.entries[i].TransferID == transferID && m.entries[i].UserID == userID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockLedgerStore) FindByExternalID(_ context.Context, accountID, externalID string) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].AccountID == accountID && m.entries[i].ExternalID == externalID {
			cp := m.entries[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockLedgerStore) CreateEntry(_ context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	cp := *entry
	cp.CreatedAt = time.Now()
	m.entries = append(m.entries, cp)
	out := cp
	return &out, nil
}

func (m *mockLedgerStore) UpdateEntry(_ context.Context, entryID string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == entryID {
			if v, ok := updates["category_id"]; ok {
				m.entries[i].CategoryID = v.(string)
			}
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "ledger entry", ID: entryID}
}

func (m *mockLedgerStore) DeleteEntry(_ context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == entryID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "ledger entry", ID: entryID}
}

func (m *mockLedgerStore) DeleteEntriesByAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []domain.LedgerEntry
	for i := range m.entries {
		if m.entries[i].AccountID != accountID {
			kept = append(kept, m.entries[i])
		}
	}
	m.entries = kept
	return nil
}

func (m *mockLedgerStore) SumByDirection(_ context.Context, accountID string, direction domain.Direction) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for i := range m.entries {
		if m.entries[i].AccountID == accountID && m.entries[i].Direction == direction {
			total = total.Add(m.entries[i].Amount)
		}
	}
	return total, nil
}

func (m *mockLedgerStore) all() []domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LedgerEntry(nil), m.entries...)
}

// ------------------------------------------------------------
// CategoryStore
// ------------------------------------------------------------

type mockCategoryStore struct {
	mu         sync.Mutex
	categories []domain.Category
	failList   error
}

func newMockCategoryStore(categories ...domain.Category) *mockCategoryStore {
	return &mockCategoryStore{categories: append([]domain.Category(nil), categories...)}
}

func (m *mockCategoryStore) GetCategory(_ context.Context, categoryID string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.categories {
		if m.categories[i].ID == categoryID {
			cp := m.categories[i]
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "category", ID: categoryID}
}

func (m *mockCategoryStore) GetCategoryForUser(_ context.Context, categoryID, userID string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.categories {
		if m.categories[i].ID == categoryID && (m.categories[i].UserID == "" || m.categories[i].UserID == userID) {
			cp := m.categories[i]
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "category", ID: categoryID}
}

func (m *mockCategoryStore) ListAvailable(_ context.Context, userID string, direction domain.Direction) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	var out []domain.Category
	for i := range m.categories {
		c := m.categories[i]
		if c.Direction == direction && (c.UserID == "" || c.UserID == userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCategoryStore) ListByUser(_ context.Context, userID string) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Category
	for i := range m.categories {
		if m.categories[i].UserID == userID {
			out = append(out, m.categories[i])
		}
	}
	return out, nil
}

func (m *mockCategoryStore) ListDefaults(_ context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Category
	for i := range m.categories {
		if m.categories[i].UserID == "" {
			out = append(out, m.categories[i])
		}
	}
	return out, nil
}

func (m *mockCategoryStore) CreateCategory(_ context.Context, category *domain.Category) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *category
	m.categories = append(m.categories, cp)
	out := cp
	return &out, nil
}

func (m *mockCategoryStore) UpdateCategory(_ context.Context, categoryID string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.categories {
		if m.categories[i].ID == categoryID {
			if v, ok := updates["name"]; ok {
				m.categories[i].Name = v.(string)
			}
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "category", ID: categoryID}
}

func (m *mockCategoryStore) DeleteCategory(_ context.Context, categoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.categories {
		if m.categories[i].ID == categoryID {
			m.categories = append(m.categories[:i], m.categories[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "category", ID: categoryID}
}

// ------------------------------------------------------------
// SemanticCacheStore
// ------------------------------------------------------------

type mockSemanticStore struct {
	mu      sync.Mutex
	rows    []domain.CachedAnswer
	matches []domain.CachedMatch
	inserts int
	updated int
}

func newMockSemanticStore() *mockSemanticStore {
	return &mockSemanticStore{}
}

func (m *mockSemanticStore) FindByPrompt(_ context.Context, prompt string) (*domain.CachedAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].Prompt == prompt {
			cp := m.rows[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockSemanticStore) NearestNeighbor(_ context.Context, _ []float64, limit int) ([]domain.CachedMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.matches) > limit {
		return append([]domain.CachedMatch(nil), m.matches[:limit]...), nil
	}
	return append([]domain.CachedMatch(nil), m.matches...), nil
}

func (m *mockSemanticStore) Insert(_ context.Context, answer *domain.CachedAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	m.rows = append(m.rows, *answer)
	return nil
}

func (m *mockSemanticStore) UpdateAnswer(_ context.Context, id, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Answer = answer
			m.updated++
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "cached answer", ID: id}
}

// ------------------------------------------------------------
// UserStore
// ------------------------------------------------------------

type mockUserStore struct {
	mu    sync.Mutex
	users []domain.User
}

func newMockUserStore(users ...domain.User) *mockUserStore {
	return &mockUserStore{users: append([]domain.User(nil), users...)}
}

func (m *mockUserStore) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == userID {
			cp := m.users[i]
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if strings.EqualFold(m.users[i].Email, email) {
			cp := m.users[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	cp.CreatedAt = time.Now()
	m.users = append(m.users, cp)
	out := cp
	return &out, nil
}

// ------------------------------------------------------------
// Providers
// ------------------------------------------------------------

type mockEmbedder struct {
	mu     sync.Mutex
	vector []float64
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.vector == nil {
		return []float64{0.1, 0.2, 0.3}, nil
	}
	return m.vector, nil
}

type mockCompleter struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  int
}

func (m *mockCompleter) Complete(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockBankFeed struct {
	mu      sync.Mutex
	records []domain.FeedTransaction
	err     error
	calls   int
}

func (m *mockBankFeed) GetBanks(_ context.Context, _ string) ([]domain.FeedBank, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBankFeed) CreateWebToken(_ context.Context, _, _ string) (*domain.FeedWebToken, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBankFeed) GetBankAccounts(_ context.Context, _ string) ([]domain.FeedBankAccount, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBankFeed) GetTransactions(_ context.Context, _, _ string) ([]domain.FeedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.FeedTransaction(nil), m.records...), nil
}

func (m *mockBankFeed) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// noopCache satisfies port.Cache without retaining anything, so classifier
// tests hit the store on every call.
type noopCache[T any] struct{}

func (noopCache[T]) Get(string) (T, bool) { var zero T; return zero, false }
func (noopCache[T]) Set(string, T)        {}
func (noopCache[T]) Delete(string)        {}
