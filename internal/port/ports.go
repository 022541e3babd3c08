// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nexabudget/nexabudget-go/internal/domain"
)

// BankFeed talks to the bank-aggregation integrator.
type BankFeed interface {
	GetBanks(ctx context.Context, country string) ([]domain.FeedBank, error)
	CreateWebToken(ctx context.Context, institutionID, localAccountID string) (*domain.FeedWebToken, error)
	GetBankAccounts(ctx context.Context, requisitionID string) ([]domain.FeedBankAccount, error)
	GetTransactions(ctx context.Context, requisitionID, externalAccountID string) ([]domain.FeedTransaction, error)
}

// Embedder converts text into a fixed-length numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Completer invokes the language-model endpoint with a free-text prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Cache provides generic in-process caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// AccountStore defines all data operations on accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	GetAccountForUser(ctx context.Context, accountID, userID string) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	ListAccountsByCurrency(ctx context.Context, userID, currency string) ([]domain.Account, error)
	CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
	// UpdateAccount patches the given columns. Used for renames, external
	// linking and the persisted sync state (is_synchronizing,
	// last_external_sync).
	UpdateAccount(ctx context.Context, accountID string, updates map[string]any) error
	DeleteAccount(ctx context.Context, accountID string) error
}

// LedgerStore defines all data operations on ledger entries.
type LedgerStore interface {
	GetEntryForUser(ctx context.Context, entryID, userID string) (*domain.LedgerEntry, error)
	ListEntriesByUser(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
	ListEntriesByAccount(ctx context.Context, accountID string) ([]domain.LedgerEntry, error)
	ListEntriesByTransfer(ctx context.Context, transferID, userID string) ([]domain.LedgerEntry, error)
	// FindByExternalID returns (nil, nil) when no entry carries the id.
	FindByExternalID(ctx context.Context, accountID, externalID string) (*domain.LedgerEntry, error)
	CreateEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error)
	UpdateEntry(ctx context.Context, entryID string, updates map[string]any) error
	DeleteEntry(ctx context.Context, entryID string) error
	DeleteEntriesByAccount(ctx context.Context, accountID string) error
	// SumByDirection returns the total of all entry amounts (unsigned) for
	// one direction on an account.
	SumByDirection(ctx context.Context, accountID string, direction domain.Direction) (decimal.Decimal, error)
}

// CategoryStore defines all data operations on categories.
type CategoryStore interface {
	GetCategory(ctx context.Context, categoryID string) (*domain.Category, error)
	GetCategoryForUser(ctx context.Context, categoryID, userID string) (*domain.Category, error)
	// ListAvailable returns the user's own categories plus the global
	// defaults, restricted to one direction.
	ListAvailable(ctx context.Context, userID string, direction domain.Direction) ([]domain.Category, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Category, error)
	ListDefaults(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, categoryID string, updates map[string]any) error
	DeleteCategory(ctx context.Context, categoryID string) error
}

// SemanticCacheStore persists (prompt, answer, embedding) triples and
// performs nearest-neighbor search over the stored embeddings.
type SemanticCacheStore interface {
	// FindByPrompt returns (nil, nil) when no row has the exact prompt text.
	FindByPrompt(ctx context.Context, prompt string) (*domain.CachedAnswer, error)
	// NearestNeighbor returns up to limit matches ordered by similarity,
	// best first. An empty slice means the cache is empty.
	NearestNeighbor(ctx context.Context, embedding []float64, limit int) ([]domain.CachedMatch, error)
	Insert(ctx context.Context, answer *domain.CachedAnswer) error
	UpdateAnswer(ctx context.Context, id, answer string) error
}

// UserStore defines the data operations needed by auth.
type UserStore interface {
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	// GetUserByEmail returns (nil, nil) when the email is unknown.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
}
