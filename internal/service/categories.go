package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

// Default category names seeded once per installation. UserID stays empty
// on these rows, which makes them visible to every user.
var (
	defaultExpenseCategories = []string{
		"Groceries", "Transport", "Housing", "Utilities", "Health",
		"Leisure", "Clothing", "Education", "Gifts",
	}
	defaultIncomeCategories = []string{
		"Salary", "Bonus", "Gifts", "Investments", "Refunds", "Freelance",
	}
)

// Categories implements category management on top of the store.
type Categories struct {
	store  port.CategoryStore
	logger *zap.Logger
}

func NewCategories(store port.CategoryStore, logger *zap.Logger) *Categories {
	return &Categories{store: store, logger: logger}
}

// Create adds a user-owned category. Names are unique per user and
// direction, compared case-insensitively.
func (s *Categories) Create(ctx context.Context, userID string, req *domain.CategoryRequest) (*domain.Category, error) {
	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if req.Direction != domain.DirectionIn && req.Direction != domain.DirectionOut {
		return nil, &domain.ErrValidation{Field: "direction", Message: "direction must be IN or OUT"}
	}

	existing, err := s.store.ListAvailable(ctx, userID, req.Direction)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if strings.EqualFold(existing[i].Name, req.Name) {
			return nil, &domain.ErrConflict{Message: "category already exists: " + existing[i].Name}
		}
	}

	return s.store.CreateCategory(ctx, &domain.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      req.Name,
		Direction: req.Direction,
	})
}

// List returns the user's categories plus the global defaults.
func (s *Categories) List(ctx context.Context, userID string) ([]domain.Category, error) {
	own, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defaults, err := s.store.ListDefaults(ctx)
	if err != nil {
		return nil, err
	}
	return append(own, defaults...), nil
}

// Update renames a user-owned category. Default categories are read-only.
func (s *Categories) Update(ctx context.Context, categoryID, userID string, req *domain.CategoryRequest) error {
	if req.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	cat, err := s.store.GetCategoryForUser(ctx, categoryID, userID)
	if err != nil {
		return err
	}
	if cat.UserID == "" {
		return &domain.ErrForbidden{Action: "modify default category"}
	}
	return s.store.UpdateCategory(ctx, categoryID, map[string]any{"name": req.Name})
}

// Delete removes a user-owned category. Entries keep their category_id;
// lookups on a deleted id resolve to not found.
func (s *Categories) Delete(ctx context.Context, categoryID, userID string) error {
	cat, err := s.store.GetCategoryForUser(ctx, categoryID, userID)
	if err != nil {
		return err
	}
	if cat.UserID == "" {
		return &domain.ErrForbidden{Action: "delete default category"}
	}
	return s.store.DeleteCategory(ctx, categoryID)
}

// EnsureDefaults seeds the global default categories when none exist yet.
// Safe to call on every startup.
func (s *Categories) EnsureDefaults(ctx context.Context) error {
	defaults, err := s.store.ListDefaults(ctx)
	if err != nil {
		return err
	}
	if len(defaults) > 0 {
		return nil
	}

	seed := func(names []string, direction domain.Direction) error {
		for _, name := range names {
			_, err := s.store.CreateCategory(ctx, &domain.Category{
				ID:        uuid.NewString(),
				Name:      name,
				Direction: direction,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := seed(defaultExpenseCategories, domain.DirectionOut); err != nil {
		return err
	}
	if err := seed(defaultIncomeCategories, domain.DirectionIn); err != nil {
		return err
	}
	s.logger.Info("seeded default categories",
		zap.Int("expense", len(defaultExpenseCategories)),
		zap.Int("income", len(defaultIncomeCategories)),
	)
	return nil
}
