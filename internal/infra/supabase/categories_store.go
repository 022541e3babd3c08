package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/resilience"
)

// supabaseCategory maps the categories table columns.
type supabaseCategory struct {
	ID        string  `json:"id"`
	UserID    *string `json:"user_id"` // null means global default
	Name      string  `json:"name"`
	Direction string  `json:"direction"`
}

func (r *supabaseCategory) toDomain() domain.Category {
	c := domain.Category{
		ID:        r.ID,
		Name:      r.Name,
		Direction: domain.Direction(r.Direction),
	}
	if r.UserID != nil {
		c.UserID = *r.UserID
	}
	return c
}

func (c *Client) queryCategories(ctx context.Context, path string) ([]domain.Category, error) {
	var categories []domain.Category

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				categories = []domain.Category{}
				return nil
			}

			var rows []supabaseCategory
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode categories: %w", err)
			}
			categories = make([]domain.Category, 0, len(rows))
			for _, r := range rows {
				categories = append(categories, r.toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	return categories, nil
}

// GetCategory fetches one category by id.
func (c *Client) GetCategory(ctx context.Context, categoryID string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCategory")
	defer span.End()

	path := fmt.Sprintf("categories?id=eq.%s&limit=1", url.QueryEscape(categoryID))
	categories, err := c.queryCategories(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, &domain.ErrNotFound{Resource: "category", ID: categoryID}
	}
	return &categories[0], nil
}

// GetCategoryForUser fetches one category owned by the user.
func (c *Client) GetCategoryForUser(ctx context.Context, categoryID, userID string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCategoryForUser")
	defer span.End()

	path := fmt.Sprintf("categories?id=eq.%s&user_id=eq.%s&limit=1",
		url.QueryEscape(categoryID), url.QueryEscape(userID))
	categories, err := c.queryCategories(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, &domain.ErrNotFound{Resource: "category", ID: categoryID}
	}
	return &categories[0], nil
}

// ListAvailable returns the user's own categories plus the global defaults
// for one direction. PostgREST or-filter over a nullable owner column.
func (c *Client) ListAvailable(ctx context.Context, userID string, direction domain.Direction) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAvailableCategories")
	defer span.End()

	path := fmt.Sprintf("categories?direction=eq.%s&or=(user_id.eq.%s,user_id.is.null)&order=name.asc",
		url.QueryEscape(string(direction)), url.QueryEscape(userID))
	return c.queryCategories(ctx, path)
}

// ListByUser lists only the user's own categories.
func (c *Client) ListByUser(ctx context.Context, userID string) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategoriesByUser")
	defer span.End()

	path := fmt.Sprintf("categories?user_id=eq.%s&order=name.asc", url.QueryEscape(userID))
	return c.queryCategories(ctx, path)
}

// ListDefaults lists the global default categories.
func (c *Client) ListDefaults(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDefaultCategories")
	defer span.End()

	return c.queryCategories(ctx, "categories?user_id=is.null&order=name.asc")
}

// CreateCategory inserts a new category.
func (c *Client) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCategory")
	defer span.End()

	data := map[string]any{
		"id":        category.ID,
		"name":      category.Name,
		"direction": string(category.Direction),
	}
	if category.UserID != "" {
		data["user_id"] = category.UserID
	}

	body, err := c.doPost(ctx, "categories", data)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}

	var rows []supabaseCategory
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return category, nil
	}
	created := rows[0].toDomain()
	return &created, nil
}

// UpdateCategory patches the given columns on one category.
func (c *Client) UpdateCategory(ctx context.Context, categoryID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCategory")
	defer span.End()

	path := fmt.Sprintf("categories?id=eq.%s", url.QueryEscape(categoryID))
	if err := c.doPatch(ctx, path, updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	return nil
}

// DeleteCategory removes one category.
func (c *Client) DeleteCategory(ctx context.Context, categoryID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCategory")
	defer span.End()

	path := fmt.Sprintf("categories?id=eq.%s", url.QueryEscape(categoryID))
	if err := c.doDelete(ctx, path); err != nil {
		return &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	return nil
}
