package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/resilience"
)

// supabaseUser maps the users table columns.
type supabaseUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *supabaseUser) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Email:        r.Email,
		FullName:     r.FullName,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

func (c *Client) queryUsers(ctx context.Context, path string) ([]domain.User, error) {
	var users []domain.User

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				users = []domain.User{}
				return nil
			}

			var rows []supabaseUser
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode users: %w", err)
			}
			users = make([]domain.User, 0, len(rows))
			for _, r := range rows {
				users = append(users, r.toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	return users, nil
}

// GetUserByID fetches one user by id.
func (c *Client) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByID")
	defer span.End()

	path := fmt.Sprintf("users?id=eq.%s&limit=1", url.QueryEscape(userID))
	users, err := c.queryUsers(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return &users[0], nil
}

// GetUserByEmail fetches one user by email. Returns (nil, nil) when the
// email is unknown, so the login path can answer with a uniform error.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByEmail")
	defer span.End()

	path := fmt.Sprintf("users?email=eq.%s&limit=1", url.QueryEscape(email))
	users, err := c.queryUsers(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// CreateUser inserts a new user.
func (c *Client) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	data := map[string]any{
		"id":            user.ID,
		"email":         user.Email,
		"full_name":     user.FullName,
		"password_hash": user.PasswordHash,
	}

	body, err := c.doPost(ctx, "users", data)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	var rows []supabaseUser
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return user, nil
	}
	created := rows[0].toDomain()
	return &created, nil
}
