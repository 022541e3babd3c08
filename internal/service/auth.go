package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

// AccessClaims is the JWT payload carried by access tokens.
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Auth implements registration, login and token validation.
type Auth struct {
	users     port.UserStore
	secret    []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

func NewAuth(users port.UserStore, secret string, accessTTL time.Duration, logger *zap.Logger) *Auth {
	return &Auth{
		users:     users,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// Register creates a user and returns a fresh access token.
func (s *Auth) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "credentials", Message: "email and password are required"}
	}
	if len(req.Password) < 8 {
		return nil, &domain.ErrValidation{Field: "password", Message: "password must be at least 8 characters"}
	}

	existing, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, &domain.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issueToken(user)
}

// Login verifies credentials and returns an access token. Unknown email and
// wrong password produce the same error.
func (s *Auth) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	return s.issueToken(user)
}

// ValidateAccessToken parses and verifies a token string, returning its
// claims.
func (s *Auth) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &domain.ErrUnauthorized{Message: "unexpected signing method"}
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}

func (s *Auth) issueToken(user *domain.User) (*domain.LoginResponse, error) {
	now := time.Now()
	claims := &AccessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTTL.Seconds()),
		UserID:      user.ID,
	}, nil
}
