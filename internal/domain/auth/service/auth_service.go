package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/credtrack/credtrack-api/internal/domain/auth/repository"
	"github.com/credtrack/credtrack-api/internal/types"
)

// TokenManager issues and validates the identity tokens the rest of the
// system treats as opaque.
type TokenManager interface {
	GenerateAccessToken(userID uuid.UUID) (string, time.Time, error)
	GenerateRefreshToken(userID uuid.UUID) (string, error)
	ValidateToken(token string) (uuid.UUID, error)
}

type jwtTokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager builds an HS256 token manager.
func NewTokenManager(secret []byte, accessTTL, refreshTTL time.Duration) TokenManager {
	return &jwtTokenManager{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (m *jwtTokenManager) generate(userID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *jwtTokenManager) GenerateAccessToken(userID uuid.UUID) (string, time.Time, error) {
	return m.generate(userID, m.accessTTL)
}

func (m *jwtTokenManager) GenerateRefreshToken(userID uuid.UUID) (string, error) {
	token, _, err := m.generate(userID, m.refreshTTL)
	return token, err
}

func (m *jwtTokenManager) ValidateToken(token string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", types.ErrUnauthenticated)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, fmt.Errorf("token missing subject: %w", types.ErrUnauthenticated)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed token subject: %w", types.ErrUnauthenticated)
	}
	return userID, nil
}

// AuthService handles registration, login and token validation.
type AuthService struct {
	logger   *slog.Logger
	repo     repository.AuthRepository
	subs     types.SubscriptionRepository
	tokens   TokenManager
	minChars int
}

func NewAuthService(
	repo repository.AuthRepository,
	subs types.SubscriptionRepository,
	tokens TokenManager,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		logger:   logger,
		repo:     repo,
		subs:     subs,
		tokens:   tokens,
		minChars: 8,
	}
}

// Register creates the account and its initial free subscription row.
func (s *AuthService) Register(ctx context.Context, req types.RegisterRequest) (*types.AuthResponse, error) {
	l := s.logger.With(slog.String("method", "Register"), slog.String("email", req.Email))

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("valid email is required: %w", types.ErrBadRequest)
	}
	if len(req.Password) < s.minChars {
		return nil, fmt.Errorf("password must be at least %d characters: %w", s.minChars, types.ErrBadRequest)
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", types.ErrConflict)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, req.DisplayName, string(hash))
	if err != nil {
		return nil, err
	}

	// A new account starts on the free tier. A failed insert here is
	// tolerable: the entitlement engine treats a missing row as free.
	if err := s.subs.CreateDefault(ctx, user.ID); err != nil {
		l.WarnContext(ctx, "failed to create default subscription", slog.Any("error", err))
	}

	l.InfoContext(ctx, "user registered", slog.String("userID", user.ID.String()))
	return s.issueTokens(user)
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req types.LoginRequest) (*types.AuthResponse, error) {
	l := s.logger.With(slog.String("method", "Login"), slog.String("email", req.Email))

	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		l.InfoContext(ctx, "login rejected")
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		l.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	l.InfoContext(ctx, "user logged in", slog.String("userID", user.ID.String()))
	return s.issueTokens(user)
}

// ValidateToken resolves an access token to a user identity.
func (s *AuthService) ValidateToken(token string) (uuid.UUID, error) {
	return s.tokens.ValidateToken(token)
}

func (s *AuthService) issueTokens(user *types.User) (*types.AuthResponse, error) {
	access, expiresAt, err := s.tokens.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &types.AuthResponse{
		User: *user,
		Tokens: types.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    expiresAt,
		},
	}, nil
}
