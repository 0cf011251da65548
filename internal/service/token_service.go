package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
)

// TokenService issues, rotates and revokes access/refresh token pairs.
// Refresh tokens are opaque random strings, stored hashed, and single-use:
// every redemption atomically replaces the live row.
type TokenService struct {
	manager    model.TokenManager
	tokens     model.RefreshTokenStore
	users      model.UserStore
	refreshTTL time.Duration
	logger     *logger.Logger
}

func NewTokenService(
	manager model.TokenManager,
	tokens model.RefreshTokenStore,
	users model.UserStore,
	refreshTTL time.Duration,
	logger *logger.Logger,
) *TokenService {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenService{
		manager:    manager,
		tokens:     tokens,
		users:      users,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Issue mints a fresh access/refresh pair for a user, starting a new
// rotation chain.
func (s *TokenService) Issue(ctx context.Context, user model.User) (model.TokenPair, error) {
	access, err := s.manager.GenerateAccessToken(identityOf(user))
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, err := newRefreshValue()
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	now := time.Now()
	rt := model.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashRefresh(refresh),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return model.TokenPair{}, fmt.Errorf("persist refresh: %w", err)
	}

	return model.TokenPair{Access: access, Refresh: refresh}, nil
}

// Rotate redeems a refresh token for a new pair. Rotation is keyed on the
// current token value: the store-level compare-and-replace succeeds only
// while presentedRefresh is still the live value, so two interleaved
// refresh attempts from one credential can never both mint a session. The
// loser receives model.ErrTokenInvalid and must fall back to a full
// re-login.
func (s *TokenService) Rotate(ctx context.Context, presentedRefresh string) (model.TokenPair, error) {
	refresh, err := newRefreshValue()
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("rotate refresh: %w", err)
	}

	now := time.Now()
	next := model.RefreshToken{
		ID:        uuid.New(),
		TokenHash: hashRefresh(refresh),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	userID, err := s.tokens.Rotate(ctx, hashRefresh(presentedRefresh), next)
	if err != nil {
		if errors.Is(err, model.ErrTokenInvalid) {
			return model.TokenPair{}, model.ErrTokenInvalid
		}
		return model.TokenPair{}, fmt.Errorf("rotate refresh: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("rotate refresh: load user: %w", err)
	}

	access, err := s.manager.GenerateAccessToken(identityOf(user))
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("rotate refresh: issue access: %w", err)
	}

	return model.TokenPair{Access: access, Refresh: refresh}, nil
}

// Revoke ends the rotation chain holding presentedRefresh. Revoking an
// unknown token is not an error.
func (s *TokenService) Revoke(ctx context.Context, presentedRefresh string) error {
	return s.tokens.RevokeByHash(ctx, hashRefresh(presentedRefresh))
}

// RevokeAll ends every rotation chain of a user.
func (s *TokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.RevokeAllByUser(ctx, userID)
}

// Authenticate resolves the identity from a bearer access token.
func (s *TokenService) Authenticate(ctx context.Context, access string) (model.Identity, error) {
	return s.manager.ParseAccessToken(access)
}

// SweepExpired removes refresh rows whose expiry already passed.
func (s *TokenService) SweepExpired(ctx context.Context) error {
	n, err := s.tokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("sweep refresh tokens: %w", err)
	}
	if n > 0 {
		s.logger.Info("swept expired refresh tokens", "count", n)
	}
	return nil
}

func identityOf(user model.User) model.Identity {
	return model.Identity{UserID: user.ID, Email: user.Email, Name: user.Name}
}

func newRefreshValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}
