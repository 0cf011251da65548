package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
)

// Auth handles registration, login and logout. It owns no profile
// editing; users are read back through the user store.
type Auth struct {
	users  model.UserStore
	tokens *TokenService
	logger *logger.Logger
}

func NewAuth(users model.UserStore, tokens *TokenService, logger *logger.Logger) *Auth {
	return &Auth{users: users, tokens: tokens, logger: logger}
}

// AuthResult is a freshly authenticated user with their first token pair.
type AuthResult struct {
	User   model.User
	Tokens model.TokenPair
}

// Register creates a user and issues the initial token pair.
func (a *Auth) Register(ctx context.Context, email, name, password string) (AuthResult, error) {
	if _, err := a.users.GetByEmail(ctx, email); err == nil {
		return AuthResult{}, model.ErrEmailTaken
	} else if !errors.Is(err, model.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := a.users.Create(ctx, model.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := a.tokens.Issue(ctx, user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	return AuthResult{User: user, Tokens: pair}, nil
}

// Login verifies credentials and issues a token pair.
func (a *Auth) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return AuthResult{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return AuthResult{}, model.ErrInvalidCredentials
	}

	pair, err := a.tokens.Issue(ctx, user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	return AuthResult{User: user, Tokens: pair}, nil
}

// Logout revokes the presented refresh token, ending that rotation chain.
func (a *Auth) Logout(ctx context.Context, refresh string) error {
	if err := a.tokens.Revoke(ctx, refresh); err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	return nil
}
