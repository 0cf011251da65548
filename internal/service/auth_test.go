package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharelist/sharelist-sync/internal/mocks"
	"github.com/sharelist/sharelist-sync/internal/model"
	"github.com/sharelist/sharelist-sync/internal/testutil"
)

func newAuthFixture(users *mocks.UserStore, tokens *mocks.RefreshTokenStore, manager *mocks.TokenManager) *Auth {
	log := testutil.MakeNoopLogger()
	tokenService := NewTokenService(manager, tokens, users, time.Hour, log)
	return NewAuth(users, tokenService, log)
}

func TestAuth_Register_Success(t *testing.T) {
	ctx := context.Background()
	users := &mocks.UserStore{}
	tokens := &mocks.RefreshTokenStore{}
	manager := &mocks.TokenManager{}

	users.On("GetByEmail", mock.Anything, "a@b.c").Return(model.User{}, model.ErrNotFound)
	created := model.User{ID: uuid.New(), Email: "a@b.c", Name: "Alice"}
	users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
		// the raw password must never be stored
		return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte("secret-password")) == nil
	})).Return(created, nil)
	manager.On("GenerateAccessToken", mock.Anything).Return("access", nil)
	tokens.On("Create", mock.Anything, mock.Anything).Return(nil)

	a := newAuthFixture(users, tokens, manager)

	result, err := a.Register(ctx, "a@b.c", "Alice", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", result.User.Email)
	assert.Equal(t, "access", result.Tokens.Access)
	assert.NotEmpty(t, result.Tokens.Refresh)
}

func TestAuth_Register_EmailTaken(t *testing.T) {
	ctx := context.Background()
	users := &mocks.UserStore{}

	users.On("GetByEmail", mock.Anything, "a@b.c").Return(model.User{ID: uuid.New()}, nil)

	a := newAuthFixture(users, &mocks.RefreshTokenStore{}, &mocks.TokenManager{})

	_, err := a.Register(ctx, "a@b.c", "Alice", "secret-password")
	assert.ErrorIs(t, err, model.ErrEmailTaken)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuth_Login_Success(t *testing.T) {
	ctx := context.Background()
	users := &mocks.UserStore{}
	tokens := &mocks.RefreshTokenStore{}
	manager := &mocks.TokenManager{}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	require.NoError(t, err)
	user := model.User{ID: uuid.New(), Email: "a@b.c", Name: "Alice", PasswordHash: hash}

	users.On("GetByEmail", mock.Anything, "a@b.c").Return(user, nil)
	manager.On("GenerateAccessToken", mock.Anything).Return("access", nil)
	tokens.On("Create", mock.Anything, mock.Anything).Return(nil)

	a := newAuthFixture(users, tokens, manager)

	result, err := a.Login(ctx, "a@b.c", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.Tokens.Refresh)
}

func TestAuth_Login_WrongPassword(t *testing.T) {
	ctx := context.Background()
	users := &mocks.UserStore{}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	require.NoError(t, err)
	users.On("GetByEmail", mock.Anything, "a@b.c").
		Return(model.User{ID: uuid.New(), PasswordHash: hash}, nil)

	a := newAuthFixture(users, &mocks.RefreshTokenStore{}, &mocks.TokenManager{})

	_, err = a.Login(ctx, "a@b.c", "wrong")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuth_Login_UnknownEmail(t *testing.T) {
	ctx := context.Background()
	users := &mocks.UserStore{}

	users.On("GetByEmail", mock.Anything, "nobody@b.c").Return(model.User{}, model.ErrNotFound)

	a := newAuthFixture(users, &mocks.RefreshTokenStore{}, &mocks.TokenManager{})

	_, err := a.Login(ctx, "nobody@b.c", "whatever")
	// Unknown email and wrong password are indistinguishable to callers.
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuth_Logout_RevokesChain(t *testing.T) {
	ctx := context.Background()
	tokens := &mocks.RefreshTokenStore{}
	tokens.On("RevokeByHash", mock.Anything, mock.Anything).Return(nil)

	a := newAuthFixture(&mocks.UserStore{}, tokens, &mocks.TokenManager{})

	require.NoError(t, a.Logout(ctx, "some-refresh"))
	tokens.AssertExpectations(t)
}
