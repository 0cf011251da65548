// Package mocks provides testify mock implementations of the model
// interfaces for use in unit tests.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/sharelist/sharelist-sync/internal/model"
)

var (
	_ model.UserStore             = (*UserStore)(nil)
	_ model.RefreshTokenStore     = (*RefreshTokenStore)(nil)
	_ model.TokenManager          = (*TokenManager)(nil)
	_ model.NotificationStore     = (*NotificationStore)(nil)
	_ model.PushSubscriptionStore = (*PushSubscriptionStore)(nil)
	_ model.ListDirectory         = (*ListDirectory)(nil)
)

// UserStore is a mock implementation of model.UserStore.
type UserStore struct {
	mock.Mock
}

func (m *UserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) Create(ctx context.Context, user model.User) (model.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(model.User), args.Error(1)
}

// RefreshTokenStore is a mock implementation of model.RefreshTokenStore.
type RefreshTokenStore struct {
	mock.Mock
}

func (m *RefreshTokenStore) Create(ctx context.Context, token model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *RefreshTokenStore) Rotate(ctx context.Context, oldHash []byte, next model.RefreshToken) (uuid.UUID, error) {
	args := m.Called(ctx, oldHash, next)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *RefreshTokenStore) RevokeByHash(ctx context.Context, hash []byte) error {
	args := m.Called(ctx, hash)
	return args.Error(0)
}

func (m *RefreshTokenStore) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *RefreshTokenStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// TokenManager is a mock implementation of model.TokenManager.
type TokenManager struct {
	mock.Mock
}

func (m *TokenManager) GenerateAccessToken(identity model.Identity) (string, error) {
	args := m.Called(identity)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) ParseAccessToken(token string) (model.Identity, error) {
	args := m.Called(token)
	return args.Get(0).(model.Identity), args.Error(1)
}

// NotificationStore is a mock implementation of model.NotificationStore.
type NotificationStore struct {
	mock.Mock
}

func (m *NotificationStore) CreateBatch(ctx context.Context, records []model.NotificationRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *NotificationStore) GetByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.NotificationRecord, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.NotificationRecord), args.Error(1)
}

func (m *NotificationStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *NotificationStore) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *NotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *NotificationStore) DeleteByList(ctx context.Context, listID uuid.UUID) (int64, error) {
	args := m.Called(ctx, listID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// PushSubscriptionStore is a mock implementation of
// model.PushSubscriptionStore.
type PushSubscriptionStore struct {
	mock.Mock
}

func (m *PushSubscriptionStore) Save(ctx context.Context, sub model.PushSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *PushSubscriptionStore) GetByUser(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PushSubscription), args.Error(1)
}

func (m *PushSubscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

// ListDirectory is a mock implementation of model.ListDirectory.
type ListDirectory struct {
	mock.Mock
}

func (m *ListDirectory) GetList(ctx context.Context, listID uuid.UUID) (model.ListInfo, error) {
	args := m.Called(ctx, listID)
	return args.Get(0).(model.ListInfo), args.Error(1)
}

func (m *ListDirectory) MemberIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, listID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *ListDirectory) MutedUserIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, listID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}
