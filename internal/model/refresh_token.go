package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore persists refresh tokens. Tokens are stored hashed;
// the opaque value never touches disk.
type RefreshTokenStore interface {
	Create(ctx context.Context, token RefreshToken) error

	// Rotate atomically supersedes the live row whose hash equals oldHash
	// and inserts next in its place. It returns the superseded row's user
	// ID. When no live row matches oldHash (unknown, revoked, expired, or
	// already rotated away) it returns ErrTokenInvalid and inserts
	// nothing, so of two concurrent redeemers of one token exactly one
	// wins.
	Rotate(ctx context.Context, oldHash []byte, next RefreshToken) (uuid.UUID, error)

	// RevokeByHash revokes the live row with the given hash. Revoking an
	// absent row is not an error.
	RevokeByHash(ctx context.Context, hash []byte) error

	RevokeAllByUser(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes rows whose expiry passed before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// RefreshToken is the stored form of a refresh credential.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenPair is an access/refresh pair as handed to a client.
type TokenPair struct {
	Access  string
	Refresh string
}
