package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sharelist/sharelist-sync/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

type RefreshTokenRepository struct {
	db *Connection
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	const query = `
        INSERT INTO refresh_tokens (
            id, user_id, token_hash, issued_at, expires_at, revoked_at, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
    `

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.IssuedAt, token.ExpiresAt, token.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// Rotate supersedes the live row matching oldHash and inserts next for
// the same user, all inside one transaction. The conditional UPDATE is
// the compare-and-replace: it matches only while oldHash is still the
// live value, so a concurrent redemption of the same token finds zero
// rows and fails closed with model.ErrTokenInvalid.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldHash []byte, next model.RefreshToken) (uuid.UUID, error) {
	const supersede = `
        UPDATE refresh_tokens
        SET revoked_at = NOW(), updated_at = NOW()
        WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
        RETURNING user_id
    `
	const insert = `
        INSERT INTO refresh_tokens (
            id, user_id, token_hash, issued_at, expires_at, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
    `

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID uuid.UUID
	if err := tx.QueryRow(ctx, supersede, oldHash).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, model.ErrTokenInvalid
		}
		return uuid.Nil, fmt.Errorf("failed to supersede refresh token: %w", err)
	}

	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	if _, err := tx.Exec(ctx, insert,
		next.ID, userID, next.TokenHash, next.IssuedAt, next.ExpiresAt,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert rotated refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit rotation: %w", err)
	}
	return userID, nil
}

func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, hash []byte) error {
	const query = `
        UPDATE refresh_tokens SET revoked_at = NOW(), updated_at = NOW()
        WHERE token_hash = $1 AND revoked_at IS NULL
    `
	if _, err := r.db.Exec(ctx, query, hash); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	const query = `
        UPDATE refresh_tokens SET revoked_at = NOW(), updated_at = NOW()
        WHERE user_id = $1 AND revoked_at IS NULL
    `
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens by user: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < $1`

	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
