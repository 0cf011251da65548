package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/model"
)

var _ model.PushSubscriptionStore = (*SubscriptionRepository)(nil)

type SubscriptionRepository struct {
	db *Connection
}

func NewSubscriptionRepository(db *Connection) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save upserts by endpoint: a browser re-subscribing reuses its endpoint
// row rather than accumulating duplicates.
func (r *SubscriptionRepository) Save(ctx context.Context, sub model.PushSubscription) error {
	const query = `
        INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh_key, auth_key, created_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        ON CONFLICT (endpoint) DO UPDATE
        SET user_id = EXCLUDED.user_id,
            p256dh_key = EXCLUDED.p256dh_key,
            auth_key = EXCLUDED.auth_key
    `

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	if _, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dhKey, sub.AuthKey,
	); err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetByUser(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error) {
	const query = `
        SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at
        FROM push_subscriptions WHERE user_id = $1
    `

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read push subscriptions: %w", err)
	}
	return subs, nil
}

func (r *SubscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	const query = `DELETE FROM push_subscriptions WHERE endpoint = $1`

	if _, err := r.db.Exec(ctx, query, endpoint); err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
