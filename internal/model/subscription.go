package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PushSubscriptionStore defines persistence operations for push
// subscriptions.
type PushSubscriptionStore interface {
	// Save stores a subscription, replacing any previous row with the same
	// endpoint.
	Save(ctx context.Context, sub PushSubscription) error

	GetByUser(ctx context.Context, userID uuid.UUID) ([]PushSubscription, error)

	// DeleteByEndpoint removes exactly the row with the given endpoint.
	// Deleting an absent row is not an error.
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// PushSubscription is one browser push endpoint owned by a user. It is
// deleted lazily on the first confirmed delivery failure or on explicit
// unsubscribe.
type PushSubscription struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Endpoint  string
	P256dhKey string
	AuthKey   string
	CreatedAt time.Time
}
