package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationType enumerates the event kinds that produce durable
// notifications.
type NotificationType string

const (
	NotificationProductAdded   NotificationType = "product_added"
	NotificationProductUpdated NotificationType = "product_updated"
	NotificationProductDeleted NotificationType = "product_deleted"
	NotificationProductToggled NotificationType = "product_toggled"
	NotificationMemberAdded    NotificationType = "member_added"
	NotificationMemberRemoved  NotificationType = "member_removed"
	// NotificationRemoved targets the removed member themselves.
	NotificationRemoved     NotificationType = "removed"
	NotificationListDeleted NotificationType = "list_deleted"
)

// Critical reports whether delivery of this type bypasses per-recipient
// mute preferences.
func (t NotificationType) Critical() bool {
	switch t {
	case NotificationListDeleted, NotificationRemoved, NotificationMemberRemoved:
		return true
	}
	return false
}

// Valid reports whether t names a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationProductAdded, NotificationProductUpdated,
		NotificationProductDeleted, NotificationProductToggled,
		NotificationMemberAdded, NotificationMemberRemoved,
		NotificationRemoved, NotificationListDeleted:
		return true
	}
	return false
}

// NotificationStore defines persistence operations for notification records.
type NotificationStore interface {
	// CreateBatch inserts all records in one statement.
	CreateBatch(ctx context.Context, records []NotificationRecord) error

	GetByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]NotificationRecord, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)

	// MarkRead flips a record owned by userID to read. Returns ErrNotFound
	// when no such record exists for that owner.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error

	// DeleteByList removes every record referencing listID. Invoked only by
	// the list-deletion cleanup step, never as a side effect of fan-out.
	DeleteByList(ctx context.Context, listID uuid.UUID) (int64, error)

	// DeleteOlderThan implements age-based retention.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationRecord is a durable per-target notification. It is owned by
// the target user and mutated only by read-marking. The JSON form is the
// wire shape shared by the HTTP API and notification:new events.
type NotificationRecord struct {
	ID           uuid.UUID        `json:"id"`
	Type         NotificationType `json:"type"`
	ListID       uuid.UUID        `json:"listId"`
	ListName     string           `json:"listName"`
	ActorID      uuid.UUID        `json:"actorId"`
	ActorName    string           `json:"actorName"`
	TargetUserID uuid.UUID        `json:"targetUserId"`
	ProductID    *uuid.UUID       `json:"productId,omitempty"`
	ProductName  *string          `json:"productName,omitempty"`
	Read         bool             `json:"read"`
	CreatedAt    time.Time        `json:"createdAt"`
}
