package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Notification serves a user's durable notification history and read
// state.
type Notification struct {
	notifications model.NotificationStore
	logger        *logger.Logger
}

func NewNotification(notifications model.NotificationStore, logger *logger.Logger) *Notification {
	return &Notification{notifications: notifications, logger: logger}
}

// List returns a page of the user's history, newest first.
func (s *Notification) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.NotificationRecord, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.notifications.GetByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return records, nil
}

// UnreadCount returns the number of unread records owned by the user.
func (s *Notification) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead flips one record to read. A record that no longer exists for
// this owner surfaces as model.ErrNotFound; the caller decides whether
// that is already-satisfied.
func (s *Notification) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, id, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkAllRead flips every record of the user to read.
func (s *Notification) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// CleanupList removes every record referencing a deleted list. This is
// the list's own dedicated cleanup step; deletion notices produced by
// fan-out never trigger it.
func (s *Notification) CleanupList(ctx context.Context, listID uuid.UUID) error {
	n, err := s.notifications.DeleteByList(ctx, listID)
	if err != nil {
		return fmt.Errorf("cleanup list notifications: %w", err)
	}
	if n > 0 {
		s.logger.Info("removed notifications of deleted list", "list_id", listID, "count", n)
	}
	return nil
}

// SweepOlderThan applies age-based retention.
func (s *Notification) SweepOlderThan(ctx context.Context, age time.Duration) error {
	n, err := s.notifications.DeleteOlderThan(ctx, time.Now().Add(-age))
	if err != nil {
		return fmt.Errorf("sweep notifications: %w", err)
	}
	if n > 0 {
		s.logger.Info("swept aged notifications", "count", n)
	}
	return nil
}
