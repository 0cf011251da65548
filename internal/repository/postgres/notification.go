package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sharelist/sharelist-sync/internal/model"
)

var _ model.NotificationStore = (*NotificationRepository)(nil)

type NotificationRepository struct {
	db *Connection
}

func NewNotificationRepository(db *Connection) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts every record in a single batched round trip.
func (r *NotificationRepository) CreateBatch(ctx context.Context, records []model.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}

	const query = `
        INSERT INTO notifications (
            id, type, list_id, list_name, actor_id, actor_name,
            target_user_id, product_id, product_name, read, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,FALSE,$10)
    `

	batch := &pgx.Batch{}
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		batch.Queue(query,
			rec.ID, rec.Type, rec.ListID, rec.ListName, rec.ActorID, rec.ActorName,
			rec.TargetUserID, rec.ProductID, rec.ProductName, rec.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert notification batch: %w", err)
		}
	}
	return nil
}

func (r *NotificationRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.NotificationRecord, error) {
	const query = `
        SELECT id, type, list_id, list_name, actor_id, actor_name,
               target_user_id, product_id, product_name, read, created_at
        FROM notifications
        WHERE target_user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3
    `

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	records := make([]model.NotificationRecord, 0, limit)
	for rows.Next() {
		var rec model.NotificationRecord
		if err := rows.Scan(
			&rec.ID, &rec.Type, &rec.ListID, &rec.ListName, &rec.ActorID, &rec.ActorName,
			&rec.TargetUserID, &rec.ProductID, &rec.ProductName, &rec.Read, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	return records, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE target_user_id = $1 AND NOT read`

	var n int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1 AND target_user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	const query = `UPDATE notifications SET read = TRUE WHERE target_user_id = $1 AND NOT read`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

func (r *NotificationRepository) DeleteByList(ctx context.Context, listID uuid.UUID) (int64, error) {
	const query = `DELETE FROM notifications WHERE list_id = $1`

	tag, err := r.db.Exec(ctx, query, listID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications by list: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM notifications WHERE created_at < $1`

	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
