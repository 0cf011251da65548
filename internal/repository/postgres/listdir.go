package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sharelist/sharelist-sync/internal/model"
)

var _ model.ListDirectory = (*ListDirectoryRepository)(nil)

// ListDirectoryRepository is the default adapter for the list/product
// collaborator's tables. Only lookups live here; list CRUD belongs to the
// collaborator.
type ListDirectoryRepository struct {
	db *Connection
}

func NewListDirectoryRepository(db *Connection) *ListDirectoryRepository {
	return &ListDirectoryRepository{db: db}
}

func (r *ListDirectoryRepository) GetList(ctx context.Context, listID uuid.UUID) (model.ListInfo, error) {
	const query = `SELECT id, name, owner_id, is_group FROM lists WHERE id = $1`

	var info model.ListInfo
	err := r.db.QueryRow(ctx, query, listID).Scan(&info.ID, &info.Name, &info.OwnerID, &info.IsGroup)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ListInfo{}, model.ErrNotFound
		}
		return model.ListInfo{}, fmt.Errorf("failed to get list: %w", err)
	}
	return info, nil
}

func (r *ListDirectoryRepository) MemberIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	const query = `SELECT user_id FROM list_members WHERE list_id = $1`
	return r.queryIDs(ctx, query, listID, "list members")
}

func (r *ListDirectoryRepository) MutedUserIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	const query = `SELECT user_id FROM list_mutes WHERE list_id = $1`
	return r.queryIDs(ctx, query, listID, "list mutes")
}

func (r *ListDirectoryRepository) queryIDs(ctx context.Context, query string, listID uuid.UUID, what string) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	return ids, nil
}
