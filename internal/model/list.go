package model

import (
	"context"

	"github.com/google/uuid"
)

// ListDirectory is the narrow interface consumed from the list/product
// persistence collaborator: ownership, membership and mute lookups by
// list id. This subsystem never mutates lists.
type ListDirectory interface {
	GetList(ctx context.Context, listID uuid.UUID) (ListInfo, error)

	// MemberIDs returns the member user ids of a group list, excluding the
	// owner. Non-group lists have no members.
	MemberIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error)

	// MutedUserIDs returns the users who muted notifications for listID.
	MutedUserIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error)
}

// ListInfo is the slice of list state this subsystem needs for targeting
// and display.
type ListInfo struct {
	ID      uuid.UUID
	Name    string
	OwnerID uuid.UUID
	IsGroup bool
}
