package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/model"
)

// ListAccess answers standing questions for the realtime layer. A room
// carries a list's events, so joining one requires the same
// owner-or-member standing as publishing into it.
type ListAccess struct {
	lists model.ListDirectory
}

func NewListAccess(lists model.ListDirectory) *ListAccess {
	return &ListAccess{lists: lists}
}

// Authorize returns ErrPermissionDenied when the user is neither the
// list's owner nor one of its members. Directory lookup failures pass
// through unchanged.
func (a *ListAccess) Authorize(ctx context.Context, listID, userID uuid.UUID) error {
	list, err := a.lists.GetList(ctx, listID)
	if err != nil {
		return err
	}
	if list.OwnerID == userID {
		return nil
	}
	members, err := a.lists.MemberIDs(ctx, listID)
	if err != nil {
		return err
	}
	for _, id := range members {
		if id == userID {
			return nil
		}
	}
	return model.ErrPermissionDenied
}
