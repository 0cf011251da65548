package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sharelist/sharelist-sync/internal/mocks"
	"github.com/sharelist/sharelist-sync/internal/model"
)

func TestListAccess_Authorize(t *testing.T) {
	owner := uuid.New()
	member := uuid.New()
	outsider := uuid.New()
	listID := uuid.New()

	tests := []struct {
		name    string
		userID  uuid.UUID
		wantErr error
	}{
		{name: "owner allowed", userID: owner},
		{name: "member allowed", userID: member},
		{name: "outsider denied", userID: outsider, wantErr: model.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lists := &mocks.ListDirectory{}
			lists.On("GetList", mock.Anything, listID).
				Return(model.ListInfo{ID: listID, OwnerID: owner, IsGroup: true}, nil)
			lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{member}, nil)

			err := NewListAccess(lists).Authorize(context.Background(), listID, tt.userID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestListAccess_UnknownList(t *testing.T) {
	lists := &mocks.ListDirectory{}
	lists.On("GetList", mock.Anything, mock.Anything).
		Return(model.ListInfo{}, model.ErrNotFound)

	err := NewListAccess(lists).Authorize(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestListAccess_LookupFailurePropagates(t *testing.T) {
	boom := errors.New("db down")
	lists := &mocks.ListDirectory{}
	lists.On("GetList", mock.Anything, mock.Anything).
		Return(model.ListInfo{ID: uuid.New(), OwnerID: uuid.New(), IsGroup: true}, nil)
	lists.On("MemberIDs", mock.Anything, mock.Anything).Return(nil, boom)

	err := NewListAccess(lists).Authorize(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, boom)
}
