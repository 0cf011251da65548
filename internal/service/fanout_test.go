package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sharelist/sharelist-sync/internal/mocks"
	"github.com/sharelist/sharelist-sync/internal/model"
	"github.com/sharelist/sharelist-sync/internal/testutil"
)

type fakeHub struct {
	mu        sync.Mutex
	broadcast []model.Event
	direct    map[uuid.UUID][]model.Event
}

func newFakeHub() *fakeHub {
	return &fakeHub{direct: make(map[uuid.UUID][]model.Event)}
}

func (h *fakeHub) Broadcast(listID uuid.UUID, event model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast = append(h.broadcast, event)
}

func (h *fakeHub) SendToUser(userID uuid.UUID, event model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct[userID] = append(h.direct[userID], event)
}

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []model.NotificationRecord
	rejects bool
}

func (q *fakeQueue) Enqueue(rec model.NotificationRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.rejects {
		return false
	}
	q.jobs = append(q.jobs, rec)
	return true
}

type fanoutFixture struct {
	lists  *mocks.ListDirectory
	notes  *mocks.NotificationStore
	users  *mocks.UserStore
	hub    *fakeHub
	queue  *fakeQueue
	fanout *FanOut
}

func newFanoutFixture() *fanoutFixture {
	f := &fanoutFixture{
		lists: &mocks.ListDirectory{},
		notes: &mocks.NotificationStore{},
		users: &mocks.UserStore{},
		hub:   newFakeHub(),
		queue: &fakeQueue{},
	}
	f.fanout = NewFanOut(f.lists, f.notes, f.users, f.hub, f.queue, testutil.MakeNoopLogger())
	return f
}

func TestFanOut_TargetsExcludeActorAndMuted(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	actor := uuid.New()
	muted := uuid.New()
	plain := uuid.New()
	listID := uuid.New()

	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Groceries", OwnerID: owner, IsGroup: true}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).
		Return([]uuid.UUID{actor, muted, plain}, nil)
	f.lists.On("MutedUserIDs", mock.Anything, listID).
		Return([]uuid.UUID{muted}, nil)
	f.users.On("GetByID", mock.Anything, actor).
		Return(model.User{ID: actor, Name: "Alice"}, nil)

	var persisted []model.NotificationRecord
	f.notes.On("CreateBatch", mock.Anything, mock.MatchedBy(func(recs []model.NotificationRecord) bool {
		persisted = recs
		return true
	})).Return(nil)

	require.NoError(t, f.fanout.FanOutForListMembers(ctx, FanOutInput{
		Type:    model.NotificationProductAdded,
		ListID:  listID,
		ActorID: actor,
	}))

	// owner and plain survive; actor and muted do not.
	require.Len(t, persisted, 2)
	got := map[uuid.UUID]bool{}
	for _, rec := range persisted {
		got[rec.TargetUserID] = true
		assert.Equal(t, "Groceries", rec.ListName)
		assert.Equal(t, "Alice", rec.ActorName)
	}
	assert.True(t, got[owner])
	assert.True(t, got[plain])

	// Push jobs mirror the persisted set exactly.
	assert.Len(t, f.queue.jobs, 2)

	// Each surviving target got its own notification:new with its own
	// record id.
	assert.Len(t, f.hub.direct[owner], 1)
	assert.Len(t, f.hub.direct[plain], 1)
	assert.Empty(t, f.hub.direct[actor])
	assert.Empty(t, f.hub.direct[muted])

	// Exactly one room event, broadcast regardless of mutes.
	require.Len(t, f.hub.broadcast, 1)
	assert.Equal(t, model.EventProductAdded, f.hub.broadcast[0].Kind)
	assert.Equal(t, "Alice", f.hub.broadcast[0].ActorName)
}

func TestFanOut_NonGroupListIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	member := uuid.New()
	listID := uuid.New()

	// Even with a stray membership row, a non-group list produces nothing.
	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Private", OwnerID: owner}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{member}, nil)

	require.NoError(t, f.fanout.FanOutForListMembers(ctx, FanOutInput{
		Type:    model.NotificationProductAdded,
		ListID:  listID,
		ActorID: member,
	}))

	f.notes.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	assert.Empty(t, f.queue.jobs)
	assert.Empty(t, f.hub.broadcast)
}

func TestFanOut_OutsiderActorRejected(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	member := uuid.New()
	outsider := uuid.New()
	listID := uuid.New()

	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Groceries", OwnerID: owner, IsGroup: true}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{member}, nil)

	err := f.fanout.FanOutForListMembers(ctx, FanOutInput{
		Type:    model.NotificationProductAdded,
		ListID:  listID,
		ActorID: outsider,
	})

	// An actor with no standing on the list mints nothing: no records, no
	// push jobs, no room event.
	require.ErrorIs(t, err, model.ErrPermissionDenied)
	f.notes.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	assert.Empty(t, f.queue.jobs)
	assert.Empty(t, f.hub.broadcast)
}

func TestFanOut_CriticalTypeBypassesMutes(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	muted := uuid.New()
	listID := uuid.New()

	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Groceries", OwnerID: owner, IsGroup: true}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{muted}, nil)
	f.users.On("GetByID", mock.Anything, owner).Return(model.User{ID: owner, Name: "Alice"}, nil)

	var persisted []model.NotificationRecord
	f.notes.On("CreateBatch", mock.Anything, mock.MatchedBy(func(recs []model.NotificationRecord) bool {
		persisted = recs
		return true
	})).Return(nil)

	require.NoError(t, f.fanout.FanOutForListMembers(ctx, FanOutInput{
		Type:    model.NotificationListDeleted,
		ListID:  listID,
		ActorID: owner,
	}))

	// The muted member still receives the deletion notice; the mute
	// lookup is never even consulted.
	require.Len(t, persisted, 1)
	assert.Equal(t, muted, persisted[0].TargetUserID)
	f.lists.AssertNotCalled(t, "MutedUserIDs", mock.Anything, mock.Anything)
}

func TestFanOut_AllMutedStillBroadcasts(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	member := uuid.New()
	listID := uuid.New()

	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Groceries", OwnerID: owner, IsGroup: true}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{member}, nil)
	f.lists.On("MutedUserIDs", mock.Anything, listID).Return([]uuid.UUID{member}, nil)
	f.users.On("GetByID", mock.Anything, owner).Return(model.User{ID: owner, Name: "Alice"}, nil)

	require.NoError(t, f.fanout.FanOutForListMembers(ctx, FanOutInput{
		Type:    model.NotificationProductToggled,
		ListID:  listID,
		ActorID: owner,
	}))

	// Every recipient muted: nothing persisted, nothing pushed, but the
	// room event still reaches connected subscribers, who filter locally.
	f.notes.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	assert.Empty(t, f.queue.jobs)
	require.Len(t, f.hub.broadcast, 1)
	assert.Equal(t, model.EventProductToggled, f.hub.broadcast[0].Kind)
}

func TestFanOut_ExcludedUserSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	removed := uuid.New()
	listID := uuid.New()

	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Groceries", OwnerID: owner, IsGroup: true}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{removed}, nil)
	f.users.On("GetByID", mock.Anything, owner).Return(model.User{ID: owner, Name: "Alice"}, nil)

	require.NoError(t, f.fanout.FanOutForListMembers(ctx, FanOutInput{
		Type:          model.NotificationMemberRemoved,
		ListID:        listID,
		ActorID:       owner,
		ExcludeUserID: &removed,
	}))

	// Owner is the actor, the removed member is excluded: no records, but
	// the room hears about the removal.
	f.notes.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	require.Len(t, f.hub.broadcast, 1)
	assert.Equal(t, model.EventMemberRemoved, f.hub.broadcast[0].Kind)
	assert.Contains(t, string(f.hub.broadcast[0].Data), removed.String())
}

func TestFanOut_PersistFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	member := uuid.New()
	listID := uuid.New()

	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Groceries", OwnerID: owner, IsGroup: true}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{member}, nil)
	f.lists.On("MutedUserIDs", mock.Anything, listID).Return([]uuid.UUID{}, nil)
	f.users.On("GetByID", mock.Anything, owner).Return(model.User{ID: owner, Name: "Alice"}, nil)
	f.notes.On("CreateBatch", mock.Anything, mock.Anything).Return(errors.New("db down"))

	// Must not panic or propagate; the room event still goes out.
	require.NoError(t, f.fanout.FanOutForListMembers(ctx, FanOutInput{
		Type:    model.NotificationProductAdded,
		ListID:  listID,
		ActorID: owner,
	}))

	assert.Empty(t, f.queue.jobs)
	assert.Len(t, f.hub.broadcast, 1)
}

func TestCreateNotification_SingleTarget(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	removed := uuid.New()
	listID := uuid.New()

	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Groceries", OwnerID: owner, IsGroup: true}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{}, nil)
	f.users.On("GetByID", mock.Anything, owner).Return(model.User{ID: owner, Name: "Alice"}, nil)

	var persisted []model.NotificationRecord
	f.notes.On("CreateBatch", mock.Anything, mock.MatchedBy(func(recs []model.NotificationRecord) bool {
		persisted = recs
		return true
	})).Return(nil)

	// The just-removed target is no longer a member; only the actor needs
	// standing.
	require.NoError(t, f.fanout.CreateNotification(ctx, FanOutInput{
		Type:    model.NotificationRemoved,
		ListID:  listID,
		ActorID: owner,
	}, removed))

	require.Len(t, persisted, 1)
	assert.Equal(t, removed, persisted[0].TargetUserID)
	assert.Len(t, f.queue.jobs, 1)
	assert.Len(t, f.hub.direct[removed], 1)
	// Single-target notices never hit the room.
	assert.Empty(t, f.hub.broadcast)
}

func TestCreateNotification_OutsiderActorRejected(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture()

	owner := uuid.New()
	outsider := uuid.New()
	target := uuid.New()
	listID := uuid.New()

	f.lists.On("GetList", mock.Anything, listID).
		Return(model.ListInfo{ID: listID, Name: "Groceries", OwnerID: owner, IsGroup: true}, nil)
	f.lists.On("MemberIDs", mock.Anything, listID).Return([]uuid.UUID{}, nil)

	err := f.fanout.CreateNotification(ctx, FanOutInput{
		Type:    model.NotificationRemoved,
		ListID:  listID,
		ActorID: outsider,
	}, target)

	require.ErrorIs(t, err, model.ErrPermissionDenied)
	f.notes.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	assert.Empty(t, f.queue.jobs)
	assert.Empty(t, f.hub.direct[target])
}
