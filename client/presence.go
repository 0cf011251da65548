package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// PresenceView tracks which users are online in one room. It never
// assumes presence survived a disconnect: a fresh snapshot is requested
// on mount and again after every reconnect, and join/leave events mutate
// the set in between.
type PresenceView struct {
	listID uuid.UUID

	mu     sync.Mutex
	online map[uuid.UUID]struct{}
}

// NewPresenceView wires a view to the channel. Mount joins the room and
// requests the initial snapshot.
func NewPresenceView(ch *Channel, listID uuid.UUID) *PresenceView {
	v := &PresenceView{
		listID: listID,
		online: make(map[uuid.UUID]struct{}),
	}

	ch.On(EventPresenceOnline, func(e Event) {
		if e.ListID != listID {
			return
		}
		var snap PresenceSnapshot
		if err := json.Unmarshal(e.Data, &snap); err != nil {
			return
		}
		v.replace(snap.UserIDs)
	})
	ch.On(EventUserJoined, func(e Event) {
		if e.ListID == listID {
			v.add(e.ActorID)
		}
	})
	ch.On(EventUserLeft, func(e Event) {
		if e.ListID == listID {
			v.remove(e.ActorID)
		}
	})
	ch.OnConnected(func() {
		ch.RequestPresence(context.Background(), listID)
	})

	return v
}

// Mount joins the room and requests the first snapshot.
func (v *PresenceView) Mount(ctx context.Context, ch *Channel) {
	ch.Join(ctx, v.listID)
	ch.RequestPresence(ctx, v.listID)
}

// Online returns the user ids currently in the room.
func (v *PresenceView) Online() []uuid.UUID {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]uuid.UUID, 0, len(v.online))
	for id := range v.online {
		out = append(out, id)
	}
	return out
}

// IsOnline reports whether a user is in the room.
func (v *PresenceView) IsOnline(userID uuid.UUID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.online[userID]
	return ok
}

func (v *PresenceView) replace(ids []uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.online = make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		v.online[id] = struct{}{}
	}
}

func (v *PresenceView) add(id uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.online[id] = struct{}{}
}

func (v *PresenceView) remove(id uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.online, id)
}
