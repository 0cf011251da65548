package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Presence tracks, per room, the set of connected user ids. It lives only
// in process memory and is rebuilt from live subscriptions; clients never
// assume it survived a disconnect. A user may hold several sessions in
// one room, so membership is reference counted and join/leave report only
// edge transitions.
type Presence struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[uuid.UUID]int
}

func NewPresence() *Presence {
	return &Presence{rooms: make(map[uuid.UUID]map[uuid.UUID]int)}
}

// Join records a session of userID in the room. Returns true when the
// user was not present before.
func (p *Presence) Join(listID, userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	room := p.rooms[listID]
	if room == nil {
		room = make(map[uuid.UUID]int)
		p.rooms[listID] = room
	}
	room[userID]++
	return room[userID] == 1
}

// Leave drops one session of userID from the room. Returns true when the
// user's last session left.
func (p *Presence) Leave(listID, userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	room := p.rooms[listID]
	if room == nil || room[userID] == 0 {
		return false
	}
	room[userID]--
	if room[userID] > 0 {
		return false
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(p.rooms, listID)
	}
	return true
}

// Snapshot returns the user ids currently present in the room.
func (p *Presence) Snapshot(listID uuid.UUID) []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	room := p.rooms[listID]
	ids := make([]uuid.UUID, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	return ids
}
