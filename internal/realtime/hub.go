// Package realtime maintains the server side of the bidirectional
// channel: rooms keyed by list id, live event broadcast, and presence. A
// room has no persisted state; it is reconstructed from live
// subscriptions, which is why clients re-subscribe after every reconnect.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
)

// RoomAuthorizer decides whether a user may enter a list's room. The hub
// itself knows nothing about list membership; sessions consult this
// before any join or presence command reaches the registry.
type RoomAuthorizer interface {
	Authorize(ctx context.Context, listID, userID uuid.UUID) error
}

// Hub is the process-wide connection registry, constructed once at the
// application root and passed by handle to its consumers.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]map[*Session]struct{}
	sessions map[*Session]map[uuid.UUID]struct{}
	byUser   map[uuid.UUID]map[*Session]struct{}

	authorizer RoomAuthorizer
	presence   *Presence
	logger     *logger.Logger
}

func NewHub(authorizer RoomAuthorizer, logger *logger.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Session]struct{}),
		sessions:   make(map[*Session]map[uuid.UUID]struct{}),
		byUser:     make(map[uuid.UUID]map[*Session]struct{}),
		authorizer: authorizer,
		presence:   NewPresence(),
		logger:     logger,
	}
}

// Register adds a freshly authenticated session with no room
// subscriptions yet.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s] = make(map[uuid.UUID]struct{})
	if h.byUser[s.userID] == nil {
		h.byUser[s.userID] = make(map[*Session]struct{})
	}
	h.byUser[s.userID][s] = struct{}{}
}

// Subscribe joins a session to a room and, on the user's first session in
// that room, broadcasts their arrival.
func (h *Hub) Subscribe(s *Session, listID uuid.UUID) {
	h.mu.Lock()
	if _, known := h.sessions[s]; !known {
		h.mu.Unlock()
		return
	}
	if _, already := h.sessions[s][listID]; already {
		h.mu.Unlock()
		return
	}
	h.sessions[s][listID] = struct{}{}
	if h.rooms[listID] == nil {
		h.rooms[listID] = make(map[*Session]struct{})
	}
	h.rooms[listID][s] = struct{}{}
	h.mu.Unlock()

	if h.presence.Join(listID, s.userID) {
		h.Broadcast(listID, model.Event{
			Kind:      model.EventUserJoined,
			ListID:    listID,
			ActorID:   s.userID,
			ActorName: s.userName,
			Timestamp: time.Now(),
		})
	}
}

// Unsubscribe removes a session from a room, broadcasting the user's
// departure when it was their last session there.
func (h *Hub) Unsubscribe(s *Session, listID uuid.UUID) {
	h.mu.Lock()
	if _, member := h.sessions[s][listID]; !member {
		h.mu.Unlock()
		return
	}
	delete(h.sessions[s], listID)
	h.removeFromRoomLocked(s, listID)
	h.mu.Unlock()

	h.announceLeave(s, listID)
}

// DropSession removes a session entirely: abrupt disconnects and explicit
// closes both land here. The user is pruned from every room they
// occupied, with a departure broadcast for each.
func (h *Hub) DropSession(s *Session) {
	h.mu.Lock()
	occupied := h.sessions[s]
	delete(h.sessions, s)
	for listID := range occupied {
		h.removeFromRoomLocked(s, listID)
	}
	if set := h.byUser[s.userID]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(h.byUser, s.userID)
		}
	}
	h.mu.Unlock()

	for listID := range occupied {
		h.announceLeave(s, listID)
	}
}

// Broadcast delivers an event to every session subscribed to the room,
// independent of each subscriber's mute state; connected clients re-check
// their own settings locally before surfacing anything.
func (h *Hub) Broadcast(listID uuid.UUID, event model.Event) {
	data, err := model.EncodeEvent(event)
	if err != nil {
		h.logger.Error("hub: event encoding failed", "kind", event.Kind.String(), "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.rooms[listID]))
	for s := range h.rooms[listID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.send(data)
	}
}

// SendToUser delivers an event to every connected session of one user.
func (h *Hub) SendToUser(userID uuid.UUID, event model.Event) {
	data, err := model.EncodeEvent(event)
	if err != nil {
		h.logger.Error("hub: event encoding failed", "kind", event.Kind.String(), "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.byUser[userID]))
	for s := range h.byUser[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.send(data)
	}
}

// SendPresence replies to one session with the room's current snapshot.
func (h *Hub) SendPresence(s *Session, listID uuid.UUID) {
	snapshot := model.PresenceSnapshot{UserIDs: h.presence.Snapshot(listID)}
	event := model.Event{
		Kind:      model.EventPresenceOnline,
		ListID:    listID,
		Timestamp: time.Now(),
	}
	data, err := marshalSnapshot(event, snapshot)
	if err != nil {
		h.logger.Error("hub: presence encoding failed", "list_id", listID, "error", err)
		return
	}
	s.send(data)
}

func (h *Hub) removeFromRoomLocked(s *Session, listID uuid.UUID) {
	if room := h.rooms[listID]; room != nil {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, listID)
		}
	}
}

func (h *Hub) announceLeave(s *Session, listID uuid.UUID) {
	if h.presence.Leave(listID, s.userID) {
		h.Broadcast(listID, model.Event{
			Kind:      model.EventUserLeft,
			ListID:    listID,
			ActorID:   s.userID,
			ActorName: s.userName,
			Timestamp: time.Now(),
		})
	}
}
