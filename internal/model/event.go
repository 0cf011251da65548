package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind is the closed set of room-scoped wire events. Routing is done
// on the kind value, never on raw strings.
type EventKind uint8

const (
	EventUserJoined EventKind = iota + 1
	EventUserLeft
	EventPresenceOnline
	EventProductAdded
	EventProductUpdated
	EventProductDeleted
	EventProductToggled
	EventNotificationNew
	EventMemberRemoved
	EventListDeleted
)

var eventNames = map[EventKind]string{
	EventUserJoined:      "user:joined",
	EventUserLeft:        "user:left",
	EventPresenceOnline:  "presence:online",
	EventProductAdded:    "product:added",
	EventProductUpdated:  "product:updated",
	EventProductDeleted:  "product:deleted",
	EventProductToggled:  "product:toggled",
	EventNotificationNew: "notification:new",
	EventMemberRemoved:   "member:removed",
	EventListDeleted:     "list:deleted",
}

var eventKinds = func() map[string]EventKind {
	m := make(map[string]EventKind, len(eventNames))
	for k, name := range eventNames {
		m[name] = k
	}
	return m
}()

// String returns the wire name of the kind.
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// ParseEventKind maps a wire name back to its kind.
func ParseEventKind(name string) (EventKind, bool) {
	k, ok := eventKinds[name]
	return k, ok
}

// EventKindForNotification maps a notification type to the room event kind
// announcing it.
func EventKindForNotification(t NotificationType) EventKind {
	switch t {
	case NotificationProductAdded:
		return EventProductAdded
	case NotificationProductUpdated:
		return EventProductUpdated
	case NotificationProductDeleted:
		return EventProductDeleted
	case NotificationProductToggled:
		return EventProductToggled
	case NotificationMemberRemoved, NotificationRemoved:
		return EventMemberRemoved
	case NotificationListDeleted:
		return EventListDeleted
	default:
		return EventNotificationNew
	}
}

// Event is one room-scoped wire event. Every payload carries at minimum
// the list id, the acting user's id and name, and a server timestamp;
// kind-specific fields travel in Data.
type Event struct {
	Kind      EventKind
	ListID    uuid.UUID
	ActorID   uuid.UUID
	ActorName string
	Timestamp time.Time
	Data      json.RawMessage
}

type eventEnvelope struct {
	Event     string          `json:"event"`
	ListID    uuid.UUID       `json:"listId"`
	ActorID   uuid.UUID       `json:"actorId,omitempty"`
	ActorName string          `json:"actorName,omitempty"`
	Timestamp time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent serializes an event into its wire envelope.
func EncodeEvent(e Event) ([]byte, error) {
	if _, ok := eventNames[e.Kind]; !ok {
		return nil, fmt.Errorf("encode event: unknown kind %d", e.Kind)
	}
	env := eventEnvelope{
		Event:     e.Kind.String(),
		ListID:    e.ListID,
		ActorID:   e.ActorID,
		ActorName: e.ActorName,
		Timestamp: e.Timestamp,
		Data:      e.Data,
	}
	return json.Marshal(env)
}

// DecodeEvent parses a wire envelope back into an event.
func DecodeEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	kind, ok := ParseEventKind(env.Event)
	if !ok {
		return Event{}, fmt.Errorf("decode event: unknown kind %q", env.Event)
	}
	return Event{
		Kind:      kind,
		ListID:    env.ListID,
		ActorID:   env.ActorID,
		ActorName: env.ActorName,
		Timestamp: env.Timestamp,
		Data:      env.Data,
	}, nil
}

// PresenceSnapshot is the Data payload of a presence:online event.
type PresenceSnapshot struct {
	UserIDs []uuid.UUID `json:"userIds"`
}

// CommandAction is the closed set of client-to-server channel commands.
type CommandAction string

const (
	CommandJoin     CommandAction = "join"
	CommandLeave    CommandAction = "leave"
	CommandPresence CommandAction = "presence"
)

// Command is a client-to-server frame on the realtime channel.
type Command struct {
	Action CommandAction `json:"action"`
	ListID uuid.UUID     `json:"listId"`
}
