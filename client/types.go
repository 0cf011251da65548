package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is the authenticated account as returned by login/register.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// Notification is one durable notification record.
type Notification struct {
	ID           uuid.UUID  `json:"id"`
	Type         string     `json:"type"`
	ListID       uuid.UUID  `json:"listId"`
	ListName     string     `json:"listName"`
	ActorID      uuid.UUID  `json:"actorId"`
	ActorName    string     `json:"actorName"`
	TargetUserID uuid.UUID  `json:"targetUserId"`
	ProductID    *uuid.UUID `json:"productId,omitempty"`
	ProductName  *string    `json:"productName,omitempty"`
	Read         bool       `json:"read"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// PushSubscription mirrors the browser PushSubscription JSON shape.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// EventKind is the closed set of room events the channel dispatches on.
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

// Event is one room-scoped event received on the channel.
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

func decodeEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	kind, ok := ParseEventKind(env.Event)
	if !ok {
		return Event{}, fmt.Errorf("unknown event kind %q", env.Event)
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

type command struct {
	Action string    `json:"action"`
	ListID uuid.UUID `json:"listId"`
}
