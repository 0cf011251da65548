package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/sharelist/sharelist-sync/internal/model"
)

// outboundBuffer bounds per-session backlog; a consumer slower than this
// loses events and recovers through the durable history on next fetch.
const outboundBuffer = 64

// Session is one authenticated websocket connection.
type Session struct {
	userID   uuid.UUID
	userName string

	hub  *Hub
	conn *websocket.Conn

	out       chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// NewSession wraps an accepted connection for the identified user.
func NewSession(hub *Hub, conn *websocket.Conn, identity model.Identity) *Session {
	return &Session{
		userID:   identity.UserID,
		userName: identity.Name,
		hub:      hub,
		conn:     conn,
		out:      make(chan []byte, outboundBuffer),
		closed:   make(chan struct{}),
	}
}

// UserID returns the session owner's id.
func (s *Session) UserID() uuid.UUID { return s.userID }

// Serve registers the session and pumps frames until the connection or
// ctx dies. It always deregisters on exit, so abrupt network loss and
// explicit closes prune presence the same way.
func (s *Session) Serve(ctx context.Context) {
	s.hub.Register(s)
	defer s.hub.DropSession(s)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writeLoop(ctx)
	s.readLoop(ctx)

	s.closeOnce.Do(func() { close(s.closed) })
	s.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		var cmd model.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.hub.logger.Debug("session: malformed command", "user_id", s.userID, "error", err)
			continue
		}

		s.handleCommand(ctx, cmd)
	}
}

// handleCommand routes one client command. Join and presence both reveal
// room state, so both require owner-or-member standing on the list;
// refused commands are dropped without a reply.
func (s *Session) handleCommand(ctx context.Context, cmd model.Command) {
	switch cmd.Action {
	case model.CommandJoin:
		if err := s.hub.authorizer.Authorize(ctx, cmd.ListID, s.userID); err != nil {
			s.hub.logger.Warn("session: join refused", "user_id", s.userID, "list_id", cmd.ListID, "error", err)
			return
		}
		s.hub.Subscribe(s, cmd.ListID)
	case model.CommandLeave:
		s.hub.Unsubscribe(s, cmd.ListID)
	case model.CommandPresence:
		if err := s.hub.authorizer.Authorize(ctx, cmd.ListID, s.userID); err != nil {
			s.hub.logger.Warn("session: presence refused", "user_id", s.userID, "list_id", cmd.ListID, "error", err)
			return
		}
		s.hub.SendPresence(s, cmd.ListID)
	default:
		s.hub.logger.Debug("session: unknown command", "user_id", s.userID, "action", cmd.Action)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		case data := <-s.out:
			if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

// send queues a frame without blocking the hub; overflow drops the frame.
func (s *Session) send(data []byte) {
	select {
	case s.out <- data:
	default:
		s.hub.logger.Warn("session: outbound buffer full, frame dropped", "user_id", s.userID)
	}
}

// marshalSnapshot attaches a presence snapshot as the event's data and
// encodes the envelope.
func marshalSnapshot(event model.Event, snapshot model.PresenceSnapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	event.Data = data
	return model.EncodeEvent(event)
}
