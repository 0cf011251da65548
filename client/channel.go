package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// State is the channel's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReauthenticating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReauthenticating:
		return "reauthenticating"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// EventHandler receives one decoded room event.
type EventHandler func(Event)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Channel maintains the realtime websocket connection. It tracks the set
// of joined rooms locally and re-subscribes to every one after each
// successful dial, because the server keeps no room membership across
// disconnects. A handshake rejected for authentication goes through the
// session's shared refresh rather than redialing with the same token.
type Channel struct {
	wsURL   string
	session *Session

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	rooms     map[uuid.UUID]struct{}
	handlers  map[EventKind][]EventHandler
	connHooks []func()
	cancel    context.CancelFunc
	done      chan struct{}

	// OnStateChange, when set before Connect, observes every transition.
	OnStateChange func(State)
}

// NewChannel creates a channel sharing the client's session.
func NewChannel(c *Client) *Channel {
	return &Channel{
		wsURL:    wsEndpoint(c.baseURL),
		session:  c.session,
		rooms:    make(map[uuid.UUID]struct{}),
		handlers: make(map[EventKind][]EventHandler),
	}
}

func wsEndpoint(baseURL string) string {
	url := baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws"
}

// On registers a handler for an event kind. Handlers are invoked on the
// read loop goroutine and must not block.
func (ch *Channel) On(kind EventKind, h EventHandler) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.handlers[kind] = append(ch.handlers[kind], h)
}

// OnConnected registers a hook invoked after every successful dial, once
// rooms are rejoined. Presence views use it to request fresh snapshots.
func (ch *Channel) OnConnected(h func()) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.connHooks = append(ch.connHooks, h)
}

// State returns the current connection state.
func (ch *Channel) State() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Connect starts the connection loop. It returns immediately; the loop
// dials, reconnects with capped backoff on network loss, and stops on
// Disconnect or when the session authoritatively expires.
func (ch *Channel) Connect(ctx context.Context) {
	ch.mu.Lock()
	if ch.cancel != nil {
		ch.mu.Unlock()
		return
	}
	ctx, ch.cancel = context.WithCancel(ctx)
	ch.done = make(chan struct{})
	done := ch.done
	ch.mu.Unlock()

	go func() {
		defer close(done)
		ch.run(ctx)
	}()
}

// Disconnect tears the channel down: it cancels any dial or reconnect in
// progress, closes the connection, and clears both the room set and the
// handler registry.
func (ch *Channel) Disconnect() {
	ch.mu.Lock()
	cancel := ch.cancel
	done := ch.done
	conn := ch.conn
	ch.cancel = nil
	ch.done = nil
	ch.rooms = make(map[uuid.UUID]struct{})
	ch.handlers = make(map[EventKind][]EventHandler)
	ch.connHooks = nil
	ch.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if done != nil {
		<-done
	}
	ch.setState(StateDisconnected)
}

// Join subscribes to a room. The room is tracked locally so it survives
// reconnects; the command is sent immediately when connected.
func (ch *Channel) Join(ctx context.Context, listID uuid.UUID) {
	ch.mu.Lock()
	ch.rooms[listID] = struct{}{}
	conn := ch.conn
	ch.mu.Unlock()

	if conn != nil {
		ch.writeCommand(ctx, conn, command{Action: "join", ListID: listID})
	}
}

// Leave unsubscribes from a room and stops tracking it.
func (ch *Channel) Leave(ctx context.Context, listID uuid.UUID) {
	ch.mu.Lock()
	delete(ch.rooms, listID)
	conn := ch.conn
	ch.mu.Unlock()

	if conn != nil {
		ch.writeCommand(ctx, conn, command{Action: "leave", ListID: listID})
	}
}

// RequestPresence asks for a presence:online snapshot of a room.
func (ch *Channel) RequestPresence(ctx context.Context, listID uuid.UUID) {
	ch.mu.Lock()
	conn := ch.conn
	ch.mu.Unlock()

	if conn != nil {
		ch.writeCommand(ctx, conn, command{Action: "presence", ListID: listID})
	}
}

func (ch *Channel) run(ctx context.Context) {
	delay := reconnectBaseDelay

	for {
		if ctx.Err() != nil {
			ch.setState(StateDisconnected)
			return
		}

		ch.setState(StateConnecting)

		// A token that lapsed while idle would fail the handshake for
		// certain; rotate first instead of burning a dial on it.
		if ch.session.LocallyExpired() {
			ch.setState(StateReauthenticating)
			if _, err := ch.session.Refresh(ctx); err != nil {
				if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrNotAuthenticated) {
					ch.setState(StateDisconnected)
					return
				}
				if !ch.sleep(ctx, delay) {
					return
				}
				delay = nextDelay(delay)
				continue
			}
			ch.setState(StateConnecting)
		}

		conn, resp, err := websocket.Dial(ctx, ch.wsURL+"?access_token="+ch.session.AccessToken(), nil)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				ch.setState(StateReauthenticating)
				if _, rerr := ch.session.Refresh(ctx); rerr != nil {
					if errors.Is(rerr, ErrSessionExpired) || errors.Is(rerr, ErrNotAuthenticated) {
						ch.setState(StateDisconnected)
						return
					}
				}
				// A server that rotates tokens but keeps refusing the
				// handshake must not turn this into a hot loop.
				if !ch.sleep(ctx, delay) {
					return
				}
				delay = nextDelay(delay)
				continue
			}
			if !ch.sleep(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		delay = reconnectBaseDelay
		ch.attach(ctx, conn)

		// Blocks until the connection dies.
		ch.readLoop(ctx, conn)

		ch.mu.Lock()
		if ch.conn == conn {
			ch.conn = nil
		}
		ch.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")

		if ctx.Err() != nil {
			ch.setState(StateDisconnected)
			return
		}
		ch.setState(StateDisconnected)
	}
}

// attach installs the new connection, rejoins every tracked room, and
// fires the connected hooks.
func (ch *Channel) attach(ctx context.Context, conn *websocket.Conn) {
	ch.mu.Lock()
	ch.conn = conn
	rooms := make([]uuid.UUID, 0, len(ch.rooms))
	for id := range ch.rooms {
		rooms = append(rooms, id)
	}
	hooks := make([]func(), len(ch.connHooks))
	copy(hooks, ch.connHooks)
	ch.mu.Unlock()

	for _, id := range rooms {
		ch.writeCommand(ctx, conn, command{Action: "join", ListID: id})
	}

	ch.setState(StateConnected)

	for _, h := range hooks {
		h()
	}
}

func (ch *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		event, err := decodeEvent(data)
		if err != nil {
			continue
		}

		ch.mu.Lock()
		handlers := make([]EventHandler, len(ch.handlers[event.Kind]))
		copy(handlers, ch.handlers[event.Kind])
		ch.mu.Unlock()

		for _, h := range handlers {
			h(event)
		}
	}
}

func (ch *Channel) writeCommand(ctx context.Context, conn *websocket.Conn, cmd command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn.Write(writeCtx, websocket.MessageText, data)
}

func (ch *Channel) setState(s State) {
	ch.mu.Lock()
	if ch.state == s {
		ch.mu.Unlock()
		return
	}
	ch.state = s
	hook := ch.OnStateChange
	ch.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

func (ch *Channel) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		ch.setState(StateDisconnected)
		return false
	case <-time.After(d):
		return true
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectMaxDelay {
		d = reconnectMaxDelay
	}
	return d
}
