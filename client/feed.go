package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// feedWindow caps the in-memory entry count; older entries stay reachable
// through the paginated history.
const feedWindow = 50

// ReadState tracks one entry's read flag through an optimistic mutation.
type ReadState int

const (
	// ReadCommitted means local state matches the server.
	ReadCommitted ReadState = iota
	// ReadPendingLocal means the flag flipped locally and the server call
	// is still in flight.
	ReadPendingLocal
	// ReadReverting means the server call failed and a resynchronizing
	// re-fetch is reconciling the entry.
	ReadReverting
)

// FeedEntry is one notification plus its local read reconciliation state.
type FeedEntry struct {
	Notification
	ReadState ReadState
}

// NotificationFeed merges the durable history with live notification:new
// events. A live event whose id is already present is a no-op; a new one
// is prepended and counted as unread, with the window capped to the most
// recent entries.
type NotificationFeed struct {
	client *Client

	mu      sync.Mutex
	entries []FeedEntry
	unread  int
}

// NewNotificationFeed creates an empty feed.
func NewNotificationFeed(c *Client) *NotificationFeed {
	return &NotificationFeed{client: c}
}

// Attach subscribes the feed to a channel's notification:new events.
func (f *NotificationFeed) Attach(ch *Channel) {
	ch.On(EventNotificationNew, func(e Event) {
		var n Notification
		if err := json.Unmarshal(e.Data, &n); err != nil {
			return
		}
		f.ApplyLive(n)
	})
}

// Load replaces the feed with a fresh first page of the history.
func (f *NotificationFeed) Load(ctx context.Context) error {
	records, err := f.client.Notifications(ctx, feedWindow, 0)
	if err != nil {
		return err
	}
	count, err := f.client.UnreadCount(ctx)
	if err != nil {
		return err
	}

	entries := make([]FeedEntry, 0, len(records))
	for _, n := range records {
		entries = append(entries, FeedEntry{Notification: n})
	}

	f.mu.Lock()
	f.entries = entries
	f.unread = count
	f.mu.Unlock()
	return nil
}

// ApplyLive merges one live notification. It reports whether the entry
// was new.
func (f *NotificationFeed) ApplyLive(n Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.entries {
		if e.ID == n.ID {
			return false
		}
	}

	f.entries = append([]FeedEntry{{Notification: n}}, f.entries...)
	if len(f.entries) > feedWindow {
		f.entries = f.entries[:feedWindow]
	}
	if !n.Read {
		f.unread++
	}
	return true
}

// Entries returns a snapshot of the window, newest first.
func (f *NotificationFeed) Entries() []FeedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FeedEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Unread returns the unread counter.
func (f *NotificationFeed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// MarkRead optimistically flips one entry. The local flag changes first;
// the server call follows. An entry already removed server-side counts as
// satisfied. Any other failure abandons partial rollback and resolves
// through one full re-fetch.
func (f *NotificationFeed) MarkRead(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	idx := -1
	for i := range f.entries {
		if f.entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 || f.entries[idx].Read {
		f.mu.Unlock()
		return nil
	}
	f.entries[idx].Read = true
	f.entries[idx].ReadState = ReadPendingLocal
	f.unread--
	f.mu.Unlock()

	if err := f.client.MarkRead(ctx, id); err != nil {
		f.mu.Lock()
		for i := range f.entries {
			if f.entries[i].ID == id {
				f.entries[i].ReadState = ReadReverting
			}
		}
		f.mu.Unlock()

		if rerr := f.Load(ctx); rerr != nil {
			return rerr
		}
		return err
	}

	f.mu.Lock()
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].ReadState = ReadCommitted
		}
	}
	f.mu.Unlock()
	return nil
}

// MarkAllRead optimistically flips every entry, with the same
// resync-on-failure contract as MarkRead.
func (f *NotificationFeed) MarkAllRead(ctx context.Context) error {
	f.mu.Lock()
	for i := range f.entries {
		if !f.entries[i].Read {
			f.entries[i].Read = true
			f.entries[i].ReadState = ReadPendingLocal
		}
	}
	f.unread = 0
	f.mu.Unlock()

	if err := f.client.MarkAllRead(ctx); err != nil {
		if rerr := f.Load(ctx); rerr != nil {
			return rerr
		}
		return err
	}

	f.mu.Lock()
	for i := range f.entries {
		if f.entries[i].ReadState == ReadPendingLocal {
			f.entries[i].ReadState = ReadCommitted
		}
	}
	f.mu.Unlock()
	return nil
}
