package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(read bool) Notification {
	return Notification{
		ID:        uuid.New(),
		Type:      "product_added",
		ListID:    uuid.New(),
		ListName:  "Groceries",
		Read:      read,
		CreatedAt: time.Now(),
	}
}

func TestFeed_ApplyLiveDeduplicatesByID(t *testing.T) {
	f := NewNotificationFeed(nil)
	n := notification(false)

	assert.True(t, f.ApplyLive(n))
	assert.False(t, f.ApplyLive(n))

	assert.Len(t, f.Entries(), 1)
	assert.Equal(t, 1, f.Unread())
}

func TestFeed_WindowCapped(t *testing.T) {
	f := NewNotificationFeed(nil)

	var last Notification
	for i := 0; i < feedWindow+10; i++ {
		last = notification(false)
		f.ApplyLive(last)
	}

	entries := f.Entries()
	require.Len(t, entries, feedWindow)
	// newest first: the final live event heads the window
	assert.Equal(t, last.ID, entries[0].ID)
	// the counter keeps counting beyond the visible window
	assert.Equal(t, feedWindow+10, f.Unread())
}

func TestFeed_ReadEventDoesNotCount(t *testing.T) {
	f := NewNotificationFeed(nil)
	f.ApplyLive(notification(true))
	assert.Equal(t, 0, f.Unread())
}

// feedServer is a minimal history endpoint backing resync tests.
type feedServer struct {
	mu       sync.Mutex
	records  []Notification
	unread   int
	markErr  int // status to answer mark-read with; 0 means 204
	loadHits int
}

func (s *feedServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.loadHits++
		json.NewEncoder(w).Encode(map[string]any{"notifications": s.records})
	})
	mux.HandleFunc("/api/v1/notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]int{"count": s.unread})
	})
	mux.HandleFunc("/api/v1/notifications/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.markErr != 0 {
			w.WriteHeader(s.markErr)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newFeedFixture(t *testing.T, srv *feedServer) (*NotificationFeed, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	c.session.SetTokens("fresh", "r")
	return NewNotificationFeed(c), ts
}

func TestFeed_MarkReadOptimisticCommit(t *testing.T) {
	ctx := context.Background()
	n := notification(false)
	srv := &feedServer{records: []Notification{n}, unread: 1}
	f, _ := newFeedFixture(t, srv)

	require.NoError(t, f.Load(ctx))
	require.Equal(t, 1, f.Unread())

	require.NoError(t, f.MarkRead(ctx, n.ID))

	entries := f.Entries()
	assert.True(t, entries[0].Read)
	assert.Equal(t, ReadCommitted, entries[0].ReadState)
	assert.Equal(t, 0, f.Unread())
}

func TestFeed_MarkReadGoneRecordIsCommitted(t *testing.T) {
	ctx := context.Background()
	n := notification(false)
	srv := &feedServer{records: []Notification{n}, unread: 1, markErr: http.StatusNotFound}
	f, _ := newFeedFixture(t, srv)

	require.NoError(t, f.Load(ctx))

	// 404 means the record vanished server-side: already satisfied.
	require.NoError(t, f.MarkRead(ctx, n.ID))
	assert.Equal(t, ReadCommitted, f.Entries()[0].ReadState)
}

func TestFeed_MarkReadFailureTriggersResync(t *testing.T) {
	ctx := context.Background()
	n := notification(false)
	srv := &feedServer{records: []Notification{n}, unread: 1, markErr: http.StatusInternalServerError}
	f, _ := newFeedFixture(t, srv)

	require.NoError(t, f.Load(ctx))
	hitsBefore := srv.loadHits

	err := f.MarkRead(ctx, n.ID)
	require.Error(t, err)

	// No partial rollback: the feed re-fetched the authoritative state.
	srv.mu.Lock()
	assert.Greater(t, srv.loadHits, hitsBefore)
	srv.mu.Unlock()
	assert.Equal(t, 1, f.Unread())
	assert.False(t, f.Entries()[0].Read)
}

func TestFeed_MarkReadUnknownIDIsNoop(t *testing.T) {
	f := NewNotificationFeed(nil)
	// No entry, no server call, no error.
	assert.NoError(t, f.MarkRead(context.Background(), uuid.New()))
}

func TestFeed_LoadReplacesWindow(t *testing.T) {
	ctx := context.Background()
	records := make([]Notification, 3)
	for i := range records {
		records[i] = notification(i%2 == 0)
	}
	srv := &feedServer{records: records, unread: 1}
	f, _ := newFeedFixture(t, srv)

	f.ApplyLive(notification(false))
	require.NoError(t, f.Load(ctx))

	assert.Len(t, f.Entries(), 3)
	assert.Equal(t, 1, f.Unread())
}
