// Package client is the Go SDK for the sharelist sync server: session
// and token rotation, authenticated HTTP calls with transparent refresh,
// the realtime channel, the notification feed, presence, and the local
// preference mirror.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// Session holds the current token pair and owns the process-wide refresh
// path. The HTTP client and the realtime channel share one Session, so at
// most one refresh request is ever in flight: concurrent triggers collapse
// into the same call and all resolve with its outcome.
type Session struct {
	baseURL string
	httpc   *http.Client

	mu          sync.Mutex
	access      string
	refresh     string
	generation  uint64
	expiredOnce *sync.Once
	authFlows   int

	sf singleflight.Group

	// OnExpired is invoked exactly once per session generation when a
	// refresh is authoritatively rejected. It is never invoked while an
	// explicit login or registration call is underway.
	OnExpired func()
}

// NewSession creates a session bound to the server's base URL.
func NewSession(baseURL string, httpc *http.Client) *Session {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Session{
		baseURL:     baseURL,
		httpc:       httpc,
		expiredOnce: &sync.Once{},
	}
}

// SetTokens installs a fresh pair and starts a new session generation, so
// a later expiry can fire the hook again.
func (s *Session) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.refresh = refresh
	s.generation++
	s.expiredOnce = &sync.Once{}
}

// AccessToken returns the current access token, empty when logged out.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// RefreshToken returns the current refresh token, empty when logged out.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

// Authenticated reports whether a token pair is installed.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh != ""
}

// Clear drops the token pair without firing the expiry hook. Used by
// explicit logout.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
}

// LocallyExpired checks the access token's exp claim without verifying
// the signature. Callers use it to skip a handshake that is guaranteed to
// fail with a token that lapsed while the process was idle.
func (s *Session) LocallyExpired() bool {
	s.mu.Lock()
	access := s.access
	s.mu.Unlock()
	if access == "" {
		return true
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return time.Now().After(claims.ExpiresAt.Time)
}

// beginAuthFlow suppresses the expiry hook while an explicit login or
// registration call runs, so a concurrently failing refresh cannot force
// a redirect out of a flow the user already entered.
func (s *Session) beginAuthFlow() {
	s.mu.Lock()
	s.authFlows++
	s.mu.Unlock()
}

func (s *Session) endAuthFlow() {
	s.mu.Lock()
	s.authFlows--
	s.mu.Unlock()
}

// Refresh rotates the token pair through the server, deduplicating
// concurrent callers onto one in-flight request. It returns the access
// token to use. A transport failure preserves the session and fails only
// this caller's operation; an authoritative rejection clears the session,
// fires OnExpired once, and returns ErrSessionExpired.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	stale := s.access
	s.mu.Unlock()

	v, err, _ := s.sf.Do("refresh", func() (interface{}, error) {
		s.mu.Lock()
		current := s.access
		refresh := s.refresh
		s.mu.Unlock()

		// Another caller may have rotated while this one waited on the
		// singleflight lock.
		if current != "" && current != stale {
			return current, nil
		}
		if refresh == "" {
			return "", ErrNotAuthenticated
		}
		return s.rotate(ctx, refresh)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) rotate(ctx context.Context, refresh string) (string, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refresh})
	if err != nil {
		return "", fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		// Transport failure: the rotator was never reached, the stored
		// pair may still be valid.
		return "", fmt.Errorf("refresh transport failure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		s.expire()
		return "", ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh failed with status %d", resp.StatusCode)
	}

	var pair struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}

	s.mu.Lock()
	s.access = pair.AccessToken
	s.refresh = pair.RefreshToken
	s.mu.Unlock()

	return pair.AccessToken, nil
}

// expire clears the pair and fires the hook at most once per generation,
// unless an explicit auth flow is underway.
func (s *Session) expire() {
	s.mu.Lock()
	s.access = ""
	s.refresh = ""
	suppressed := s.authFlows > 0
	once := s.expiredOnce
	hook := s.OnExpired
	s.mu.Unlock()

	if suppressed || hook == nil {
		return
	}
	once.Do(hook)
}
