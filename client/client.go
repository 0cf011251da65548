package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Client makes authenticated calls against the sync server. Every request
// carries the session's current access token; on a first-time expiry
// rejection the call waits on the shared refresh and replays itself
// exactly once with the new token.
type Client struct {
	baseURL string
	httpc   *http.Client
	session *Session
}

// New creates a Client and its Session.
func New(baseURL string) *Client {
	httpc := &http.Client{Timeout: 30 * time.Second}
	return &Client{
		baseURL: baseURL,
		httpc:   httpc,
		session: NewSession(baseURL, httpc),
	}
}

// Session returns the session shared by this client and any channels
// created from it.
func (c *Client) Session() *Session {
	return c.session
}

type authPayload struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates an account and installs the returned token pair.
func (c *Client) Register(ctx context.Context, email, name, password string) (User, error) {
	c.session.beginAuthFlow()
	defer c.session.endAuthFlow()

	var out authPayload
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"email": email, "name": name, "password": password}, &out, false)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}

	c.session.SetTokens(out.AccessToken, out.RefreshToken)
	return out.User, nil
}

// Login authenticates and installs the returned token pair.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	c.session.beginAuthFlow()
	defer c.session.endAuthFlow()

	var out authPayload
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": email, "password": password}, &out, false)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	c.session.SetTokens(out.AccessToken, out.RefreshToken)
	return out.User, nil
}

// Logout revokes the refresh token server-side and clears the session.
// The local session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	refresh := c.session.RefreshToken()
	c.session.Clear()
	if refresh == "" {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout",
		map[string]string{"refreshToken": refresh}, nil, true)
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		return err
	}
	return nil
}

// Notifications fetches a page of the durable history, newest first.
func (c *Client) Notifications(ctx context.Context, limit, offset int) ([]Notification, error) {
	path := "/api/v1/notifications?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications/unread-count", nil, &out, false); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MarkRead flips one notification to read. A 404 means the record is
// already gone, which is treated as satisfied, not an error.
func (c *Client) MarkRead(ctx context.Context, id uuid.UUID) error {
	err := c.do(ctx, http.MethodPut, "/api/v1/notifications/"+id.String()+"/read", nil, nil, false)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// MarkAllRead flips every unread notification to read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/api/v1/notifications/read-all", nil, nil, false)
}

// SubscribePush registers a Web Push subscription for the current user.
func (c *Client) SubscribePush(ctx context.Context, sub PushSubscription) error {
	return c.do(ctx, http.MethodPost, "/api/v1/push/subscriptions", sub, nil, false)
}

// UnsubscribePush removes the subscription with the given endpoint.
func (c *Client) UnsubscribePush(ctx context.Context, endpoint string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/push/subscriptions",
		map[string]string{"endpoint": endpoint}, nil, false)
}

// EventInput describes a committed mutation to announce to a list's
// members.
type EventInput struct {
	Type          string     `json:"type"`
	ProductID     *uuid.UUID `json:"productId,omitempty"`
	ProductName   *string    `json:"productName,omitempty"`
	ExcludeUserID *uuid.UUID `json:"excludeUserId,omitempty"`
	TargetUserID  *uuid.UUID `json:"targetUserId,omitempty"`
}

// PublishEvent triggers fan-out for a committed mutation on a list.
func (c *Client) PublishEvent(ctx context.Context, listID uuid.UUID, in EventInput) error {
	return c.do(ctx, http.MethodPost, "/api/v1/lists/"+listID.String()+"/events", in, nil, false)
}

// do executes one JSON request. retried marks a replay after a refresh;
// it is also set on calls that must never trigger a refresh.
func (c *Client) do(ctx context.Context, method, path string, body, out any, retried bool) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if access := c.session.AccessToken(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request transport failure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && !retried && c.session.Authenticated() {
		io.Copy(io.Discard, resp.Body)
		if _, err := c.session.Refresh(ctx); err != nil {
			return err
		}
		return c.do(ctx, method, path, body, out, true)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
