package client

import "errors"

var (
	// ErrSessionExpired is the one user-visible authentication failure: the
	// server authoritatively rejected the session's refresh token and the
	// only way forward is a full re-login.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotAuthenticated means the call needs a session and none is set.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCredentials is returned by Login on a wrong email/password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned by Register when the email is in use.
	ErrEmailTaken = errors.New("email already taken")

	// ErrNotFound maps 404 responses that are not treated as satisfied.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response that maps to no sentinel. Transport
// failures are returned as-is, never as an APIError, so callers can tell
// "the server said no" from "the server was never reached".
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
