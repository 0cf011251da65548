package model

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTokenExpired marks an access token that failed only because its
	// validity window passed. Callers may refresh and retry.
	ErrTokenExpired = errors.New("access token expired")

	// ErrTokenInvalid marks a credential that can never become valid again:
	// a malformed or tampered access token, or a refresh token that is
	// unknown, revoked, or already superseded by a prior rotation.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrDeliveryGone marks a push endpoint that no longer exists. The
	// owning subscription must be pruned.
	ErrDeliveryGone = errors.New("push endpoint gone")

	// ErrPermissionDenied is returned when the authenticated user does not
	// own the addressed resource.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrEmailTaken is returned on registration with an already-used email.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidCredentials is returned on login with a wrong email/password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
