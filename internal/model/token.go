package model

// TokenManager generates and validates signed access tokens.
type TokenManager interface {
	// GenerateAccessToken mints a short-lived signed token carrying the
	// identity.
	GenerateAccessToken(identity Identity) (string, error)

	// ParseAccessToken verifies the signature and returns the embedded
	// identity. A token that fails only on expiry returns ErrTokenExpired;
	// anything else returns ErrTokenInvalid.
	ParseAccessToken(token string) (Identity, error)
}
