package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/model"
)

// Claims represents access-token JWT claims: the registered set plus the
// identity surfaced to handlers.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// JWT implements model.TokenManager backed by symmetric HMAC. Access
// tokens are never persisted; verification is by signature alone.
type JWT struct {
	secretKey string
	accessTTL time.Duration
}

// NewJWT creates a new JWT token manager with the provided secret key and
// access-token lifetime.
func NewJWT(secretKey string, accessTTL time.Duration) *JWT {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &JWT{secretKey: secretKey, accessTTL: accessTTL}
}

var _ model.TokenManager = (*JWT)(nil)

// GenerateAccessToken creates a short-lived signed token carrying the identity.
func (j *JWT) GenerateAccessToken(identity model.Identity) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
		},
		UserID: identity.UserID.String(),
		Email:  identity.Email,
		Name:   identity.Name,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ParseAccessToken verifies the signature and extracts the identity.
// Expiry is the one retriable failure and maps to model.ErrTokenExpired;
// every other failure maps to model.ErrTokenInvalid.
func (j *JWT) ParseAccessToken(tokenString string) (model.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, model.ErrTokenExpired
		}
		return model.Identity{}, fmt.Errorf("%w: %w", model.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return model.Identity{}, model.ErrTokenInvalid
	}

	identity, err := claims.Identity()
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", model.ErrTokenInvalid, err)
	}
	return identity, nil
}

// Identity converts claims into the model identity.
func (c *Claims) Identity() (model.Identity, error) {
	raw := c.UserID
	if raw == "" {
		raw = c.Subject
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return model.Identity{}, fmt.Errorf("parse user id: %w", err)
	}
	return model.Identity{UserID: userID, Email: c.Email, Name: c.Name}, nil
}
