package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
)

// identityKey is the gin context key the authenticated identity is stored
// under.
const identityKey = "auth_identity"

// TokenService resolves identities from bearer access tokens.
type TokenService interface {
	Authenticate(ctx context.Context, access string) (model.Identity, error)
}

// Authenticate validates bearer tokens and injects the identity into the
// request context. Expired tokens answer with a distinct code so clients
// know the failure is retriable through a refresh.
type Authenticate struct {
	tokenService TokenService
	logger       *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokenService TokenService, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenService: tokenService, logger: logger}
}

// Handle is the gin middleware function.
func (m *Authenticate) Handle(c *gin.Context) {
	tokenString := BearerToken(c.Request)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": CodeTokenInvalid, "error": "missing authorization token"})
		return
	}

	identity, err := m.tokenService.Authenticate(c.Request.Context(), tokenString)
	if err != nil {
		if errors.Is(err, model.ErrTokenExpired) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": CodeTokenExpired, "error": "access token expired"})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": CodeTokenInvalid, "error": "invalid authorization token"})
		return
	}

	c.Set(identityKey, identity)
	c.Next()
}

// Error codes carried in 401 bodies. Clients branch on these: an expired
// code is retriable via refresh, an invalid one is fatal.
const (
	CodeTokenExpired = "token_expired"
	CodeTokenInvalid = "token_invalid"
)

// BearerToken extracts the bearer credential from a request, falling back
// to the access_token query parameter for websocket handshakes, where
// browsers cannot set headers.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

// Identity returns the authenticated identity stored by Handle.
func Identity(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}
