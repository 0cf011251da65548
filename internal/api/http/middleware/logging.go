package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharelist/sharelist-sync/internal/logger"
)

// Logging logs each HTTP request with its method, path, status and
// duration.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// Handle is the gin middleware function.
func (l *Logging) Handle(c *gin.Context) {
	start := time.Now()

	c.Next()

	duration := time.Since(start)
	status := c.Writer.Status()

	l.logger.Info("http request completed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", status,
		"duration_ms", duration.Milliseconds())

	if len(c.Errors) > 0 {
		l.logger.Error("http request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"error", c.Errors.String())
	}
}
