package frontend

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionHeader lets API clients name their session explicitly
	SessionHeader = "X-Session-ID"
	// SessionCookie carries the browser session between form submissions
	SessionCookie = "plausibility_session"

	sessionMaxAge   = 24 * 60 * 60
	maxSessionIDLen = 64
)

// SessionID returns the caller's session key from the header or cookie.
// An empty string means the caller has none.
func SessionID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" && len(id) <= maxSessionIDLen {
		return id
	}
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" && len(id) <= maxSessionIDLen {
		return id
	}
	return ""
}

// EnsureSession returns the caller's session, issuing a new cookie when
// there is none.
func EnsureSession(c *gin.Context) string {
	if id := SessionID(c); id != "" {
		return id
	}

	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", c.Request.TLS != nil, true)
	return id
}
