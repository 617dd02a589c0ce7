package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/linkora/core/internal/modules/session"
	"github.com/linkora/core/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeySID    = "session_id"
)

// Auth returns a middleware enforcing the full token check: signature
// verification AND store-backed session validation (which refreshes
// activity as a side effect). An unreachable store is 503, not 401: the
// identity could not be confirmed, not disproven.
func Auth(sessions *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := sessions.ValidateToken(c.Request.Context(), extractToken(c))
		if err != nil {
			if errors.Is(err, session.ErrStoreUnavailable) {
				response.ServiceUnavailable(c, "session store unavailable")
				return
			}
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, id.UserID)
		c.Set(ContextKeySID, id.SessionID)
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// CurrentSessionID extracts the authenticated session ID from context.
func CurrentSessionID(c *gin.Context) string {
	v, _ := c.Get(ContextKeySID)
	id, _ := v.(string)
	return id
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
