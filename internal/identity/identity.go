// Package identity resolves the calling user. The gateway in front of the
// service authenticates requests and forwards the user id in X-User-ID.
package identity

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/taxmate/internal/observability/context"
)

const (
	HeaderUserID = "X-User-ID"
	contextKey   = "user_id"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Required rejects requests without a positive user id and makes the id
// available to handlers and request-scoped loggers.
func Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := parseUserID(c.GetHeader(HeaderUserID))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(contextKey, userID)
		c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// UserID returns the id stored by Required.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func parseUserID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrUnauthenticated
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrUnauthenticated
	}
	return id, nil
}
