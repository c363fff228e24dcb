// Package requestid stamps each request with an opaque correlation id. The id
// carries no caller identity, so it is safe to log alongside grievance flows
// that must stay anonymous.
package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	headerName = "X-Request-ID"
	contextKey = "request_id"
)

// Middleware reuses a caller-provided X-Request-ID when present and mints a
// fresh one otherwise. The id is stored on the context for the access log and
// echoed back in the response header.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerName)
		if id == "" {
			id = newID()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(headerName, id)

		c.Next()
	}
}

// Value returns the correlation id for the current request, or "" when the
// middleware has not run.
func Value(c *gin.Context) string {
	v, ok := c.Get(contextKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}

func newID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
