package traceid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	HeaderKey        = "X-Trace-ID"
	traceparentKey   = "Traceparent"
	contextKey       = "trace_id"
	traceIDHexLength = 32
)

// Middleware assigns a trace ID to each request. A valid incoming X-Trace-ID wins, then the trace
// ID of a W3C traceparent header, otherwise a new one is generated. The ID is echoed in X-Trace-ID.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Parse(c.GetHeader(HeaderKey))
		if !ok {
			id, ok = fromTraceparent(c.GetHeader(traceparentKey))
		}
		if !ok {
			id = generateID()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(HeaderKey, id)

		c.Next()
	}
}

// Value returns the trace ID stored in the Gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// Parse validates a 32 character hex trace ID and returns it lower-cased.
func Parse(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != traceIDHexLength {
		return "", false
	}
	raw = strings.ToLower(raw)
	if _, err := hex.DecodeString(raw); err != nil {
		return "", false
	}
	if strings.Trim(raw, "0") == "" {
		return "", false
	}
	return raw, true
}

// fromTraceparent extracts the trace ID from "version-traceid-parentid-flags".
func fromTraceparent(raw string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 4 {
		return "", false
	}
	return Parse(parts[1])
}

func generateID() string {
	buf := make([]byte, traceIDHexLength/2)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	return fmt.Sprintf("%032x", time.Now().UnixNano())
}
