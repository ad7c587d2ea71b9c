package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Every response carries an X-Request-ID header; the same value is stamped
// on the request log line and the JSON error body so a reported checkout
// failure can be matched to its payment trace.
const (
	HeaderRequestID = "X-Request-ID"
	CtxKeyRequestID = "request_id"
)

// RequestID keeps an inbound X-Request-ID when the storefront proxy set
// one and mints a fresh ID otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}

		c.Set(CtxKeyRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)

		c.Next()
	}
}

// GetRequestID returns the ID bound by RequestID, empty outside the chain.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
