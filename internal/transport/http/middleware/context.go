package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader carries the correlation id across service boundaries.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin context key holding the trace id.
	TraceIDKey = "trace_id"
	// AccountIDKey is the gin context key holding the authenticated account id.
	AccountIDKey = "account_id"

	requestContextKey = "request_context"
)

// RequestContext holds per-request metadata consumed by handlers when they
// record audit events.
type RequestContext struct {
	TraceID   string
	AccountID string
	IP        string
	UserAgent string
}

// EnrichContext assigns a trace id and captures client metadata before any
// handler runs.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace id assigned by EnrichContext.
func GetTraceID(c *gin.Context) string {
	value, exists := c.Get(TraceIDKey)
	if !exists {
		return ""
	}
	id, _ := value.(string)
	return id
}

// GetRequestContext returns the metadata captured for the current request.
// Never returns nil.
func GetRequestContext(c *gin.Context) *RequestContext {
	value, exists := c.Get(requestContextKey)
	if exists {
		if reqCtx, ok := value.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}
