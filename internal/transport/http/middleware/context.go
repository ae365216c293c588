package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader = "X-Trace-ID"
	TraceIDKey    = "trace_id"
	// SubjectKey holds the bridge or operator named by the bearer token.
	SubjectKey = "subject"

	requestContextKey = "request_context"
	principalParam    = "principal_id"
)

// RequestContext is what the access log and error bodies know about a call. PrincipalID is the
// player the call acts on, empty for routes without one.
type RequestContext struct {
	TraceID     string
	Subject     string
	PrincipalID string
	IP          string
	UserAgent   string
}

// EnrichContext assigns a trace ID (reusing X-Trace-ID when the caller sent one) and records the
// principal named in the route.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:     traceID,
			PrincipalID: c.Param(principalParam),
			IP:          c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
		})

		c.Next()
	}
}

func GetTraceID(c *gin.Context) string {
	if traceID, ok := c.Get(TraceIDKey); ok {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext never returns nil; outside EnrichContext it returns an empty value.
func GetRequestContext(c *gin.Context) *RequestContext {
	if v, ok := c.Get(requestContextKey); ok {
		if reqCtx, ok := v.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}
