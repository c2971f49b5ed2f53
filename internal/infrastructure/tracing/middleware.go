package tracing

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sandrender/internal/shared/id"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing. An incoming
// X-Trace-ID is kept; otherwise a new one is minted. Both IDs are echoed
// in the response headers.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader(HeaderTraceID); traceID != "" {
			ctx = WithTraceID(ctx, id.TraceID(traceID))
		}
		if parentID := c.GetHeader(HeaderSpanID); parentID != "" {
			ctx = context.WithValue(ctx, spanIDKey, SpanID(parentID))
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.url", c.Request.URL.String())

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		tracer.End(span)
	}
}
