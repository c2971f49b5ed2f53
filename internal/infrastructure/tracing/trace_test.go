package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartSpanNesting(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "render")
	child, childCtx := tracer.StartSpan(ctx, "include")

	assert.True(t, strings.HasPrefix(string(parent.TraceID), "trace_"))
	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.Empty(t, parent.ParentID)
	assert.Equal(t, child.SpanID, GetSpanID(childCtx))
	assert.Equal(t, parent.TraceID, GetTraceID(childCtx))
}

func TestEndWritesLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))
	defer tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "render")
	span.SetTag("template", "page")
	tracer.End(span)

	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	entry := logs.All()[0]
	assert.Equal(t, "span completed", entry.Message)
	assert.Equal(t, "page", entry.ContextMap()["template"])
}

func TestEndAfterClose(t *testing.T) {
	tracer := New("test", zap.NewNop())
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	assert.NotPanics(t, func() { tracer.End(span) })
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	var seen string
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/x", func(c *gin.Context) {
		seen = string(GetTraceID(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	t.Run("mints trace id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
		assert.Equal(t, w.Header().Get(HeaderTraceID), seen)
	})

	t.Run("keeps incoming trace id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderTraceID, "trace_upstream")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "trace_upstream", w.Header().Get(HeaderTraceID))
		assert.Equal(t, "trace_upstream", seen)
	})
}
