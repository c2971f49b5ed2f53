package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sandrender/internal/infrastructure/tracing"
)

// corsMaxAge is how long browsers may cache a preflight answer.
const corsMaxAge = 12 * time.Hour

// CORS allows cross-origin calls to the render API from origins, or from
// any origin when none are given. Trace headers and Location are exposed
// so browser clients can follow redirects and report trace IDs.
func CORS(origins ...string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowMethods("DELETE")
	cfg.AddAllowHeaders("Accept", "Accept-Encoding", "Cache-Control", tracing.HeaderTraceID, tracing.HeaderSpanID)
	cfg.AddExposeHeaders(tracing.HeaderTraceID, tracing.HeaderSpanID, "Location")
	cfg.MaxAge = corsMaxAge
	return cors.New(cfg)
}
