package http

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sandrender/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sandrender/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sandrender/internal/render"
	"github.com/GriffinCanCode/sandrender/internal/render/diagnostics"
)

// MaxTemplateSize bounds uploaded template text.
const MaxTemplateSize = 1 << 20

// BreakerSource reports circuit breaker states per upstream host.
type BreakerSource interface {
	BreakerStates() map[string]resilience.State
}

// Deps are the collaborators of the handlers. Metrics and Breakers may be nil.
type Deps struct {
	Engine       *render.Engine
	Store        *render.Store
	Metrics      *monitoring.Metrics
	Breakers     BreakerSource
	StaticPrefix string
	Theme        string
	Logger       *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handlers{deps: deps}
}

// Register mounts all routes on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)

	r.GET("/templates", h.ListTemplates)
	r.GET("/templates/:name", h.GetTemplate)
	r.PUT("/templates/:name", h.PutTemplate)
	r.DELETE("/templates/:name", h.DeleteTemplate)

	r.POST("/render", h.RenderInline)
	r.GET("/render/:name", h.RenderNamed)
}

// Health handles the liveness check
func (h *Handlers) Health(c *gin.Context) {
	breakers := gin.H{}
	if h.deps.Breakers != nil {
		for host, state := range h.deps.Breakers.BreakerStates() {
			breakers[host] = state.String()
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"templates": len(h.deps.Store.Names()),
		"breakers":  breakers,
	})
}

// Stats returns the metrics snapshot
func (h *Handlers) Stats(c *gin.Context) {
	if h.deps.Metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Metrics.Snapshot())
}

// ListTemplates lists registered template names
func (h *Handlers) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": h.deps.Store.Names()})
}

// GetTemplate returns the source of one template
func (h *Handlers) GetTemplate(c *gin.Context) {
	text, err := h.deps.Store.Load(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// PutTemplate registers a template after checking that it compiles
func (h *Handlers) PutTemplate(c *gin.Context) {
	name := c.Param("name")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxTemplateSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) > MaxTemplateSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "template too large"})
		return
	}

	if err := h.deps.Engine.Check(string(body), name); err != nil {
		h.writeError(c, err)
		return
	}

	h.deps.Store.Put(name, string(body))
	h.deps.Logger.Info("template registered", zap.String("name", name), zap.Int("bytes", len(body)))
	c.JSON(http.StatusOK, gin.H{"name": name, "bytes": len(body)})
}

// DeleteTemplate removes a template
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	if !h.deps.Store.Delete(c.Param("name")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RenderRequest is the body of POST /render.
type RenderRequest struct {
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
	Filename string                 `json:"filename"`
}

// RenderInline renders template text sent in the request body
func (h *Handlers) RenderInline(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.render(c, req.Template, req.Data, req.Filename)
}

// RenderNamed renders a registered template with the query string as
// bindings under `query`
func (h *Handlers) RenderNamed(c *gin.Context) {
	name := c.Param("name")
	text, err := h.deps.Store.Load(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	query := make(map[string]interface{})
	for key, values := range c.Request.URL.Query() {
		if len(values) == 1 {
			query[key] = values[0]
			continue
		}
		list := make([]interface{}, len(values))
		for i, v := range values {
			list[i] = v
		}
		query[key] = list
	}
	h.render(c, text, map[string]interface{}{"query": query}, name)
}

func (h *Handlers) render(c *gin.Context, text string, bindings map[string]interface{}, filename string) {
	res, err := h.deps.Engine.Execute(c.Request.Context(), text, bindings, h.options(filename))
	if err != nil {
		h.writeError(c, err)
		return
	}

	// Cookie variants are written as-is; canonicalizing would merge them.
	header := c.Writer.Header()
	for name, value := range res.Headers {
		header[name] = []string{value}
	}

	if res.Location != "" {
		c.Redirect(http.StatusFound, res.Location)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(res.Output))
}

func (h *Handlers) options(filename string) render.Options {
	prefix := h.deps.StaticPrefix
	theme := h.deps.Theme
	return render.Options{
		Filename: filename,
		StaticPath: func(p string) string {
			return path.Join(prefix, p)
		},
		StaticThemePath: func(p string) string {
			return path.Join(prefix, "themes", theme, p)
		},
	}
}

// ErrorResponse is the JSON body of a failed render.
type ErrorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind"`
	Path        string `json:"path,omitempty"`
	LineNumber  int    `json:"lineNumber,omitempty"`
	Description string `json:"description,omitempty"`
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	kind := render.Classify(err)
	resp := ErrorResponse{Error: err.Error(), Kind: string(kind)}

	var diag *diagnostics.Error
	if errors.As(err, &diag) {
		resp.Error = diag.Err.Error()
		resp.Path = diag.Path
		resp.LineNumber = diag.LineNumber
		resp.Description = diag.Description
	}
	var syntaxErr *render.SyntaxError
	if kind == render.KindSyntax && errors.As(err, &syntaxErr) {
		resp.Path = syntaxErr.Filename
		resp.LineNumber = syntaxErr.Line
	}

	status := http.StatusInternalServerError
	if kind == render.KindSyntax {
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.JSON(status, resp)
}
