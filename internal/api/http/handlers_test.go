package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sandrender/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sandrender/internal/render"
)

func setupRouter(t *testing.T) (*gin.Engine, *render.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := render.NewStore(nil)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	engine := render.NewEngine(render.DefaultConfig(), nil,
		render.WithLoader(store),
		render.WithObserver(metrics),
	)

	router := gin.New()
	NewHandlers(Deps{
		Engine:       engine,
		Store:        store,
		Metrics:      metrics,
		StaticPrefix: "/static",
		Theme:        "dark",
	}).Register(router)
	return router, store
}

func do(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func renderBody(t *testing.T, template string, data map[string]interface{}) string {
	t.Helper()
	b, err := json.Marshal(RenderRequest{Template: template, Data: data, Filename: "inline"})
	require.NoError(t, err)
	return string(b)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestTemplateLifecycle(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPut, "/templates/header", "<h1><%= title %></h1>")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/templates", "")
	assert.JSONEq(t, `{"templates":["header"]}`, w.Body.String())

	w = do(router, http.MethodGet, "/templates/header", "")
	assert.Equal(t, "<h1><%= title %></h1>", w.Body.String())

	w = do(router, http.MethodDelete, "/templates/header", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, http.MethodDelete, "/templates/header", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/templates/header", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutTemplateRejectsSyntaxErrors(t *testing.T) {
	router, store := setupRouter(t)

	w := do(router, http.MethodPut, "/templates/broken", "ok\n<% if (x) {")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "syntax", resp.Kind)
	assert.Equal(t, "broken", resp.Path)
	assert.Equal(t, 2, resp.LineNumber)
	assert.Empty(t, store.Names())
}

func TestRenderInline(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPost, "/render", renderBody(t, "Hi <%= name %>", map[string]interface{}{"name": "<Ann>"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Hi &lt;Ann&gt;", w.Body.String())
}

func TestRenderWritesEachCookie(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPost, "/render", renderBody(t, "<% setCookie('a', '1'); setCookie('b', '2') %>ok", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a=1"}, w.Header()["set-cookie"])
	assert.Equal(t, []string{"b=2"}, w.Header()["set-cookiE"])
}

func TestRenderRedirect(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPost, "/render", renderBody(t, "<% redirect('https://example.com/x') %>", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/x", w.Header().Get("Location"))
}

func TestRenderRuntimeFailure(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPost, "/render", renderBody(t, "one\ntwo\n<%= missing.x %>", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "runtime", resp.Kind)
	assert.Equal(t, "inline", resp.Path)
	assert.Equal(t, 3, resp.LineNumber)
	assert.Contains(t, resp.Description, " >> 3| <%= missing.x %>")
	assert.Contains(t, resp.Error, "missing")
}

func TestRenderInlineBadJSON(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPost, "/render", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderNamed(t *testing.T) {
	router, store := setupRouter(t)
	store.Put("layout", "<%- include('header') %><p><%= query.id %></p><link href=\"<%= staticThemePath('site.css') %>\">")
	store.Put("header", "<h1><%= query.title %></h1>")

	w := do(router, http.MethodGet, "/render/layout?id=7&title=Home", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<h1>Home</h1><p>7</p><link href="/static/themes/dark/site.css">`, w.Body.String())

	w = do(router, http.MethodGet, "/render/absent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndStats(t *testing.T) {
	router, store := setupRouter(t)
	store.Put("a", "a")

	w := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","templates":1,"breakers":{}}`, w.Body.String())

	do(router, http.MethodGet, "/render/a", "")

	w = do(router, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap monitoring.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Renders)
}

func TestStatsWithoutMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandlers(Deps{
		Engine: render.NewEngine(render.DefaultConfig(), nil),
		Store:  render.NewStore(nil),
	}).Register(router)

	w := do(router, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
