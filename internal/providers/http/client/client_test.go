package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sandrender/internal/infrastructure/resilience"
)

type captured struct {
	method      string
	path        string
	query       url.Values
	contentType string
	userAgent   string
	body        string
}

func echoServer(t *testing.T, status int, seen *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*seen = captured{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.Query(),
			contentType: r.Header.Get("Content-Type"),
			userAgent:   r.Header.Get("User-Agent"),
			body:        string(body),
		}
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendEncodings(t *testing.T) {
	tests := []struct {
		name        string
		call        Call
		wantType    string
		wantBody    string
		wantQueryID string
	}{
		{
			name:     "form",
			call:     Call{Method: "POST", Encoding: EncodingForm, Form: url.Values{"a": {"1"}}},
			wantType: "application/x-www-form-urlencoded",
			wantBody: "a=1",
		},
		{
			name:     "json",
			call:     Call{Method: "PUT", Encoding: EncodingJSON, Body: []byte(`{"a":1}`)},
			wantType: "application/json",
			wantBody: `{"a":1}`,
		},
		{
			name:     "raw",
			call:     Call{Method: "POST", Headers: map[string]string{"content-type": "text/plain"}, Body: []byte("hello")},
			wantType: "text/plain",
			wantBody: "hello",
		},
		{
			name:        "query",
			call:        Call{Method: "GET", Query: url.Values{"id": {"7"}}},
			wantQueryID: "7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen captured
			srv := echoServer(t, http.StatusOK, &seen)

			c := New(DefaultConfig())
			call := tt.call
			call.URI = srv.URL + "/items"

			resp, err := c.Send(context.Background(), &call)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.Status)
			assert.Equal(t, "ok", string(resp.Body))
			assert.Equal(t, "yes", resp.Header.Get("X-Upstream"))
			assert.Equal(t, call.Method, seen.method)
			assert.Equal(t, "/items", seen.path)
			assert.Equal(t, "sandrender/1.0", seen.userAgent)
			if tt.wantType != "" {
				assert.True(t, strings.HasPrefix(seen.contentType, tt.wantType), seen.contentType)
			}
			assert.Equal(t, tt.wantBody, seen.body)
			assert.Equal(t, tt.wantQueryID, seen.query.Get("id"))
		})
	}
}

func TestSendBaseURL(t *testing.T) {
	var seen captured
	srv := echoServer(t, http.StatusOK, &seen)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	c := New(cfg)

	_, err := c.Send(context.Background(), &Call{Method: "GET", URI: "/relative"})
	require.NoError(t, err)
	assert.Equal(t, "/relative", seen.path)
}

func TestSendNon2xxIsNotAnError(t *testing.T) {
	var seen captured
	srv := echoServer(t, http.StatusNotFound, &seen)

	resp, err := New(DefaultConfig()).Send(context.Background(), &Call{Method: "GET", URI: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	start := time.Now()
	_, err := New(DefaultConfig()).Send(context.Background(), &Call{
		Method:  "GET",
		URI:     srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSendBreakerPerHost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Breaker = resilience.Settings{FailureThreshold: 2, OpenTimeout: time.Minute}
	c := New(cfg)

	for i := 0; i < 2; i++ {
		resp, err := c.Send(context.Background(), &Call{Method: "GET", URI: srv.URL})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.Status)
	}

	_, err := c.Send(context.Background(), &Call{Method: "GET", URI: srv.URL})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())

	host := strings.TrimPrefix(srv.URL, "http://")
	assert.Equal(t, resilience.StateOpen, c.BreakerStates()[host])
}

func TestSendBreakerDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerEnabled = false
	c := New(cfg)
	assert.Empty(t, c.BreakerStates())
}
