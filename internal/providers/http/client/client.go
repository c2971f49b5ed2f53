package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/sandrender/internal/infrastructure/resilience"
)

// Encoding selects how a call body is put on the wire.
type Encoding int

const (
	EncodingRaw Encoding = iota
	EncodingForm
	EncodingJSON
)

func (e Encoding) String() string {
	switch e {
	case EncodingForm:
		return "form"
	case EncodingJSON:
		return "json"
	default:
		return "raw"
	}
}

// Call is one outbound request.
type Call struct {
	Method   string
	URI      string
	Headers  map[string]string
	Query    url.Values
	Encoding Encoding
	Form     url.Values // EncodingForm
	Body     []byte     // EncodingJSON and EncodingRaw
	Timeout  time.Duration
}

// Response is the full upstream response.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
}

// Config holds transport settings.
type Config struct {
	BaseURL        string // resolves relative call URIs
	Timeout        time.Duration
	RetryCount     int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
	RateLimit      float64 // requests per second, 0 = unlimited
	UserAgent      string
	BreakerEnabled bool
	Breaker        resilience.Settings
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		RetryWait:      time.Second,
		RetryMaxWait:   30 * time.Second,
		UserAgent:      "sandrender/1.0",
		BreakerEnabled: true,
		Breaker: resilience.Settings{
			FailureThreshold: 10,
			OpenTimeout:      30 * time.Second,
		},
	}
}

// errServerStatus marks 5xx responses as breaker failures without failing the call.
var errServerStatus = errors.New("upstream server error")

// Client sends calls through resty with rate limiting and per-host breakers.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	pooled := retryablehttp.NewClient()
	pooled.Logger = nil

	r := resty.New().
		SetTransport(pooled.HTTPClient.Transport).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait)
	if cfg.BaseURL != "" {
		r.SetBaseURL(cfg.BaseURL)
	}
	if cfg.UserAgent != "" {
		r.SetHeader("User-Agent", cfg.UserAgent)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(int(cfg.RateLimit), 1))
	}

	c := &Client{resty: r, limiter: limiter}
	if cfg.BreakerEnabled {
		c.breakers = resilience.NewGroup(cfg.Breaker)
	}
	return c
}

// Send performs call. Non-2xx statuses are returned as responses, not errors.
func (c *Client) Send(ctx context.Context, call *Call) (*Response, error) {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req := c.resty.R().SetContext(ctx).SetHeaders(call.Headers)
	if len(call.Query) > 0 {
		req.SetQueryParamsFromValues(call.Query)
	}
	switch call.Encoding {
	case EncodingForm:
		req.SetFormDataFromValues(call.Form)
	case EncodingJSON:
		req.SetHeader("Content-Type", "application/json").SetBody(call.Body)
	default:
		if call.Body != nil {
			req.SetBody(call.Body)
		}
	}

	var resp *resty.Response
	send := func() error {
		var err error
		resp, err = req.Execute(call.Method, call.URI)
		if err != nil {
			return err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	}

	var err error
	if c.breakers != nil {
		err = c.breakers.Get(hostOf(call.URI)).Do(send)
	} else {
		err = send()
	}
	if err != nil && !errors.Is(err, errServerStatus) {
		return nil, fmt.Errorf("%s %s: %w", call.Method, call.URI, err)
	}

	return &Response{
		Status:   resp.StatusCode(),
		Header:   resp.Header(),
		Body:     resp.Body(),
		Duration: resp.Time(),
	}, nil
}

// BreakerStates reports the breaker state per upstream host.
func (c *Client) BreakerStates() map[string]resilience.State {
	if c.breakers == nil {
		return map[string]resilience.State{}
	}
	return c.breakers.States()
}

func hostOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	return u.Host
}
