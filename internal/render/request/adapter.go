package request

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/sandrender/internal/providers/http/client"
)

// ErrInvalidDescriptor is returned for descriptors that cannot be sent.
var ErrInvalidDescriptor = errors.New("invalid request descriptor")

const (
	mediaForm = "application/x-www-form-urlencoded"
	mediaJSON = "application/json"
)

// Transport sends a fully encoded call.
type Transport interface {
	Send(ctx context.Context, call *client.Call) (*client.Response, error)
}

// Observer is notified after every call.
type Observer interface {
	ObserveRequest(method string, status int, duration time.Duration, err error)
}

// Descriptor is one request as described by template code.
type Descriptor struct {
	Method  string
	URI     string
	Headers map[string]interface{}
	Query   map[string]interface{}
	Body    interface{}
	Timeout time.Duration
}

// Result is a normalized response.
type Result struct {
	Status  int                    `json:"status"`
	Headers map[string]interface{} `json:"headers"`
	Body    interface{}            `json:"body"`
}

// Adapter issues descriptors through a Transport.
type Adapter struct {
	transport Transport
	observer  Observer
	logger    *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithObserver reports every call to o.
func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

// WithLogger sets the adapter logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New creates an adapter over t.
func New(t Transport, opts ...Option) *Adapter {
	a := &Adapter{transport: t, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Do sends d and returns the normalized response.
func (a *Adapter) Do(ctx context.Context, d Descriptor) (*Result, error) {
	call, err := encode(d)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.transport.Send(ctx, call)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.Status
	}
	if a.observer != nil {
		a.observer.ObserveRequest(call.Method, status, duration, err)
	}
	if err != nil {
		a.logger.Debug("request failed",
			zap.String("method", call.Method),
			zap.String("uri", call.URI),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}
	a.logger.Debug("request completed",
		zap.String("method", call.Method),
		zap.String("uri", call.URI),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	)

	return &Result{
		Status:  resp.Status,
		Headers: flattenHeaders(resp.Header),
		Body:    Normalize(resp.Header.Get("Content-Type"), resp.Body),
	}, nil
}

// DoAll sends every descriptor concurrently. Results keep the input order.
// The first failure to occur is returned; the other calls still complete.
func (a *Adapter) DoAll(ctx context.Context, ds []Descriptor) ([]*Result, error) {
	results := make([]*Result, len(ds))

	var g errgroup.Group
	for i := range ds {
		g.Go(func() error {
			res, err := a.Do(ctx, ds[i])
			if err != nil {
				return fmt.Errorf("requests[%d]: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func encode(d Descriptor) (*client.Call, error) {
	if strings.TrimSpace(d.Method) == "" {
		return nil, fmt.Errorf("%w: method is required", ErrInvalidDescriptor)
	}
	if d.URI == "" {
		return nil, fmt.Errorf("%w: uri is required", ErrInvalidDescriptor)
	}

	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		headers[strings.ToLower(k)] = fmt.Sprint(v)
	}

	call := &client.Call{
		Method:  strings.ToUpper(d.Method),
		URI:     d.URI,
		Headers: headers,
		Query:   toValues(d.Query),
		Timeout: d.Timeout,
	}

	media := ""
	if ct := headers["content-type"]; ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			media = parsed
		}
	}
	fields, isMap := d.Body.(map[string]interface{})

	switch {
	case d.Body == nil:
		call.Encoding = client.EncodingRaw
	case isJSON(media):
		body, err := sonic.Marshal(d.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode json body: %v", ErrInvalidDescriptor, err)
		}
		call.Encoding, call.Body = client.EncodingJSON, body
	case isMap && (media == mediaForm || media == ""):
		call.Encoding, call.Form = client.EncodingForm, toValues(fields)
	default:
		call.Encoding, call.Body = client.EncodingRaw, rawBytes(d.Body)
	}
	return call, nil
}

func isJSON(media string) bool {
	return media == mediaJSON || strings.HasSuffix(media, "+json")
}

func rawBytes(v interface{}) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return []byte(fmt.Sprint(b))
	}
}

func toValues(m map[string]interface{}) url.Values {
	if len(m) == 0 {
		return nil
	}
	values := make(url.Values, len(m))
	for k, v := range m {
		switch list := v.(type) {
		case []interface{}:
			for _, item := range list {
				values.Add(k, fmt.Sprint(item))
			}
		case []string:
			values[k] = append(values[k], list...)
		case nil:
			values.Set(k, "")
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}
	return values
}
