package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sandrender"

var durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Render metrics
	RendersTotal   *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	IncludesTotal  prometheus.Counter
	CookiesTotal   prometheus.Counter

	// Outbound request metrics
	OutboundTotal    *prometheus.CounterVec
	OutboundDuration prometheus.Histogram

	startTime time.Time

	// Snapshot for the JSON stats endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON stats endpoint
type Snapshot struct {
	Renders        int64   `json:"renders"`
	RenderFailures int64   `json:"renderFailures"`
	Redirects      int64   `json:"redirects"`
	Includes       int64   `json:"includes"`
	Outbound       int64   `json:"outbound"`
	OutboundErrors int64   `json:"outboundErrors"`
	AvgRenderMs    float64 `json:"avgRenderMs"`
	UptimeSeconds  float64 `json:"uptimeSeconds"`

	renderSeconds float64
}

// NewMetrics registers all series on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"method", "path"},
		),

		RendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Top-level renders by outcome",
			},
			[]string{"outcome"},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Top-level render duration in seconds, includes and requests included",
				Buckets:   durationBuckets,
			},
		),
		IncludesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "includes_total",
				Help:      "Templates rendered through includeTemplate",
			},
		),
		CookiesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cookies_emitted_total",
				Help:      "Set-Cookie headers produced by renders",
			},
		),

		OutboundTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbound_requests_total",
				Help:      "HTTP calls made by templates, status 0 for transport errors",
			},
			[]string{"method", "status"},
		),
		OutboundDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "outbound_request_duration_seconds",
				Help:      "Duration of HTTP calls made by templates",
				Buckets:   durationBuckets,
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an inbound HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveRender records a finished top-level render.
func (m *Metrics) ObserveRender(outcome string, duration time.Duration) {
	m.RendersTotal.WithLabelValues(outcome).Inc()
	m.RenderDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Renders++
	m.snapshot.renderSeconds += duration.Seconds()
	switch outcome {
	case "success":
	case "redirect":
		m.snapshot.Redirects++
	default:
		m.snapshot.RenderFailures++
	}
}

// ObserveInclude records one included template.
func (m *Metrics) ObserveInclude() {
	m.IncludesTotal.Inc()

	m.mu.Lock()
	m.snapshot.Includes++
	m.mu.Unlock()
}

// ObserveCookies records the cookies emitted by one render.
func (m *Metrics) ObserveCookies(n int) {
	if n > 0 {
		m.CookiesTotal.Add(float64(n))
	}
}

// ObserveRequest records one outbound call.
func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration, err error) {
	m.OutboundTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.OutboundDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Outbound++
	if err != nil {
		m.snapshot.OutboundErrors++
	}
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.Renders > 0 {
		s.AvgRenderMs = s.renderSeconds / float64(s.Renders) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
