/*
Package monitoring provides Prometheus metrics for the render service.

# Overview

Metrics are registered on an injected prometheus.Registerer, so tests and
embedded uses can keep their own registry. *Metrics satisfies the observer
interfaces of the render engine and the request adapter.

# Series

  - sandrender_http_requests_total, sandrender_http_request_duration_seconds
  - sandrender_renders_total{outcome}, sandrender_render_duration_seconds
  - sandrender_includes_total
  - sandrender_outbound_requests_total{method,status}
  - sandrender_outbound_request_duration_seconds
  - sandrender_cookies_emitted_total
  - sandrender_uptime_seconds

# Usage

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	engine := render.NewEngine(cfg, request.New(transport, request.WithObserver(metrics)),
		render.WithObserver(metrics))
*/
package monitoring
