// Package main is the entry point for the sandrender template server.
//
// The server renders EJS-style templates inside a per-request JavaScript
// sandbox and exposes them over HTTP:
//
//	PUT  /templates/:name   register a template
//	POST /render            render inline template text
//	GET  /render/:name      render a registered template
//	GET  /metrics           prometheus metrics
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server --port 8000
//
//	# Development mode (colored logs, debug level)
//	./server --dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
