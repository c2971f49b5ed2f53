// Package server assembles the render service: configuration, logging,
// metrics, tracing, the outbound HTTP client, the template engine and the
// gin router, served behind gzip compression.
package server
