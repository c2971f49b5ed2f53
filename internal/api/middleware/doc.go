// Package middleware holds the Gin middleware of the HTTP surface: CORS and
// inbound rate limiting.
package middleware
