// Package client is the outbound HTTP transport used by template request
// capabilities.
//
// Built on go-resty/resty with:
//   - a pooled transport from hashicorp/go-retryablehttp
//   - optional retries with backoff (resty)
//   - a token-bucket rate limit shared by every render (x/time/rate)
//   - one circuit breaker per upstream host (internal/infrastructure/resilience)
//   - per-call timeouts through the call context
//
// Example Usage:
//
//	c := client.New(client.DefaultConfig())
//	resp, err := c.Send(ctx, &client.Call{
//		Method:   "POST",
//		URI:      "https://api.example.com/items",
//		Encoding: client.EncodingForm,
//		Form:     url.Values{"name": {"widget"}},
//	})
package client
