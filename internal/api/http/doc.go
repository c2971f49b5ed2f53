// Package http exposes the render engine over HTTP.
//
// Routes:
//
//	GET    /health             liveness and circuit breaker states
//	GET    /stats              render and outbound counters (JSON)
//	GET    /templates          registered template names
//	GET    /templates/:name    template source
//	PUT    /templates/:name    register a template (body is the text)
//	DELETE /templates/:name    remove a template
//	POST   /render             render inline text: {template, data, filename}
//	GET    /render/:name       render a registered template, query in `query`
//
// A rendered page is written as text/html with one Set-Cookie line per
// cookie. A redirect becomes 302. A syntax error is 400; any other failure
// is 500 with {error, kind, path, lineNumber, description}.
package http
