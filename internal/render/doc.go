/*
Package render compiles and executes EJS-style templates in a sandbox.

# Pipeline

	text ──compile──> program ──bind──> goja VM ──execute──> output
	                    │                              │
	               SyntaxError            Fault ──> diagnostics.Error

A render either produces output, ends with a RedirectSignal requested by the
template, or fails. Failures raised while executing carry the template path,
the failing line and an excerpt of the surrounding lines (diagnostics.Error).
Syntax errors and redirects are returned as they are.

# Capabilities

Template code sees its bindings, `locals`, and these functions:

	request(method, uri, {headers, query, body, timeout, full})
	requests([{method, url, options}, ...])
	redirect(location)
	includeTemplate(name, data) / include(name, data)
	setCookie(name, value, {domain, encode, expires, httpOnly, maxAge, path, secure, sameSite})
	escapeFn(value) / escape(value)
	sanitize(html)
	staticPath(path), staticThemePath(path)
	console.log/info/warn/error

request, requests and includeTemplate block the render until their result is
ready. requests issues its calls concurrently.

# Cookies

Every setCookie call produces its own response header. The header names are
distinct case variants of "set-cookie" (see package cookies), so a plain
header map can hold up to 512 cookies per render.

# Entry points

Engine.Execute is safe for concurrent use and returns the output, redirect
location and cookie headers together. Renderer wraps an engine with a
per-instance header map for callers that render sequentially and read the
headers afterwards.
*/
package render
