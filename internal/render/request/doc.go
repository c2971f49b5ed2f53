// Package request is the request adapter behind the request and requests
// template capabilities.
//
// An Adapter turns a Descriptor (method, uri, headers, query, body, timeout)
// into a transport call, choosing the body encoding from the content-type
// header, and normalizes the response:
//
//   - JSON, YAML and TOML bodies are decoded into plain Go values
//   - bodies without a content-type are sniffed for JSON
//   - other text is converted to UTF-8, binary payloads (sniffed or declared) stay []byte
//
// DoAll issues every call at once and returns the results in input order.
package request
