package cookies

import (
	"errors"
	"net/http"
	"sync"
)

// ErrTooManyCookies is returned once every case variant of HeaderName is taken.
var ErrTooManyCookies = errors.New("too many cookies for one render")

// Jar is the pending header map of a single render. Each Set consumes the
// next unused case variant of HeaderName, in call order.
type Jar struct {
	mu      sync.Mutex
	names   []string
	headers map[string]string
}

// NewJar creates an empty jar over the process-wide variant table.
func NewJar() *Jar {
	return &Jar{
		names:   CookieNames(),
		headers: make(map[string]string),
	}
}

// Set stores a serialized cookie under the next free variant and returns the
// header name it was stored under.
func (j *Jar) Set(serialized string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := len(j.headers)
	if n >= len(j.names) {
		return "", ErrTooManyCookies
	}
	name := j.names[n]
	j.headers[name] = serialized
	return name, nil
}

// Headers returns a copy of the pending headers.
func (j *Jar) Headers() map[string]string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make(map[string]string, len(j.headers))
	for k, v := range j.headers {
		out[k] = v
	}
	return out
}

// Len reports how many cookies are pending.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.headers)
}

// Reset drops every pending header.
func (j *Jar) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.headers = make(map[string]string)
}

// Apply copies the pending headers into h without canonicalizing the keys,
// so every cookie is written as its own header line.
func (j *Jar) Apply(h http.Header) {
	for k, v := range j.Headers() {
		h[k] = []string{v}
	}
}
