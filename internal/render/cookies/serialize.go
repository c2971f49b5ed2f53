package cookies

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidCookie is returned when a cookie cannot be serialized.
var ErrInvalidCookie = errors.New("invalid cookie")

// Options mirrors the attributes a template may pass to setCookie.
type Options struct {
	Domain   string
	Encode   func(string) (string, error) // defaults to EncodeURIComponent
	Expires  time.Time
	HTTPOnly bool
	MaxAge   *int // nil leaves Max-Age out, 0 emits Max-Age=0
	Path     string
	Secure   bool
	SameSite string // "lax", "strict", "none" or empty
}

// Serialize renders a single Set-Cookie header value.
func Serialize(name, value string, opts Options) (string, error) {
	encode := opts.Encode
	if encode == nil {
		encode = func(s string) (string, error) { return EncodeURIComponent(s), nil }
	}

	encoded, err := encode(value)
	if err != nil {
		return "", fmt.Errorf("%w: encode %q: %v", ErrInvalidCookie, name, err)
	}

	c := &http.Cookie{
		Name:     name,
		Value:    encoded,
		Domain:   opts.Domain,
		Path:     opts.Path,
		Expires:  opts.Expires,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
	}
	if opts.MaxAge != nil {
		c.MaxAge = *opts.MaxAge
		if c.MaxAge == 0 {
			// net/http spells "Max-Age=0" as a negative MaxAge.
			c.MaxAge = -1
		}
	}

	switch strings.ToLower(opts.SameSite) {
	case "":
	case "lax":
		c.SameSite = http.SameSiteLaxMode
	case "strict":
		c.SameSite = http.SameSiteStrictMode
	case "none":
		c.SameSite = http.SameSiteNoneMode
	default:
		return "", fmt.Errorf("%w: sameSite %q", ErrInvalidCookie, opts.SameSite)
	}

	if err := c.Valid(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}

	return c.String(), nil
}

// EncodeURIComponent escapes s the way JavaScript's encodeURIComponent does.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
