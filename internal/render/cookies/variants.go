package cookies

import (
	"strings"
	"sync"
	"unicode"
)

// HeaderName is the header carried by every pending cookie.
const HeaderName = "set-cookie"

var (
	cookieNames     []string
	cookieNamesOnce sync.Once
)

// Variants enumerates every spelling of name obtained by independently
// upper- or lower-casing each letter. Non-letters are kept as is.
//
// Index 0 is the all-lower-case form. The casing choices count up in binary
// with the last letter as the least significant bit, 0 meaning lower case,
// so the order is the same on every run.
func Variants(name string) []string {
	lower := []rune(strings.ToLower(name))

	var letters []int
	for i, r := range lower {
		if unicode.ToUpper(r) != r {
			letters = append(letters, i)
		}
	}

	k := len(letters)
	out := make([]string, 0, 1<<k)
	buf := make([]rune, len(lower))
	for mask := 0; mask < 1<<k; mask++ {
		copy(buf, lower)
		for j, pos := range letters {
			if mask&(1<<(k-1-j)) != 0 {
				buf[pos] = unicode.ToUpper(buf[pos])
			}
		}
		out = append(out, string(buf))
	}
	return out
}

// CookieNames returns the variants of HeaderName. The table is computed once
// per process and must be treated as read-only.
func CookieNames() []string {
	cookieNamesOnce.Do(func() {
		cookieNames = Variants(HeaderName)
	})
	return cookieNames
}
