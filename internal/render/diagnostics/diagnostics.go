// Package diagnostics maps a failure in a compiled template back to the
// original template text.
package diagnostics

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// Window is the number of lines shown on each side of the failing line.
const Window = 3

// DefaultPath names templates rendered without a filename.
const DefaultPath = "ejs"

// Error carries the template location of a render failure. It wraps the
// original error, so errors.Is and errors.As still reach it.
type Error struct {
	Path        string
	LineNumber  int
	Description string
	Err         error
}

func (e *Error) Error() string {
	return e.Description + "\n\n" + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rewrite annotates err with an excerpt of text around line. When no excerpt
// can be built, err is returned unchanged.
func Rewrite(err error, text, path string, line int) error {
	if err == nil {
		return nil
	}
	context, ok := Excerpt(text, line)
	if !ok {
		return err
	}

	path = html.EscapeString(path)
	name := path
	if name == "" {
		name = DefaultPath
	}

	return &Error{
		Path:        path,
		LineNumber:  line,
		Description: name + ":" + strconv.Itoa(line) + "\n" + context,
		Err:         err,
	}
}

// Excerpt renders the lines from line-Window to line+Window, each prefixed
// with its number and with " >> " marking line itself.
func Excerpt(text string, line int) (string, bool) {
	lines := strings.Split(text, "\n")
	if line < 1 || line > len(lines) {
		return "", false
	}

	start := max(line-Window, 1)
	end := min(line+Window, len(lines))

	var b strings.Builder
	for n := start; n <= end; n++ {
		marker := "    "
		if n == line {
			marker = " >> "
		}
		fmt.Fprintf(&b, "%s%d| %s", marker, n, strings.TrimSuffix(lines[n-1], "\r"))
		if n < end {
			b.WriteByte('\n')
		}
	}
	return b.String(), true
}
