// Package compiler turns EJS-style template text into a JavaScript program
// for the render sandbox.
//
// Supported tags, with the default '%' delimiter:
//
//	<% code %>     scriptlet, emitted verbatim
//	<%= expr %>    output, escaped through the escape function
//	<%- expr %>    output, unescaped
//	<%# text %>    comment, dropped
//	<%%  %%>       literal "<%" and "%>"
//	-%>            trims the newline that follows the tag
//	<%_  _%>       slurp spaces and tabs before / after the tag
//
// The generated program appends output through AppendFunc and keeps LineVar
// equal to the template line of the construct being executed.
package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// AppendFunc receives every output fragment.
	AppendFunc = "__append"
	// LineVar holds the template line currently executing.
	LineVar = "__line"
	// DefaultEscapeFunc is called for <%= %> output.
	DefaultEscapeFunc = "escapeFn"
	// DefaultDelimiter is the character inside the tag brackets.
	DefaultDelimiter = '%'
)

// Options configures a compilation.
type Options struct {
	Delimiter  byte   // defaults to DefaultDelimiter
	EscapeFunc string // defaults to DefaultEscapeFunc
}

// Output is a compiled template.
type Output struct {
	Source string // generated program
	Text   string // original template text, verbatim
	Lines  int    // number of lines in Text
}

// SyntaxError reports malformed template markup.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type tagMode int

const (
	modeScript tagMode = iota
	modeEscaped
	modeRaw
	modeComment
)

// Compile generates the program for text.
func Compile(text string, opts Options) (*Output, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = DefaultDelimiter
	}
	if opts.EscapeFunc == "" {
		opts.EscapeFunc = DefaultEscapeFunc
	}

	g := &generator{
		text:   text,
		open:   "<" + string(opts.Delimiter),
		close:  string(opts.Delimiter) + ">",
		delim:  opts.Delimiter,
		escape: opts.EscapeFunc,
		line:   1,
	}
	if err := g.run(); err != nil {
		return nil, err
	}

	return &Output{
		Source: g.src.String(),
		Text:   text,
		Lines:  strings.Count(text, "\n") + 1,
	}, nil
}

type generator struct {
	text   string
	open   string
	close  string
	delim  byte
	escape string

	src      strings.Builder
	line     int // template line at the scan position
	emitted  int // last line written to LineVar
	position int
}

func (g *generator) run() error {
	for g.position < len(g.text) {
		idx := strings.Index(g.text[g.position:], g.open)
		if idx < 0 {
			g.emitText(g.text[g.position:])
			g.position = len(g.text)
			break
		}

		start := g.position + idx
		after := start + len(g.open)

		// "<%%" is a literal "<%"
		if after < len(g.text) && g.text[after] == g.delim {
			g.emitText(g.text[g.position:start] + g.open)
			g.line += strings.Count(g.text[g.position:start], "\n")
			g.position = after + 1
			continue
		}

		mode, skip, slurpBefore := modeScript, 0, false
		if after < len(g.text) {
			switch g.text[after] {
			case '=':
				mode, skip = modeEscaped, 1
			case '-':
				mode, skip = modeRaw, 1
			case '#':
				mode, skip = modeComment, 1
			case '_':
				skip, slurpBefore = 1, true
			}
		}

		preceding := g.text[g.position:start]
		if slurpBefore {
			preceding = strings.TrimRight(preceding, " \t")
		}
		g.emitText(preceding)
		g.line += strings.Count(g.text[g.position:start], "\n")

		bodyStart := after + skip
		end := strings.Index(g.text[bodyStart:], g.close)
		if end < 0 {
			return &SyntaxError{
				Line: g.line,
				Msg:  fmt.Sprintf("could not find matching close tag for %q", g.open),
			}
		}
		body := g.text[bodyStart : bodyStart+end]
		g.position = bodyStart + end + len(g.close)

		trimNewline, slurpAfter := false, false
		switch {
		case strings.HasSuffix(body, "-"):
			body, trimNewline = body[:len(body)-1], true
		case strings.HasSuffix(body, "_"):
			body, slurpAfter = body[:len(body)-1], true
		}

		g.emitTag(mode, body)
		g.line += strings.Count(body, "\n")

		if slurpAfter {
			for g.position < len(g.text) && (g.text[g.position] == ' ' || g.text[g.position] == '\t') {
				g.position++
			}
		}
		if trimNewline {
			switch {
			case strings.HasPrefix(g.text[g.position:], "\r\n"):
				g.position += 2
				g.line++
			case strings.HasPrefix(g.text[g.position:], "\n"):
				g.position++
				g.line++
			}
		}
	}
	return nil
}

func (g *generator) markLine() {
	if g.emitted == g.line {
		return
	}
	fmt.Fprintf(&g.src, "%s = %d;\n", LineVar, g.line)
	g.emitted = g.line
}

// emitText appends literal output, one statement per template line. It leaves
// g.line untouched; callers advance it over the consumed input.
func (g *generator) emitText(s string) {
	if s == "" {
		return
	}
	s = strings.ReplaceAll(s, string(g.delim)+g.close, g.close)

	saved := g.line
	for s != "" {
		chunk := s
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			chunk = s[:i+1]
		}
		s = s[len(chunk):]

		g.markLine()
		fmt.Fprintf(&g.src, "%s(%s);\n", AppendFunc, quote(chunk))
		if strings.HasSuffix(chunk, "\n") {
			g.line++
		}
	}
	g.line = saved
}

func (g *generator) emitTag(mode tagMode, body string) {
	if mode == modeComment {
		return
	}
	g.markLine()

	switch mode {
	case modeScript:
		g.src.WriteString(body)
		g.src.WriteString("\n")
	case modeEscaped:
		fmt.Fprintf(&g.src, "%s(%s(%s\n));\n", AppendFunc, g.escape, trimSemicolon(body))
	case modeRaw:
		fmt.Fprintf(&g.src, "%s(%s\n);\n", AppendFunc, trimSemicolon(body))
	}

	// the statement above may span lines; force the next marker
	g.emitted = 0
}

func trimSemicolon(s string) string {
	trimmed := strings.TrimRight(s, " \t\r\n")
	return strings.TrimSuffix(trimmed, ";")
}

// quote renders s as a JavaScript string literal.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028', '\u2029':
			b.WriteString(`\u` + strconv.FormatInt(int64(r), 16))
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
