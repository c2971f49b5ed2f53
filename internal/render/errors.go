package render

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/sandrender/internal/render/cookies"
	"github.com/GriffinCanCode/sandrender/internal/render/sandbox"
)

var (
	ErrTemplateNotFound      = errors.New("template not found")
	ErrIncludeCycle          = errors.New("include cycle")
	ErrIncludeDepth          = errors.New("include depth exceeded")
	ErrStaticPathUnavailable = errors.New("static path hook not configured")
	ErrRenderTimeout         = sandbox.ErrTimeout
	ErrTooManyCookies        = cookies.ErrTooManyCookies
)

// SyntaxError reports a template that could not be compiled. No code from
// the template ran.
type SyntaxError struct {
	Filename string
	Line     int // 0 when the failing line is unknown
	Err      error
}

func (e *SyntaxError) Error() string {
	name := e.Filename
	if name == "" {
		name = "ejs"
	}
	return fmt.Sprintf("syntax error in %s: %v", name, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// RedirectSignal ends a render early. It is a control transfer requested by
// template code, not a failure.
type RedirectSignal struct {
	Location string
}

func (r *RedirectSignal) Error() string {
	return "redirect to " + r.Location
}

// CapabilityError is a failure of a request or include capability.
type CapabilityError struct {
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return e.Capability + ": " + e.Err.Error()
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// Kind classifies render errors.
type Kind string

const (
	KindNone       Kind = ""
	KindSyntax     Kind = "syntax"
	KindRedirect   Kind = "redirect"
	KindCapability Kind = "capability"
	KindRuntime    Kind = "runtime"
)

// Classify returns the kind of err. Failures raised by an include keep the
// capability kind even when the included template had a syntax error.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var redirect *RedirectSignal
	if errors.As(err, &redirect) {
		return KindRedirect
	}
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return KindCapability
	}
	var syntaxErr *SyntaxError
	if errors.As(err, &syntaxErr) {
		return KindSyntax
	}
	return KindRuntime
}

// IsRedirect reports whether err is a redirect and returns its location.
func IsRedirect(err error) (string, bool) {
	var redirect *RedirectSignal
	if errors.As(err, &redirect) {
		return redirect.Location, true
	}
	return "", false
}
