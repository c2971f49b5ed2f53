package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/sandrender/internal/render/compiler"
)

var (
	// ErrTimeout is reported when a render exceeds Config.Timeout.
	ErrTimeout = errors.New("render timeout exceeded")
	// ErrReservedName rejects capabilities that reuse an internal name.
	ErrReservedName = errors.New("reserved name")
)

// Suppressed names are always undefined inside the sandbox.
var Suppressed = []string{"eval", "Function", "require", "process", "module", "exports", "globalThis"}

// LocalsName exposes the bindings as a single object.
const LocalsName = "locals"

// sealConstructors removes the constructor link from the function
// prototypes, so `(function(){}).constructor` cannot compile code once
// Function itself is suppressed.
const sealConstructors = `(function () {
	[function () {}, async function () {}, function* () {}].forEach(function (fn) {
		Object.defineProperty(Object.getPrototypeOf(fn), "constructor", {value: undefined});
	});
})();`

// Config defines sandbox limits.
type Config struct {
	Timeout          time.Duration // 0 leaves the deadline to the caller's context
	MaxCallStackSize int           // 0 keeps the goja default
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		Timeout:          10 * time.Second,
		MaxCallStackSize: 1024,
	}
}

// Capability is a host function callable from template code. It runs on the
// render goroutine and may block.
type Capability func(vm *goja.Runtime, call goja.FunctionCall) goja.Value

// Env is everything a single execution can see.
type Env struct {
	Bindings     map[string]interface{}
	Capabilities map[string]Capability
	Console      func(level, message string) // nil drops console output
}

// Program is a compiled template. It is immutable and may be executed any
// number of times.
type Program struct {
	Filename string
	Text     string
	Source   string
	program  *goja.Program
}

// Compile prepares out for execution.
func Compile(filename string, out *compiler.Output) (*Program, error) {
	p, err := goja.Compile(filename, out.Source, false)
	if err != nil {
		return nil, err
	}
	return &Program{
		Filename: filename,
		Text:     out.Text,
		Source:   out.Source,
		program:  p,
	}, nil
}

// Fault is a failure raised while a program was executing.
type Fault struct {
	Line       int
	Capability bool // raised by a capability rather than by template code
	Err        error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("line %d: %v", f.Line, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Executor runs programs under a fixed configuration.
type Executor struct {
	config Config
}

// New creates an executor.
func New(config Config) *Executor {
	return &Executor{config: config}
}

// Execute runs p against env and returns the joined output.
func (e *Executor) Execute(ctx context.Context, p *Program, env Env) (out string, err error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if e.config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(e.config.MaxCallStackSize)
	}

	var output []string
	if err := e.bind(vm, env, &output); err != nil {
		return "", err
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.config.Timeout, ErrTimeout)
		defer cancel()
	}
	stop := watch(ctx, vm)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Line: currentLine(vm), Err: fmt.Errorf("sandbox panic: %v", r)}
		}
	}()

	if _, runErr := vm.RunProgram(p.program); runErr != nil {
		cause, fromHost := unwrap(runErr)
		return "", &Fault{Line: currentLine(vm), Capability: fromHost, Err: cause}
	}

	return strings.Join(output, ""), nil
}

func (e *Executor) bind(vm *goja.Runtime, env Env, output *[]string) error {
	locals := Clone(env.Bindings)
	if locals == nil {
		locals = map[string]interface{}{}
	}
	for k, v := range locals {
		if isReserved(k) {
			continue
		}
		if err := vm.Set(k, v); err != nil {
			return fmt.Errorf("bind %q: %w", k, err)
		}
	}
	if err := vm.Set(LocalsName, locals); err != nil {
		return fmt.Errorf("bind locals: %w", err)
	}

	for name, fn := range env.Capabilities {
		if isReserved(name) || name == LocalsName {
			return fmt.Errorf("%w: capability %q", ErrReservedName, name)
		}
		fn := fn
		if err := vm.Set(name, func(call goja.FunctionCall) goja.Value {
			return fn(vm, call)
		}); err != nil {
			return fmt.Errorf("bind capability %q: %w", name, err)
		}
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		level := level
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			if env.Console != nil {
				parts := make([]string, len(call.Arguments))
				for i, arg := range call.Arguments {
					parts[i] = arg.String()
				}
				env.Console(level, strings.Join(parts, " "))
			}
			return goja.Undefined()
		})
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	if err := vm.Set(compiler.AppendFunc, func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0)
		if !goja.IsUndefined(v) && !goja.IsNull(v) {
			*output = append(*output, v.String())
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := vm.Set(compiler.LineVar, 1); err != nil {
		return err
	}

	if _, err := vm.RunString(sealConstructors); err != nil {
		return fmt.Errorf("seal constructors: %w", err)
	}
	for _, name := range Suppressed {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return fmt.Errorf("suppress %q: %w", name, err)
		}
	}
	return nil
}

// watch interrupts vm once ctx is done, until the returned func is called.
func watch(ctx context.Context, vm *goja.Runtime) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(Cause(ctx))
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Cause reports why ctx ended, or nil while it is live. An expired deadline
// is reported as ErrTimeout.
func Cause(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return cause
}

func currentLine(vm *goja.Runtime) int {
	v := vm.Get(compiler.LineVar)
	if v == nil || goja.IsUndefined(v) {
		return 0
	}
	return int(v.ToInteger())
}

// unwrap recovers the Go error behind a goja failure. The boolean reports
// whether the error was raised by host code.
func unwrap(err error) (error, bool) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause, true
		}
		return err, true
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		if obj, ok := exc.Value().(*goja.Object); ok {
			if inner := obj.Get("value"); inner != nil {
				if cause, ok := inner.Export().(error); ok {
					return cause, true
				}
			}
		}
	}
	return err, false
}

func isReserved(name string) bool {
	if name == compiler.AppendFunc || name == compiler.LineVar || name == "console" {
		return true
	}
	for _, s := range Suppressed {
		if s == name {
			return true
		}
	}
	return false
}
