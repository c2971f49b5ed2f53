package render

import (
	"context"
	"errors"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sandrender/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sandrender/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/sandrender/internal/providers/http/client"
	"github.com/GriffinCanCode/sandrender/internal/render/compiler"
	"github.com/GriffinCanCode/sandrender/internal/render/cookies"
	"github.com/GriffinCanCode/sandrender/internal/render/diagnostics"
	"github.com/GriffinCanCode/sandrender/internal/render/request"
	"github.com/GriffinCanCode/sandrender/internal/render/sandbox"
	"github.com/GriffinCanCode/sandrender/internal/shared/id"
)

// Config defines engine limits.
type Config struct {
	Sandbox         sandbox.Config
	MaxIncludeDepth int
	Delimiter       byte
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Sandbox:         sandbox.DefaultConfig(),
		MaxIncludeDepth: 32,
		Delimiter:       compiler.DefaultDelimiter,
	}
}

// Options apply to a single render.
type Options struct {
	// Filename names the template in diagnostics and include cycle checks.
	Filename string
	// Templates are consulted by includeTemplate before the engine's Loader.
	Templates map[string]string
	// StaticPath and StaticThemePath back the template functions of the
	// same name. Calling one that is nil fails the render.
	StaticPath      func(path string) string
	StaticThemePath func(path string) string
}

// Result is the outcome of Engine.Execute.
type Result struct {
	Output   string
	Location string            // set when the template redirected
	Headers  map[string]string // pending Set-Cookie headers by variant name
}

// Observer receives render statistics.
type Observer interface {
	ObserveRender(kind string, duration time.Duration)
	ObserveInclude()
	ObserveCookies(n int)
}

// Engine compiles and executes templates.
type Engine struct {
	config   Config
	executor *sandbox.Executor
	adapter  *request.Adapter
	loader   Loader
	policy   *bluemonday.Policy
	observer Observer
	tracer   *tracing.Tracer
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLoader sets the loader used by includeTemplate.
func WithLoader(l Loader) EngineOption {
	return func(e *Engine) { e.loader = l }
}

// WithObserver reports render statistics to o.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithTracer records a span per render and per include.
func WithTracer(t *tracing.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithSanitizer replaces the policy behind sanitize().
func WithSanitizer(p *bluemonday.Policy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

// NewEngine creates an engine. A nil adapter gets a default HTTP client.
func NewEngine(cfg Config, adapter *request.Adapter, opts ...EngineOption) *Engine {
	if cfg.MaxIncludeDepth <= 0 {
		cfg.MaxIncludeDepth = DefaultConfig().MaxIncludeDepth
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = compiler.DefaultDelimiter
	}
	if adapter == nil {
		adapter = request.New(client.New(client.DefaultConfig()))
	}

	// The engine owns the render deadline; see run.
	vmConfig := cfg.Sandbox
	vmConfig.Timeout = 0

	e := &Engine{
		config:   cfg,
		executor: sandbox.New(vmConfig),
		adapter:  adapter,
		policy:   bluemonday.UGCPolicy(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute renders text with a fresh header map. A redirect is reported
// through Result.Location with a nil error.
func (e *Engine) Execute(ctx context.Context, text string, bindings map[string]interface{}, opts Options) (*Result, error) {
	jar := cookies.NewJar()
	out, err := e.run(ctx, jar, text, bindings, opts)

	if location, ok := IsRedirect(err); ok {
		return &Result{Location: location, Headers: jar.Headers()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Output: out, Headers: jar.Headers()}, nil
}

// Check compiles text without running it. It returns a *SyntaxError for
// malformed templates.
func (e *Engine) Check(text, filename string) error {
	_, err := e.compile(text, filename)
	return err
}

// Renderer keeps the headers of its most recent render. It must not be used
// by more than one goroutine at a time.
type Renderer struct {
	engine *Engine
	jar    *cookies.Jar
}

// NewRenderer creates a renderer on top of e.
func (e *Engine) NewRenderer() *Renderer {
	return &Renderer{engine: e, jar: cookies.NewJar()}
}

// Render clears the pending headers and renders text. Redirects are
// returned as *RedirectSignal.
func (r *Renderer) Render(ctx context.Context, text string, bindings map[string]interface{}, opts Options) (string, error) {
	r.jar.Reset()
	return r.engine.run(ctx, r.jar, text, bindings, opts)
}

// Headers returns the Set-Cookie headers produced by the last render.
func (r *Renderer) Headers() map[string]string {
	return r.jar.Headers()
}

func (e *Engine) run(ctx context.Context, jar *cookies.Jar, text string, bindings map[string]interface{}, opts Options) (string, error) {
	renderID := id.NewRenderID()
	start := time.Now()

	// One deadline covers the whole render: template code, blocked
	// capability calls and every include.
	if timeout := e.config.Sandbox.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrRenderTimeout)
		defer cancel()
	}

	var span *tracing.Span
	if e.tracer != nil {
		span, ctx = e.tracer.StartSpan(ctx, "render")
		span.SetTag("render_id", renderID.String())
		span.SetTag("template", opts.Filename)
	}

	st := &state{
		engine:   e,
		jar:      jar,
		opts:     opts,
		renderID: renderID,
	}
	if opts.Filename != "" {
		st.stack = []string{opts.Filename}
	}

	out, err := st.render(ctx, text, opts.Filename, bindings)
	duration := time.Since(start)

	kind := string(Classify(err))
	if kind == "" {
		kind = "success"
	}
	if e.observer != nil {
		e.observer.ObserveRender(kind, duration)
		e.observer.ObserveCookies(jar.Len())
	}
	if span != nil {
		span.SetTag("outcome", kind)
		if kind != "success" && kind != string(KindRedirect) {
			span.SetError(err)
		}
		e.tracer.End(span)
	}

	logger := logging.ForRender(e.logger, renderID.String(), opts.Filename)
	fields := []zap.Field{
		zap.String("outcome", kind),
		zap.Duration("duration", duration),
		zap.Int("cookies", jar.Len()),
	}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID.String()))
	}
	switch kind {
	case "success", string(KindRedirect):
		logger.Info("render completed", fields...)
	default:
		logger.Warn("render failed", append(fields, zap.Error(err))...)
	}

	return out, err
}

// state is shared by a top-level render and all of its includes.
type state struct {
	engine   *Engine
	jar      *cookies.Jar
	opts     Options
	renderID id.RenderID
	stack    []string
	depth    int
}

func (st *state) render(ctx context.Context, text, filename string, bindings map[string]interface{}) (string, error) {
	e := st.engine

	program, err := e.compile(text, filename)
	if err != nil {
		return "", err
	}

	env := sandbox.Env{
		Bindings:     bindings,
		Capabilities: st.capabilities(ctx, bindings),
		Console:      logging.ConsoleSink(logging.ForRender(e.logger, st.renderID.String(), filename)),
	}

	out, err := e.executor.Execute(ctx, program, env)
	if err == nil {
		return out, nil
	}

	var fault *sandbox.Fault
	if !errors.As(err, &fault) {
		return "", err
	}
	var redirect *RedirectSignal
	if errors.As(fault.Err, &redirect) {
		return "", redirect
	}
	return "", diagnostics.Rewrite(fault.Err, program.Text, filename, fault.Line)
}

func (e *Engine) compile(text, filename string) (*sandbox.Program, error) {
	out, err := compiler.Compile(text, compiler.Options{Delimiter: e.config.Delimiter})
	if err != nil {
		syntaxErr := &SyntaxError{Filename: filename, Err: err}
		var compileErr *compiler.SyntaxError
		if errors.As(err, &compileErr) {
			syntaxErr.Line = compileErr.Line
		}
		return nil, syntaxErr
	}

	program, err := sandbox.Compile(filename, out)
	if err != nil {
		return nil, &SyntaxError{Filename: filename, Err: err}
	}
	return program, nil
}
