package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sandrender/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sandrender/internal/render/sandbox"
)

func (st *state) includeCapability(ctx context.Context, parent map[string]interface{}) sandbox.Capability {
	return func(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		data := exportMap(call.Argument(1))

		out, err := st.include(ctx, name, parent, data)
		if err != nil {
			if _, ok := IsRedirect(err); ok {
				throw(vm, err)
			}
			fail(ctx, vm, &CapabilityError{Capability: "includeTemplate", Err: err})
		}
		return vm.ToValue(out)
	}
}

// include renders the named template with the parent's bindings overlaid
// by data. It shares the parent's header map.
func (st *state) include(ctx context.Context, name string, parent, data map[string]interface{}) (string, error) {
	e := st.engine

	if st.depth >= e.config.MaxIncludeDepth {
		return "", fmt.Errorf("%w: limit %d reached at %q", ErrIncludeDepth, e.config.MaxIncludeDepth, name)
	}
	for _, open := range st.stack {
		if open == name {
			chain := append(append([]string(nil), st.stack...), name)
			return "", fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(chain, " -> "))
		}
	}

	text, err := st.lookup(ctx, name)
	if err != nil {
		return "", err
	}

	bindings := make(map[string]interface{}, len(parent)+len(data))
	for k, v := range parent {
		bindings[k] = v
	}
	for k, v := range data {
		bindings[k] = v
	}

	if e.tracer != nil {
		span, spanCtx := e.tracer.StartSpan(ctx, "include")
		span.SetTag("template", name)
		defer e.tracer.End(span)
		ctx = spanCtx
	}
	if e.observer != nil {
		e.observer.ObserveInclude()
	}
	e.logger.Debug("including template",
		zap.String(logging.KeyRenderID, st.renderID.String()),
		zap.String("template", name),
		zap.Int("depth", st.depth+1),
	)

	st.stack = append(st.stack, name)
	st.depth++
	defer func() {
		st.stack = st.stack[:len(st.stack)-1]
		st.depth--
	}()

	return st.render(ctx, text, name, bindings)
}

func (st *state) lookup(ctx context.Context, name string) (string, error) {
	if text, ok := st.opts.Templates[name]; ok {
		return text, nil
	}
	if st.engine.loader == nil {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return st.engine.loader.Load(ctx, name)
}
