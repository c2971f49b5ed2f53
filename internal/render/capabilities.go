package render

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/sandrender/internal/render/compiler"
	"github.com/GriffinCanCode/sandrender/internal/render/cookies"
	"github.com/GriffinCanCode/sandrender/internal/render/request"
	"github.com/GriffinCanCode/sandrender/internal/render/sandbox"
)

// capabilities builds the functions visible to one template execution.
func (st *state) capabilities(ctx context.Context, bindings map[string]interface{}) map[string]sandbox.Capability {
	include := st.includeCapability(ctx, bindings)

	return map[string]sandbox.Capability{
		"request":                  st.requestCapability(ctx),
		"requests":                 st.requestsCapability(ctx),
		"redirect":                 redirectCapability,
		"includeTemplate":          include,
		"include":                  include,
		"setCookie":                st.setCookieCapability,
		compiler.DefaultEscapeFunc: escapeCapability,
		"escape":                   escapeCapability,
		"sanitize":                 st.sanitizeCapability,
		"staticPath":               staticCapability("staticPath", st.opts.StaticPath),
		"staticThemePath":          staticCapability("staticThemePath", st.opts.StaticThemePath),
	}
}

// throw raises err inside the VM. The sandbox hands the same value back.
func throw(vm *goja.Runtime, err error) {
	panic(vm.NewGoError(err))
}

// fail raises err, unless the render itself has ended, in which case the
// reason it ended (timeout or cancellation) is raised instead.
func fail(ctx context.Context, vm *goja.Runtime, err error) {
	if cause := sandbox.Cause(ctx); cause != nil {
		throw(vm, cause)
	}
	throw(vm, err)
}

func redirectCapability(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	throw(vm, &RedirectSignal{Location: call.Argument(0).String()})
	return nil
}

func escapeCapability(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	v := call.Argument(0)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return vm.ToValue("")
	}
	return vm.ToValue(html.EscapeString(v.String()))
}

func (st *state) sanitizeCapability(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	v := call.Argument(0)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return vm.ToValue("")
	}
	return vm.ToValue(st.engine.policy.Sanitize(v.String()))
}

func staticCapability(name string, hook func(string) string) sandbox.Capability {
	return func(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
		if hook == nil {
			throw(vm, fmt.Errorf("%s: %w", name, ErrStaticPathUnavailable))
		}
		return vm.ToValue(hook(call.Argument(0).String()))
	}
}

func (st *state) requestCapability(ctx context.Context) sandbox.Capability {
	return func(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
		options := exportMap(call.Argument(2))
		d := descriptor(call.Argument(0).String(), call.Argument(1).String(), options)

		res, err := st.engine.adapter.Do(ctx, d)
		if err != nil {
			fail(ctx, vm, &CapabilityError{Capability: "request", Err: err})
		}
		return vm.ToValue(present(res, truthy(options["full"])))
	}
}

func (st *state) requestsCapability(ctx context.Context) sandbox.Capability {
	return func(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
		items, ok := call.Argument(0).Export().([]interface{})
		if !ok {
			throw(vm, &CapabilityError{
				Capability: "requests",
				Err:        fmt.Errorf("%w: expected an array", request.ErrInvalidDescriptor),
			})
		}

		ds := make([]request.Descriptor, len(items))
		full := make([]bool, len(items))
		for i, item := range items {
			fields, _ := item.(map[string]interface{})
			uri := stringValue(fields["url"])
			if uri == "" {
				uri = stringValue(fields["uri"])
			}
			options := asMap(fields["options"])
			ds[i] = descriptor(stringValue(fields["method"]), uri, options)
			full[i] = truthy(options["full"])
		}

		results, err := st.engine.adapter.DoAll(ctx, ds)
		if err != nil {
			fail(ctx, vm, &CapabilityError{Capability: "requests", Err: err})
		}

		out := make([]interface{}, len(results))
		for i, res := range results {
			out[i] = present(res, full[i])
		}
		return vm.ToValue(out)
	}
}

func (st *state) setCookieCapability(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	opts, err := cookieOptions(vm, call.Argument(2))
	if err != nil {
		throw(vm, err)
	}

	serialized, err := cookies.Serialize(call.Argument(0).String(), call.Argument(1).String(), opts)
	if err != nil {
		throw(vm, err)
	}
	if _, err := st.jar.Set(serialized); err != nil {
		throw(vm, err)
	}
	return goja.Undefined()
}

func cookieOptions(vm *goja.Runtime, v goja.Value) (cookies.Options, error) {
	var opts cookies.Options
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return opts, nil
	}
	obj := v.ToObject(vm)

	get := func(key string) goja.Value {
		val := obj.Get(key)
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			return nil
		}
		return val
	}

	if val := get("domain"); val != nil {
		opts.Domain = val.String()
	}
	if val := get("path"); val != nil {
		opts.Path = val.String()
	}
	if val := get("httpOnly"); val != nil {
		opts.HTTPOnly = val.ToBoolean()
	}
	if val := get("secure"); val != nil {
		opts.Secure = val.ToBoolean()
	}
	if val := get("maxAge"); val != nil {
		n := int(val.ToInteger())
		opts.MaxAge = &n
	}
	if val := get("sameSite"); val != nil {
		switch s := val.Export().(type) {
		case bool:
			if s {
				opts.SameSite = "strict"
			}
		default:
			opts.SameSite = val.String()
		}
	}
	if val := get("expires"); val != nil {
		switch t := val.Export().(type) {
		case time.Time:
			opts.Expires = t
		case int64:
			opts.Expires = time.UnixMilli(t)
		case float64:
			opts.Expires = time.UnixMilli(int64(t))
		default:
			return opts, fmt.Errorf("%w: expires must be a Date", cookies.ErrInvalidCookie)
		}
	}
	if val := get("encode"); val != nil {
		fn, ok := goja.AssertFunction(val)
		if !ok {
			return opts, fmt.Errorf("%w: encode must be a function", cookies.ErrInvalidCookie)
		}
		opts.Encode = func(s string) (string, error) {
			out, err := fn(goja.Undefined(), vm.ToValue(s))
			if err != nil {
				return "", err
			}
			return out.String(), nil
		}
	}
	return opts, nil
}

func descriptor(method, uri string, options map[string]interface{}) request.Descriptor {
	return request.Descriptor{
		Method:  method,
		URI:     uri,
		Headers: asMap(options["headers"]),
		Query:   asMap(options["query"]),
		Body:    options["body"],
		Timeout: millis(options["timeout"]),
	}
}

// present shapes a result the way template code sees it.
func present(res *request.Result, full bool) interface{} {
	if !full {
		return res.Body
	}
	return map[string]interface{}{
		"status":  res.Status,
		"headers": res.Headers,
		"body":    res.Body,
	}
}

func exportMap(v goja.Value) map[string]interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return map[string]interface{}{}
	}
	if m := asMap(v.Export()); m != nil {
		return m
	}
	return map[string]interface{}{}
}

func asMap(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case map[string]interface{}:
		return m
	case map[string]string:
		out := make(map[string]interface{}, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out
	default:
		return nil
	}
}

func stringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func millis(v interface{}) time.Duration {
	switch n := v.(type) {
	case int64:
		return time.Duration(n) * time.Millisecond
	case int:
		return time.Duration(n) * time.Millisecond
	case float64:
		return time.Duration(n * float64(time.Millisecond))
	default:
		return 0
	}
}
