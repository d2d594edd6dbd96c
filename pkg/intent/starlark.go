package intent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DefaultScriptTimeout bounds a single route() call.
const DefaultScriptTimeout = 2 * time.Second

// StarlarkRouter routes text through a user-supplied Starlark script. The
// script must define route(text) returning None or a dict with at least an
// "operation" key. Every other key becomes an intent parameter.
//
//	def route(text):
//	    if text.startswith("bounce "):
//	        return {"operation": "restart", "node": text[len("bounce "):]}
//	    return None
type StarlarkRouter struct {
	name    string
	route   starlark.Callable
	timeout time.Duration
	logger  zerolog.Logger
}

// StarlarkOption configures a StarlarkRouter.
type StarlarkOption func(*StarlarkRouter)

// WithScriptTimeout sets the per-call execution limit.
func WithScriptTimeout(d time.Duration) StarlarkOption {
	return func(r *StarlarkRouter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRouterLogger sets the logger script failures are reported to.
func WithRouterLogger(logger zerolog.Logger) StarlarkOption {
	return func(r *StarlarkRouter) {
		r.logger = logger
	}
}

// LoadStarlarkRouter reads a script file and compiles it.
func LoadStarlarkRouter(path string, opts ...StarlarkOption) (*StarlarkRouter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read router script: %w", err)
	}
	return NewStarlarkRouter(path, string(data), opts...)
}

// NewStarlarkRouter executes script once and keeps its route function. name
// is used in error positions.
func NewStarlarkRouter(name, script string, opts ...StarlarkOption) (*StarlarkRouter, error) {
	r := &StarlarkRouter{
		name:    name,
		timeout: DefaultScriptTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	thread := r.newThread()
	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	stop := cancelOnDone(ctx, thread)
	globals, err := starlark.ExecFile(thread, name, script, predeclared)
	stop()
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}
	globals.Freeze()

	fn, ok := globals["route"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("router script %s does not define route(text)", name)
	}
	r.route = fn
	r.logger = r.logger.With().Str("component", "starlark-router").Str("script", name).Logger()

	return r, nil
}

// Route implements Router. Script errors and timeouts are logged and treated
// as no match.
func (r *StarlarkRouter) Route(text string) (Intent, bool) {
	in, ok, err := r.Eval(context.Background(), text)
	if err != nil {
		r.logger.Warn().Err(err).Str("text", text).Msg("Router script failed")
		return Intent{}, false
	}
	return in, ok
}

// Eval calls route(text) and converts the result.
func (r *StarlarkRouter) Eval(ctx context.Context, text string) (Intent, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	thread := r.newThread()
	stop := cancelOnDone(ctx, thread)
	result, err := starlark.Call(thread, r.route, starlark.Tuple{starlark.String(text)}, nil)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return Intent{}, false, fmt.Errorf("route() exceeded %v: %w", r.timeout, ctx.Err())
		}
		return Intent{}, false, fmt.Errorf("route() failed: %w", err)
	}
	return toIntent(result)
}

func (r *StarlarkRouter) newThread() *starlark.Thread {
	return &starlark.Thread{
		Name: "modelops-router",
		Print: func(_ *starlark.Thread, msg string) {
			r.logger.Debug().Str("script", r.name).Msg(msg)
		},
	}
}

// cancelOnDone cancels the thread when ctx ends. The returned func releases
// the watcher.
func cancelOnDone(ctx context.Context, thread *starlark.Thread) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()
	return func() { close(done) }
}

func toIntent(v starlark.Value) (Intent, bool, error) {
	if v == starlark.None {
		return Intent{}, false, nil
	}

	goVal, err := fromStarlarkValue(v)
	if err != nil {
		return Intent{}, false, err
	}
	fields, ok := goVal.(map[string]interface{})
	if !ok {
		return Intent{}, false, fmt.Errorf("route() must return a dict or None, got %s", v.Type())
	}

	op, _ := fields["operation"].(string)
	if op == "" {
		return Intent{}, false, fmt.Errorf("route() result has no operation")
	}

	in := Intent{Operation: op, Params: make(map[string]string, len(fields)-1)}
	for k, val := range fields {
		if k == "operation" || val == nil {
			continue
		}
		in.Params[k] = fmt.Sprint(val)
	}
	return in, true, nil
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
