package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/lifecycle"
	"yqhp/hookrunner/pkg/logger"
	"yqhp/hookrunner/pkg/types"
)

// Runtime evaluates one test file. It is not reusable across files.
type Runtime struct {
	vm       *goja.Runtime
	loop     *eventLoop
	console  *console
	builder  *lifecycle.Builder
	stack    []*lifecycle.GroupBuilder
	filename string
	log      *zap.Logger

	mu      sync.Mutex
	running *invocation
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Runtime with the test globals installed.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		vm:  goja.New(),
		log: logger.Named("script"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.console = &console{log: r.log}

	loop, err := newEventLoop(r.vm)
	if err != nil {
		return nil, err
	}
	r.loop = loop
	if err := r.install(); err != nil {
		r.Close()
		return nil, fmt.Errorf("install globals: %w", err)
	}
	r.loop.start()
	return r, nil
}

// Close stops the event loop and every pending timer.
func (r *Runtime) Close() {
	r.loop.close()
}

// ConsoleLogs returns the lines written through console.
func (r *Runtime) ConsoleLogs() []string {
	return r.console.Lines()
}

// Load evaluates source, collecting its declarations. It may be called once.
func (r *Runtime) Load(ctx context.Context, filename string, source string) error {
	if r.builder != nil {
		return errors.New("runtime already loaded a file")
	}
	r.filename = filename
	r.builder = lifecycle.NewBuilder(lifecycle.WithSource(filename))
	r.stack = []*lifecycle.GroupBuilder{r.builder.GroupBuilder}

	prg, err := goja.Compile(filename, source, false)
	if err != nil {
		return fmt.Errorf("compile %s: %w", filename, err)
	}

	inv := newInvocation()
	stop := context.AfterFunc(ctx, func() {
		r.interrupt(inv, ctx.Err())
	})
	defer stop()

	var runErr error
	if err := r.loop.do(func() {
		if !r.enter(inv) {
			runErr = ctx.Err()
			return
		}
		defer r.leave()
		_, runErr = r.vm.RunProgram(prg)
	}); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("evaluate %s: %w", filename, jsError(runErr))
	}
	return nil
}

// Build freezes the declarations collected by Load.
func (r *Runtime) Build() (*lifecycle.Tree, error) {
	if r.builder == nil {
		return nil, errors.New("no file loaded")
	}
	return r.builder.Build()
}

// LateDeclarations reports declarations made while tests were running.
func (r *Runtime) LateDeclarations() error {
	if r.builder == nil {
		return nil
	}
	return r.builder.Err()
}

func (r *Runtime) current() *lifecycle.GroupBuilder {
	return r.stack[len(r.stack)-1]
}

// throw raises a JS TypeError from a native function.
func (r *Runtime) throw(format string, args ...any) {
	panic(r.vm.NewTypeError(fmt.Sprintf(format, args...)))
}

// location returns the position of the innermost JS caller.
func (r *Runtime) location() []lifecycle.DeclOption {
	for _, frame := range r.vm.CaptureCallStack(4, nil) {
		pos := frame.Position()
		if pos.Line > 0 {
			return []lifecycle.DeclOption{lifecycle.At(types.Location{
				File:      r.filename,
				StartLine: pos.Line,
				EndLine:   pos.Line,
				StartCol:  pos.Column,
				EndCol:    pos.Column,
			})}
		}
	}
	return nil
}

// timeoutArg reads an optional trailing timeout in milliseconds.
func timeoutArg(v goja.Value) []lifecycle.DeclOption {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	ms := v.ToInteger()
	if ms <= 0 {
		return nil
	}
	return []lifecycle.DeclOption{lifecycle.Timeout(time.Duration(ms) * time.Millisecond)}
}

// jsError converts a goja error into a Go error with the JS message.
func jsError(err error) error {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &Error{Message: exceptionMessage(exc.Value()), Stack: exc.String(), cause: err}
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if inner, ok := interrupted.Value().(error); ok {
			return inner
		}
	}
	return err
}

// valueError converts a rejection reason or a done(err) argument into an error.
func valueError(v goja.Value) error {
	return &Error{Message: exceptionMessage(v)}
}

func exceptionMessage(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) && name.String() != "Error" {
				return name.String() + ": " + msg.String()
			}
			return msg.String()
		}
	}
	return formatValue(v)
}

// Error is a JavaScript exception raised by a test or hook.
type Error struct {
	Message string
	Stack   string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }
