package script

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/lifecycle"
	"yqhp/hookrunner/pkg/types"
)

// invocation is one run of a test or hook callback. Timers and microtasks
// scheduled while it runs belong to it.
type invocation struct {
	settled   chan error
	cancelled atomic.Bool
}

func newInvocation() *invocation {
	return &invocation{settled: make(chan error, 1)}
}

// settle records the first outcome. It reports whether err was accepted.
func (inv *invocation) settle(err error) bool {
	select {
	case inv.settled <- err:
		return true
	default:
		return false
	}
}

// enter marks inv as the owner of the JS about to run on the loop. It fails
// once inv has been interrupted.
func (r *Runtime) enter(inv *invocation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv != nil && inv.cancelled.Load() {
		return false
	}
	r.running = inv
	r.vm.ClearInterrupt()
	return true
}

// leave drops the owner together with any interrupt aimed at it.
func (r *Runtime) leave() {
	r.mu.Lock()
	r.running = nil
	r.vm.ClearInterrupt()
	r.mu.Unlock()
}

func (r *Runtime) owner() *invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// interrupt cancels inv. The VM is only interrupted while inv owns it, so a
// late interrupt never reaches the next callback.
func (r *Runtime) interrupt(inv *invocation, err error) {
	inv.cancelled.Store(true)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running == inv {
		r.vm.Interrupt(err)
	}
}

// action turns a JS callback into a scheduler action. It must be called on
// the loop. bound are arguments passed before the optional done callback.
func (r *Runtime) action(fnValue goja.Value, fn goja.Callable, bound []goja.Value) lifecycle.Action {
	arity := fnValue.ToObject(r.vm).Get("length").ToInteger()
	wantsDone := arity > int64(len(bound))

	return func(ctx context.Context) error {
		inv := newInvocation()
		if err := r.loop.submit(func() {
			if ctx.Err() != nil || !r.enter(inv) {
				return
			}
			defer r.leave()
			r.invoke(fn, bound, wantsDone, func(err error) { inv.settle(err) })
		}); err != nil {
			return err
		}

		select {
		case err := <-inv.settled:
			return err
		case <-ctx.Done():
			r.interrupt(inv, ctx.Err())
			return ctx.Err()
		}
	}
}

// guard wraps a scheduled callback so it runs on behalf of the invocation
// that scheduled it. It must be called on the loop.
func (r *Runtime) guard(source string, fn goja.Callable) func(goja.FunctionCall) goja.Value {
	owner := r.owner()
	return func(call goja.FunctionCall) goja.Value {
		if owner != nil && owner.cancelled.Load() {
			return goja.Undefined()
		}
		if r.owner() == nil {
			if !r.enter(owner) {
				return goja.Undefined()
			}
			defer r.leave()
		}
		if _, err := fn(goja.Undefined(), call.Arguments...); err != nil {
			r.uncaught(source, owner, err)
		}
		return goja.Undefined()
	}
}

// uncaught fails owner with an exception thrown outside its own call.
func (r *Runtime) uncaught(source string, owner *invocation, err error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return
	}
	cause := jsError(err)
	r.console.appendLine(fmt.Sprintf("[ERROR] uncaught error in %s: %s", source, cause))
	if owner != nil && owner.settle(cause) {
		return
	}
	r.log.Warn("uncaught error after its step finished",
		zap.String("file", r.filename), zap.String("source", source), zap.Error(cause))
}

// invoke calls fn and reports how it settled. It runs on the loop.
func (r *Runtime) invoke(fn goja.Callable, bound []goja.Value, wantsDone bool, settle func(error)) {
	args := append([]goja.Value(nil), bound...)
	if wantsDone {
		args = append(args, r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			arg := call.Argument(0)
			if goja.IsUndefined(arg) || goja.IsNull(arg) {
				settle(nil)
			} else {
				settle(valueError(arg))
			}
			return goja.Undefined()
		}))
	}

	ret, err := fn(goja.Undefined(), args...)
	if err != nil {
		settle(jsError(err))
		return
	}

	promise, isPromise := exportPromise(ret)
	thenable := isPromise || r.isThenable(ret)
	if wantsDone {
		if thenable {
			settle(types.ErrDoneAndPromise)
		}
		return
	}
	if !thenable {
		settle(nil)
		return
	}
	if !isPromise {
		r.onSettled(ret, settle)
		return
	}

	switch promise.State() {
	case goja.PromiseStateFulfilled:
		settle(nil)
	case goja.PromiseStateRejected:
		settle(valueError(promise.Result()))
	default:
		r.onSettled(ret, settle)
	}
}

func exportPromise(v goja.Value) (*goja.Promise, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	p, ok := v.Export().(*goja.Promise)
	return p, ok
}

// isThenable reports whether v is an object with a callable then.
func (r *Runtime) isThenable(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	_, ok = goja.AssertFunction(obj.Get("then"))
	return ok
}

// onSettled attaches settle to a pending promise.
func (r *Runtime) onSettled(promise goja.Value, settle func(error)) {
	obj := promise.ToObject(r.vm)
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		settle(nil)
		return
	}
	onFulfilled := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
		settle(nil)
		return goja.Undefined()
	})
	onRejected := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		settle(valueError(call.Argument(0)))
		return goja.Undefined()
	})
	if _, err := then(obj, onFulfilled, onRejected); err != nil {
		settle(jsError(err))
	}
}
