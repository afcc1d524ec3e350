package script

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/dop251/goja"

	"yqhp/hookrunner/pkg/lifecycle"
	"yqhp/hookrunner/pkg/types"
)

// install registers the test globals. It runs before the loop starts.
func (r *Runtime) install() error {
	if err := r.console.install(r.vm); err != nil {
		return err
	}

	describe, err := r.function(r.describeFunc(types.ModeNormal), map[string]func(goja.FunctionCall) goja.Value{
		"only": r.describeFunc(types.ModeFocused),
		"skip": r.describeFunc(types.ModeSkipped),
	})
	if err != nil {
		return err
	}

	testMembers := func() map[string]func(goja.FunctionCall) goja.Value {
		return map[string]func(goja.FunctionCall) goja.Value{
			"only": r.testFunc(types.ModeFocused),
			"skip": r.testFunc(types.ModeSkipped),
			"todo": r.testFunc(types.ModeTodo),
			"each": r.eachFunc,
		}
	}
	test, err := r.function(r.testFunc(types.ModeNormal), testMembers())
	if err != nil {
		return err
	}
	it, err := r.function(r.testFunc(types.ModeNormal), testMembers())
	if err != nil {
		return err
	}

	globals := map[string]any{
		"describe":   describe,
		"fdescribe":  r.describeFunc(types.ModeFocused),
		"xdescribe":  r.describeFunc(types.ModeSkipped),
		"test":       test,
		"it":         it,
		"fit":        r.testFunc(types.ModeFocused),
		"xit":        r.testFunc(types.ModeSkipped),
		"xtest":      r.testFunc(types.ModeSkipped),
		"beforeAll":  r.hookFunc(types.HookBeforeAll),
		"afterAll":   r.hookFunc(types.HookAfterAll),
		"beforeEach": r.hookFunc(types.HookBeforeEach),
		"afterEach":  r.hookFunc(types.HookAfterEach),
	}
	for name, value := range globals {
		if err := r.vm.Set(name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return r.wrapSchedulers()
}

// schedulers maps the loop globals taking a callback to the name used when
// that callback throws.
var schedulers = map[string]string{
	"setTimeout":     "timer",
	"setInterval":    "timer",
	"setImmediate":   "timer",
	"queueMicrotask": "microtask",
}

// wrapSchedulers routes the callbacks of the bound loop globals through guard.
func (r *Runtime) wrapSchedulers() error {
	for name, source := range schedulers {
		orig, ok := goja.AssertFunction(r.vm.Get(name))
		if !ok {
			continue
		}
		name, source := name, source
		err := r.vm.Set(name, func(call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				r.throw("%s: callback must be a function", name)
			}
			args := append([]goja.Value{r.vm.ToValue(r.guard(source, fn))}, call.Arguments[1:]...)
			ret, err := orig(goja.Undefined(), args...)
			if err != nil {
				r.rethrow(err)
			}
			return ret
		})
		if err != nil {
			return fmt.Errorf("wrap %s: %w", name, err)
		}
	}
	return nil
}

// function builds a callable JS object carrying members such as only and skip.
func (r *Runtime) function(call func(goja.FunctionCall) goja.Value, members map[string]func(goja.FunctionCall) goja.Value) (*goja.Object, error) {
	obj := r.vm.ToValue(call).ToObject(r.vm)
	for name, member := range members {
		if err := obj.Set(name, member); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (r *Runtime) describeFunc(mode types.Mode) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		body, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			r.throw("describe %q: second argument must be a function", name)
		}

		parent := r.current()
		declare := parent.Describe
		switch mode {
		case types.ModeFocused:
			declare = parent.DescribeOnly
		case types.ModeSkipped:
			declare = parent.DescribeSkip
		}

		var bodyErr error
		declare(name, func(g *lifecycle.GroupBuilder) {
			r.stack = append(r.stack, g)
			defer func() { r.stack = r.stack[:len(r.stack)-1] }()
			_, bodyErr = body(goja.Undefined())
		}, r.location()...)

		if bodyErr != nil {
			r.rethrow(bodyErr)
		}
		return goja.Undefined()
	}
}

func (r *Runtime) testFunc(mode types.Mode) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		gb := r.current()
		opts := r.location()

		if mode == types.ModeTodo {
			if len(call.Arguments) > 1 {
				r.throw("todo %q must be called with only a description", name)
			}
			gb.TestTodo(name, opts...)
			return goja.Undefined()
		}

		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			if mode == types.ModeSkipped {
				gb.TestSkip(name, nil, opts...)
				return goja.Undefined()
			}
			r.throw("test %q: missing second argument, it must be a callback function", name)
		}

		opts = append(opts, timeoutArg(call.Argument(2))...)
		r.declareTest(gb, mode, name, r.action(call.Argument(1), fn, nil), opts)
		return goja.Undefined()
	}
}

func (r *Runtime) declareTest(gb *lifecycle.GroupBuilder, mode types.Mode, name string, action lifecycle.Action, opts []lifecycle.DeclOption) {
	switch mode {
	case types.ModeFocused:
		gb.TestOnly(name, action, opts...)
	case types.ModeSkipped:
		gb.TestSkip(name, action, opts...)
	default:
		gb.Test(name, action, opts...)
	}
}

func (r *Runtime) hookFunc(kind types.HookKind) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			r.throw("%s: first argument must be a callback function", kind)
		}
		opts := append(r.location(), timeoutArg(call.Argument(1))...)
		r.current().Hook(kind, r.action(call.Argument(0), fn, nil), opts...)
		return goja.Undefined()
	}
}

// eachFunc implements test.each(table)(name, fn, timeout).
func (r *Runtime) eachFunc(call goja.FunctionCall) goja.Value {
	table := call.Argument(0)
	rows := r.rows(table)
	if rows == nil {
		r.throw("each: argument must be an array of rows")
	}

	return r.vm.ToValue(func(inner goja.FunctionCall) goja.Value {
		name := inner.Argument(0).String()
		fn, ok := goja.AssertFunction(inner.Argument(1))
		if !ok {
			r.throw("each %q: missing second argument, it must be a callback function", name)
		}
		gb := r.current()
		for i, args := range rows {
			opts := append(r.location(), timeoutArg(inner.Argument(2))...)
			gb.Test(formatEachName(name, i, args), r.action(inner.Argument(1), fn, args), opts...)
		}
		return goja.Undefined()
	})
}

// rows splits an each table into argument lists. Array rows are spread.
func (r *Runtime) rows(table goja.Value) [][]goja.Value {
	obj, ok := table.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil
	}
	n := int(obj.Get("length").ToInteger())
	out := make([][]goja.Value, 0, n)
	for i := 0; i < n; i++ {
		row := obj.Get(strconv.Itoa(i))
		if rowObj, ok := row.(*goja.Object); ok && rowObj.ClassName() == "Array" {
			m := int(rowObj.Get("length").ToInteger())
			args := make([]goja.Value, m)
			for j := range args {
				args[j] = rowObj.Get(strconv.Itoa(j))
			}
			out = append(out, args)
			continue
		}
		out = append(out, []goja.Value{row})
	}
	return out
}

var eachPlaceholder = regexp.MustCompile(`%[sdifjop%#]`)

// formatEachName fills printf-style placeholders of a test.each title.
func formatEachName(name string, index int, args []goja.Value) string {
	next := 0
	return eachPlaceholder.ReplaceAllStringFunc(name, func(p string) string {
		switch p {
		case "%%":
			return "%"
		case "%#":
			return strconv.Itoa(index)
		}
		if next >= len(args) {
			return p
		}
		arg := args[next]
		next++
		if p == "%d" || p == "%i" {
			return strconv.FormatInt(arg.ToInteger(), 10)
		}
		s := formatValue(arg)
		if p == "%p" && isString(arg) {
			return strconv.Quote(s)
		}
		return s
	})
}

func isString(v goja.Value) bool {
	_, ok := v.Export().(string)
	return ok
}

// rethrow raises err from a native function.
func (r *Runtime) rethrow(err error) {
	if exc, ok := err.(*goja.Exception); ok {
		panic(exc.Value())
	}
	panic(r.vm.NewGoError(err))
}
