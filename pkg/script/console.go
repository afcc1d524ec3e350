package script

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// console collects lines written through the JS console object.
type console struct {
	mu    sync.Mutex
	lines []string
	log   *zap.Logger
}

func (c *console) install(vm *goja.Runtime) error {
	obj := vm.NewObject()
	for name, level := range map[string]string{
		"log":   "LOG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"debug": "DEBUG",
	} {
		level := level
		if err := obj.Set(name, func(call goja.FunctionCall) goja.Value {
			c.append(level, call.Arguments)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return vm.Set("console", obj)
}

func (c *console) append(level string, args []goja.Value) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	c.appendLine(fmt.Sprintf("[%s] %s", level, strings.Join(parts, " ")))
}

func (c *console) appendLine(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()

	c.log.Debug("console", zap.String("line", line))
}

// Lines returns a copy of the captured lines.
func (c *console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// formatValue renders a JS value the way console.log would, roughly.
func formatValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) {
		return "undefined"
	}
	if goja.IsNull(val) {
		return "null"
	}

	exported := val.Export()
	switch v := exported.(type) {
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return val.String()
	}
}
