package hook

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// PanicError is the failure reported for a step that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// safeGo starts fn on a new goroutine and hands a recovered panic to onPanic.
func safeGo(log *zap.Logger, name string, fn func(), onPanic func(*PanicError)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				perr := &PanicError{Value: r, Stack: debug.Stack()}
				log.Debug("step panic recovered",
					zap.String("step", name),
					zap.Any("value", r),
					zap.ByteString("stack", perr.Stack))
				if onPanic != nil {
					onPanic(perr)
				}
			}
		}()
		fn()
	}()
}
