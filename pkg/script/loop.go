package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	goeventloop "github.com/joeycumines/go-eventloop"
	gojaeventloop "github.com/joeycumines/goja-eventloop"
)

var errLoopClosed = errors.New("event loop closed")

const loopStopTimeout = time.Second

// loopRunner is the part of the go-eventloop API the runtime drives.
type loopRunner interface {
	Submit(task func()) error
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// eventLoop owns the goroutine every VM call runs on. Timers, intervals and
// microtasks come from the goja adapter bound to the VM.
type eventLoop struct {
	loop    loopRunner
	cancel  context.CancelFunc
	stopped chan struct{}
	started bool
	once    sync.Once
}

// newEventLoop binds the loop globals into vm. The loop does not run until
// start, so the caller may still touch vm directly.
func newEventLoop(vm *goja.Runtime) (*eventLoop, error) {
	loop, err := goeventloop.New()
	if err != nil {
		return nil, fmt.Errorf("create event loop: %w", err)
	}
	l := &eventLoop{loop: loop, stopped: make(chan struct{})}

	adapter, err := gojaeventloop.New(loop, vm)
	if err != nil {
		l.close()
		return nil, fmt.Errorf("create loop adapter: %w", err)
	}

	// test bodies and hooks are settled through goja's own promises
	promise := vm.Get("Promise")
	if err := adapter.Bind(); err != nil {
		l.close()
		return nil, fmt.Errorf("bind loop globals: %w", err)
	}
	if promise != nil {
		if err := vm.Set("Promise", promise); err != nil {
			l.close()
			return nil, fmt.Errorf("restore Promise: %w", err)
		}
	}
	return l, nil
}

func (l *eventLoop) start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.started = true
	go func() {
		defer close(l.stopped)
		_ = l.loop.Run(ctx)
	}()
}

// submit queues job onto the loop.
func (l *eventLoop) submit(job func()) error {
	select {
	case <-l.stopped:
		return errLoopClosed
	default:
	}
	if err := l.loop.Submit(job); err != nil {
		return fmt.Errorf("%w: %v", errLoopClosed, err)
	}
	return nil
}

// do runs job on the loop and waits for it.
func (l *eventLoop) do(job func()) error {
	finished := make(chan struct{})
	if err := l.submit(func() {
		defer close(finished)
		job()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.stopped:
		return errLoopClosed
	}
}

// close stops the loop, dropping timers that have not fired.
func (l *eventLoop) close() {
	l.once.Do(func() {
		if l.started {
			l.cancel()
			select {
			case <-l.stopped:
			case <-time.After(loopStopTimeout):
			}
		} else {
			close(l.stopped)
		}
		ctx, cancel := context.WithTimeout(context.Background(), loopStopTimeout)
		defer cancel()
		_ = l.loop.Shutdown(ctx)
	})
}
