package onset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Messages logged on the control path.
const (
	msgStarted   = "InnerThread is started"
	msgSignalled = "InnerThread is signalled to stop"
)

var errDisposeTimeout = errors.New("worker did not exit before the dispose timeout")

// Event is passed to service observers on a state change.
type Event struct {
	// The error that caused this state change, if any.
	Error error
	// The previous state of the service.
	From State
	// The new state of the service.
	To State
}

// logBox keeps a single concrete type in an atomic.Value.
type logBox struct{ Logger }

// Worker is the execution handle of a Service. It is passed to RunLoop and
// exposes the running flag, the logger and the child process helpers.
type Worker struct {
	info    StartInfo
	runner  Runner
	opts    *Options
	metrics *Metrics

	logger atomic.Value
	closer io.Closer

	// Cooperative flag read by RunLoop
	running atomic.Bool
	// Cancelled by Stop and Dispose; passed to RunLoop
	stopCtx    context.Context
	stopCancel context.CancelFunc
	// Cancelled by Dispose only; kills child processes
	killCtx    context.Context
	killCancel context.CancelFunc

	// Current state
	state State
	// Enforces atomic state change
	mut sync.Mutex
	// Only the first Dispose has an effect
	disposeOnce sync.Once
	// Prevent against double close of the done chan
	unlockOnce sync.Once
	// Closed when the worker goroutine is done
	done chan struct{}
	// Observers
	observers []chan<- Event
}

func newWorker(info StartInfo, runner Runner, opts *Options, logger Logger,
	closer io.Closer) *Worker {
	w := &Worker{
		info:    info,
		runner:  runner,
		opts:    opts,
		metrics: opts.Metrics,
		closer:  closer,
		state:   Constructed,
		done:    make(chan struct{}),
	}
	w.logger.Store(logBox{logger})
	w.stopCtx, w.stopCancel = context.WithCancel(context.Background())
	w.killCtx, w.killCancel = context.WithCancel(context.Background())
	w.metrics.setState(info.Name(), Constructed)
	return w
}

// Name returns the service name.
func (w *Worker) Name() string {
	return w.info.Name()
}

// StartInfo returns the configuration the service was constructed with.
func (w *Worker) StartInfo() StartInfo {
	return w.info
}

// Log returns the service logger. After disposal it discards everything.
func (w *Worker) Log() Logger {
	return w.logger.Load().(logBox).Logger
}

// Running reports whether the service has not been asked to stop. RunLoop
// must return soon after it becomes false.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Sleep waits for d or until the service is stopped, whichever comes first,
// and reports whether the service is still running.
func (w *Worker) Sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-w.stopCtx.Done():
	}
	return w.Running()
}

func (w *Worker) start() error {
	if _, err := w.transition(Running, []State{Constructed}, nil,
		func() { w.running.Store(true) }); err != nil {
		return err
	}
	go w.run()
	w.Log().Info(msgStarted)
	return nil
}

func (w *Worker) stop() {
	if _, err := w.transition(Stopping, []State{Running}, nil,
		func() { w.running.Store(false) }); err != nil {
		return
	}
	w.stopCancel()
	w.Log().Info(msgSignalled)
}

// run is the body of the worker goroutine.
func (w *Worker) run() {
	defer w.unblockWaiters()

	err := w.runLoop()
	if err != nil && !errors.Is(err, context.Canceled) {
		w.metrics.fault(w.Name(), FaultRunLoop)
		w.Log().Error(err, "run loop failed")
	} else {
		err = nil
	}

	// The loop returned on its own, or after Stop in which case the state is
	// Stopping already and this is a no-op.
	w.transition(Stopping, []State{Running}, err,
		func() { w.running.Store(false) })
}

// runLoop converts panics to errors so that they never reach the host.
func (w *Worker) runLoop() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run loop panicked: %v", r)
		}
	}()
	return w.runner.RunLoop(w.stopCtx, w)
}

// dispose releases the worker. When disposing is false it is called from the
// finalizer: nobody can observe the service anymore, so it does not block and
// does not log.
func (w *Worker) dispose(disposing bool) {
	w.disposeOnce.Do(func() {
		w.mut.Lock()
		from := w.state
		w.state = Disposed
		w.running.Store(false)
		observers := w.observers
		w.observers = nil
		w.mut.Unlock()

		w.metrics.setState(w.Name(), Disposed)
		for _, observer := range observers {
			if disposing {
				w.notify(observer, Event{From: from, To: Disposed})
			}
			close(observer)
		}

		w.stopCancel()
		w.killCancel()

		if from == Constructed {
			w.unblockWaiters()
		} else if disposing {
			t := time.NewTimer(w.opts.DisposeTimeout)
			select {
			case <-w.done:
			case <-t.C:
				w.metrics.fault(w.Name(), FaultDispose)
				w.Log().Error(errDisposeTimeout, "abandoning worker",
					"timeout", w.opts.DisposeTimeout.String())
			}
			t.Stop()
		}

		if disposing {
			w.Log().Info("disposed")
		}
		w.logger.Store(logBox{nopLogger{}})
		if w.closer != nil {
			w.closer.Close()
			w.closer = nil
		}
	})
}

// Observe registers a chan on which the service will post state changes. The
// chan is closed once the service is disposed. No action is taken if ch is nil.
func (w *Worker) observe(ch chan<- Event) {
	if ch == nil {
		return
	}
	w.mut.Lock()
	defer w.mut.Unlock()
	if w.state == Disposed {
		close(ch)
		return
	}
	w.observers = append(w.observers, ch)
}

func (w *Worker) unobserve(ch chan<- Event) {
	w.mut.Lock()
	defer w.mut.Unlock()
	for i, o := range w.observers {
		if o == ch {
			w.observers = append(w.observers[:i], w.observers[i+1:]...)
			break
		}
	}
}

// notify posts event to observer. An observer that does not receive within
// the dispose timeout misses the event.
func (w *Worker) notify(observer chan<- Event, event Event) {
	t := time.NewTimer(w.opts.DisposeTimeout)
	defer t.Stop()
	select {
	case observer <- event:
	case <-t.C:
		w.metrics.fault(w.Name(), FaultObserver)
		w.Log().Info("observer not draining, event dropped", "to", event.To.String())
	}
}

// unblockWaiters unlocks the done chan. It is protected by a Once struct as
// both the worker goroutine and Dispose may close it.
func (w *Worker) unblockWaiters() {
	w.unlockOnce.Do(func() {
		close(w.done)
	})
}

// transition moves the service to a new state if the current state is one of
// allowedFromStates. apply runs under the state lock after the change. A
// disposed service never transitions. This function is thread-safe.
func (w *Worker) transition(to State, allowedFromStates []State, cause error,
	apply func()) (State, error) {
	w.mut.Lock()
	defer w.mut.Unlock()

	current := w.state
	if current == Disposed {
		return current, fmt.Errorf("cannot transition to %s: %w", to, errDisposed)
	}
	if !w.isStateOneOf(allowedFromStates) {
		return current, fmt.Errorf("cannot transition from %s to %s: %w",
			current, to, errInvalidState)
	}

	w.state = to
	if apply != nil {
		apply()
	}
	w.metrics.setState(w.Name(), to)

	event := Event{
		From:  current,
		To:    to,
		Error: cause,
	}
	for _, observer := range w.observers {
		w.notify(observer, event)
	}

	return current, nil
}

// isStateOneOf checks whether the current state is in the list of provided
// states. This function is not thread-safe.
func (w *Worker) isStateOneOf(states []State) bool {
	for _, state := range states {
		if w.state == state {
			return true
		}
	}
	return false
}

func (w *Worker) currentState() State {
	w.mut.Lock()
	defer w.mut.Unlock()
	return w.state
}
