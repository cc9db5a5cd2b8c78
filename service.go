package onset

import (
	"errors"
	"io"
	"runtime"
	"time"
)

// Options contains options for the service.
type Options struct {
	// LogOutput receives the log events of the service (default: console
	// writer on stderr).
	LogOutput io.Writer
	// LogDir, when not empty, also writes the events to <LogDir>/<name>.log.
	LogDir string
	// Logger replaces the logger built from LogOutput and LogDir. It is still
	// gated by StartInfo.EnableLog.
	Logger Logger
	// Metrics records state and swallowed faults. If nil, nothing is recorded.
	Metrics *Metrics
	// DisposeTimeout bounds how long Dispose waits for the worker goroutine
	// (default: 5 seconds).
	DisposeTimeout time.Duration
	// DrainTimeout bounds how long DetachAfterExit waits for buffered child
	// output to be read (default: 1 second).
	DrainTimeout time.Duration
}

func (o Options) copy() *Options {
	return &o
}

// Service runs a Runner on a single background goroutine. Start, Stop and
// Dispose are meant to be called by the host. The zero value is not usable;
// use NewService.
type Service struct {
	w *Worker
}

// NewService creates a Service for the provided start info and runner. The
// worker goroutine is not started. It returns an error if the logger cannot
// be created.
func NewService(info StartInfo, runner Runner, opts *Options) (*Service, error) {
	if info == nil || runner == nil {
		return nil, errors.New("start info and runner are required")
	}
	if opts == nil {
		opts = &Options{}
	}
	opts = opts.copy()
	if opts.DisposeTimeout == 0 {
		opts.DisposeTimeout = 5 * time.Second
	}
	if opts.DrainTimeout == 0 {
		opts.DrainTimeout = time.Second
	}

	var (
		logger Logger = nopLogger{}
		closer io.Closer
	)
	switch {
	case !info.EnableLog():
	case opts.Logger != nil:
		logger = opts.Logger
	default:
		zl, err := NewLogger(info.Name(), true, opts.LogOutput, opts.LogDir)
		if err != nil {
			return nil, err
		}
		logger, closer = zl, zl
	}

	s := &Service{w: newWorker(info, runner, opts, logger, closer)}
	// The worker goroutine only references s.w, so s becomes unreachable once
	// the host drops it even if the worker is still running.
	runtime.SetFinalizer(s, func(s *Service) { s.w.dispose(false) })
	return s, nil
}

// Name provides the service name, as used in the logs.
func (s *Service) Name() string {
	return s.w.Name()
}

// Start sets the running flag and starts the worker goroutine. It does not
// wait for the worker. Start may only be called once; further calls return an
// error satisfying IsInvalidState, or IsDisposed after Dispose.
func (s *Service) Start() error {
	return s.w.start()
}

// Stop clears the running flag and cancels the context passed to RunLoop. It
// does not wait for the worker. Stop is a no-op unless the service is running.
func (s *Service) Stop() {
	s.w.stop()
}

// Dispose stops the service, kills the child processes created through its
// Worker, waits for the worker goroutine up to the dispose timeout and
// releases the logger. Only the first call has an effect. Dispose never
// fails: a worker that does not exit in time is logged and abandoned.
func (s *Service) Dispose() {
	s.w.dispose(true)
	runtime.SetFinalizer(s, nil)
}

// Running reports the value of the running flag.
func (s *Service) Running() bool {
	return s.w.Running()
}

// State returns the current state of the service.
func (s *Service) State() State {
	return s.w.currentState()
}

// Done returns a chan that is closed when the worker goroutine has returned,
// or when a service that was never started is disposed.
func (s *Service) Done() <-chan struct{} {
	return s.w.done
}

// Observe registers a chan on which the service will post state changes. The
// chan is closed once the service is disposed. No action is taken if ch is
// nil. Events are posted synchronously: an observer must keep receiving, or
// it misses the events it does not take within the dispose timeout.
func (s *Service) Observe(ch chan<- Event) {
	s.w.observe(ch)
}

// Unobserve removes the provided chan from the list of observers. No action is
// taken if ch is nil or not in the list of observers.
func (s *Service) Unobserve(ch chan<- Event) {
	s.w.unobserve(ch)
}
