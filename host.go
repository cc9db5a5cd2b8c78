package onset

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
)

// Controller is the part of a Service a host drives. It maps onto the start
// and stop requests of an OS service manager.
type Controller interface {
	Name() string
	Start() error
	Stop()
	Dispose()
	Done() <-chan struct{}
}

// Host runs a set of services as a single unit.
type Host struct {
	services []Controller
	logger   Logger
	// Signals defines the signals stopping the host (default: syscall.SIGINT,
	// syscall.SIGTERM).
	Signals []os.Signal
}

// NewHost creates a Host for the provided services. If logger is nil, the
// host events are discarded.
func NewHost(logger Logger, services ...Controller) *Host {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Host{
		services: services,
		logger:   logger,
		Signals:  []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Start starts every service. Services failing to start are reported in the
// returned error; the others keep running.
func (h *Host) Start() error {
	var result error
	for _, s := range h.services {
		if err := s.Start(); err != nil {
			result = multierror.Append(result, fmt.Errorf("start %s: %w", s.Name(), err))
		}
	}
	return result
}

// Stop signals every service to stop.
func (h *Host) Stop() {
	for _, s := range h.services {
		s.Stop()
	}
}

// Dispose disposes every service.
func (h *Host) Dispose() {
	for _, s := range h.services {
		s.Dispose()
	}
}

// Run starts the services and blocks until ctx is done, one of the signals
// is received or every worker has returned. The services are then stopped
// and disposed. The returned error is the one of Start, if any.
func (h *Host) Run(ctx context.Context) error {
	startErr := h.Start()
	if startErr != nil {
		h.logger.Error(startErr, "some services failed to start")
	}

	sc := make(chan os.Signal, 1)
	if len(h.Signals) > 0 {
		signal.Notify(sc, h.Signals...)
		defer signal.Stop(sc)
	}

	select {
	case <-ctx.Done():
		h.logger.Info("context done")
	case sig := <-sc:
		h.logger.Info("received signal", "signal", sig.String())
	case <-h.allDone():
		h.logger.Info("all workers returned")
	}

	h.Stop()
	h.Dispose()
	return startErr
}

// allDone returns a chan closed once every service is done.
func (h *Host) allDone() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		for _, s := range h.services {
			<-s.Done()
		}
	}()
	return ch
}
