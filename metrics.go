package onset

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fault kinds recorded by Metrics. These faults are swallowed by the service
// and only surface through the log and these counters.
const (
	FaultRunLoop  = "run_loop"
	FaultAttach   = "attach"
	FaultDetach   = "detach"
	FaultDispose  = "dispose"
	FaultObserver = "observer"
)

// Metrics collects prometheus telemetry for services. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	state     *prometheus.GaugeVec
	faults    *prometheus.CounterVec
	processes *prometheus.CounterVec
	exits     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "onset",
				Subsystem: "service",
				Name:      "state",
				Help:      "Current state of the service (0=constructed, 1=running, 2=stopping, 3=disposed)",
			},
			[]string{"service"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "onset",
				Name:      "faults_total",
				Help:      "Swallowed faults by kind (run_loop, attach, detach, dispose, observer)",
			},
			[]string{"service", "kind"},
		),
		processes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "onset",
				Subsystem: "process",
				Name:      "started_total",
				Help:      "Child processes started by the service worker",
			},
			[]string{"service"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "onset",
				Subsystem: "process",
				Name:      "exited_total",
				Help:      "Child processes exited, by result (success, failure)",
			},
			[]string{"service", "result"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.state, m.faults, m.processes, m.exits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setState(service string, s State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(service).Set(float64(s))
}

func (m *Metrics) fault(service, kind string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(service, kind).Inc()
}

func (m *Metrics) processStarted(service string) {
	if m == nil {
		return
	}
	m.processes.WithLabelValues(service).Inc()
}

func (m *Metrics) processExited(service string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.exits.WithLabelValues(service, result).Inc()
}
