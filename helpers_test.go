package onset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Event observer
type eventObserver struct {
	events []Event
	ch     chan Event
	wg     sync.WaitGroup
}

func newEventObserver() *eventObserver {
	ch := make(chan Event)

	e := &eventObserver{
		ch: ch,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for event := range ch {
			e.events = append(e.events, event)
		}
	}()

	return e
}

// ObserverEvents waits for the observed service to be disposed.
func (e *eventObserver) ObserverEvents() []Event {
	e.wg.Wait()
	return e.events
}

func (e *eventObserver) ObserverEventSequence() []State {
	events := e.ObserverEvents()
	res := make([]State, len(events))
	for i, event := range events {
		res[i] = event.To
	}
	return res
}

// logRecorder captures the JSON events written by a ZeroLogger.
type logRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (r *logRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *logRecorder) entries(t *testing.T) []map[string]interface{} {
	r.mu.Lock()
	data := append([]byte(nil), r.buf.Bytes()...)
	r.mu.Unlock()

	var res []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		res = append(res, entry)
	}
	require.NoError(t, scanner.Err())
	return res
}

func (r *logRecorder) messages(t *testing.T) []string {
	var res []string
	for _, e := range r.entries(t) {
		res = append(res, e["message"].(string))
	}
	return res
}

// lines returns the "line" field of the entries with the given level and
// message.
func (r *logRecorder) lines(t *testing.T, level, msg string) []string {
	var res []string
	for _, e := range r.entries(t) {
		if e["level"] == level && e["message"] == msg {
			res = append(res, e["line"].(string))
		}
	}
	return res
}

type testService struct {
	*Service
	*eventObserver
	logs    *logRecorder
	metrics *Metrics
}

func newTestService(t *testing.T, name string, runner Runner, opts *Options) *testService {
	if opts == nil {
		opts = &Options{}
	}
	logs := &logRecorder{}
	opts.LogOutput = logs
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	opts.Metrics = m

	svc, err := NewService(NewIdentity(name, true), runner, opts)
	require.NoError(t, err)

	s := &testService{
		Service:       svc,
		eventObserver: newEventObserver(),
		logs:          logs,
		metrics:       m,
	}
	s.Observe(s.ch)
	t.Cleanup(s.Dispose)
	return s
}

// pollingRunner is a conformant RunLoop which polls the running flag.
func pollingRunner() Runner {
	return RunFunc(func(ctx context.Context, w *Worker) error {
		for w.Sleep(5 * time.Millisecond) {
		}
		return nil
	})
}
