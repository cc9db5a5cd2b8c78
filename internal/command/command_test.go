package command

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.tickamp.dev/onset"
	"go.tickamp.dev/onset/internal/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
}

func newService(t *testing.T, svc config.Service, runner onset.Runner) (*onset.Service, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	s, err := onset.NewService(svc, runner, &onset.Options{LogOutput: out})
	require.NoError(t, err)
	t.Cleanup(s.Dispose)
	return s, out
}

func TestNew(t *testing.T) {
	r, err := New(config.Service{Mode: config.ModeLaunch})
	require.NoError(t, err)
	assert.IsType(t, &Launch{}, r)

	r, err = New(config.Service{Mode: config.ModeInterval, Schedule: "@hourly"})
	require.NoError(t, err)
	assert.IsType(t, &Interval{}, r)

	_, err = New(config.Service{Mode: config.ModeInterval, Schedule: "sometimes"})
	assert.Error(t, err)

	_, err = New(config.Service{Mode: "daemon"})
	assert.Error(t, err)
}

func TestLaunch(t *testing.T) {
	requireShell(t)
	svc := config.Service{
		ServiceName: "launch",
		Command:     "sh",
		Args:        []string{"-c", "echo $GREETING; pwd"},
		WorkingDir:  t.TempDir(),
		Env:         []string{"GREETING=hello"},
	}
	runner, err := New(svc)
	require.NoError(t, err)
	s, out := newService(t, svc, runner)

	require.NoError(t, s.Start())
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("launch did not return")
	}
	logs := out.String()
	assert.Contains(t, logs, `"line":"hello"`)
	assert.Contains(t, logs, `"line":"`+svc.WorkingDir)
	assert.Contains(t, logs, `"message":"command completed"`)
}

func TestLaunchFailure(t *testing.T) {
	svc := config.Service{ServiceName: "broken", Command: "does-not-exist-onset"}
	runner, err := New(svc)
	require.NoError(t, err)
	s, out := newService(t, svc, runner)

	require.NoError(t, s.Start())
	<-s.Done()
	assert.Equal(t, onset.Stopping, s.State())
	assert.Contains(t, out.String(), `"message":"run loop failed"`)
}

// fastSchedule activates every millisecond.
type fastSchedule struct{}

func (fastSchedule) Next(t time.Time) time.Time { return t.Add(time.Millisecond) }

func TestInterval(t *testing.T) {
	requireShell(t)
	svc := config.Service{
		ServiceName: "interval",
		Mode:        config.ModeInterval,
		Command:     "sh",
		Args:        []string{"-c", "echo tick"},
	}
	runner := &Interval{svc: svc, schedule: fastSchedule{}, now: time.Now}
	s, out := newService(t, svc, runner)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), `"line":"tick"`) >= 3
	}, 5*time.Second, 10*time.Millisecond)

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("interval did not return after Stop")
	}
}

// neverSchedule never activates, as "0 0 30 2 *" does.
type neverSchedule struct{}

func (neverSchedule) Next(time.Time) time.Time { return time.Time{} }

func TestIntervalNeverActivates(t *testing.T) {
	requireShell(t)
	svc := config.Service{
		ServiceName: "never",
		Mode:        config.ModeInterval,
		Command:     "sh",
		Args:        []string{"-c", "echo tick"},
	}
	runner := &Interval{svc: svc, schedule: neverSchedule{}, now: time.Now}
	s, out := newService(t, svc, runner)

	require.NoError(t, s.Start())
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Running())
	assert.NotContains(t, out.String(), `"line":"tick"`)
	assert.Contains(t, out.String(), `"message":"schedule never activates, waiting for stop"`)

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("interval did not return after Stop")
	}
}

func TestIntervalStopsWhileWaiting(t *testing.T) {
	svc := config.Service{ServiceName: "idle", Mode: config.ModeInterval,
		Command: "true", Schedule: "@yearly"}
	runner, err := New(svc)
	require.NoError(t, err)
	s, _ := newService(t, svc, runner)

	require.NoError(t, s.Start())
	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("interval did not return after Stop")
	}
}

func TestShellProcess(t *testing.T) {
	requireShell(t)
	svc := config.Service{ServiceName: "shell", Command: "echo", Args: []string{"quiet"}, UseShell: true}
	runner, err := New(svc)
	require.NoError(t, err)
	s, out := newService(t, svc, runner)

	require.NoError(t, s.Start())
	<-s.Done()
	assert.NotContains(t, out.String(), `"line":"quiet"`)
	assert.Contains(t, out.String(), `"message":"command completed"`)
}

func TestProcessBuild(t *testing.T) {
	var got *onset.Process
	svc := config.Service{ServiceName: "build", Command: "ls", Args: []string{"-l"}, WorkingDir: "/tmp"}
	s, _ := newService(t, svc, onset.RunFunc(func(ctx context.Context, w *onset.Worker) error {
		got = process(w, svc)
		return nil
	}))
	require.NoError(t, s.Start())
	<-s.Done()

	require.NotNil(t, got)
	assert.False(t, got.UseShell)
	assert.Equal(t, "/tmp", got.Cmd.Dir)
	assert.Equal(t, []string{"ls", "-l"}, got.Cmd.Args)
	assert.Nil(t, got.Cmd.Env)
}
