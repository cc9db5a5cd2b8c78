// Package command provides the runners executing the configured command of a
// service: once (launch mode) or on a cron schedule (interval mode).
package command

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"go.tickamp.dev/onset"
	"go.tickamp.dev/onset/internal/config"
)

// New returns the runner of the configured service.
func New(svc config.Service) (onset.Runner, error) {
	switch svc.Mode {
	case config.ModeLaunch, "":
		return &Launch{svc: svc}, nil
	case config.ModeInterval:
		schedule, err := cron.ParseStandard(svc.Schedule)
		if err != nil {
			return nil, fmt.Errorf("parse schedule: %w", err)
		}
		return &Interval{svc: svc, schedule: schedule, now: time.Now}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", svc.Mode)
	}
}

// Launch runs the command once. Stop does not interrupt the command; the
// runner returns when it exits.
type Launch struct {
	svc config.Service
}

func (l *Launch) RunLoop(ctx context.Context, w *onset.Worker) error {
	if err := w.RunProcess(process(w, l.svc)); err != nil {
		return fmt.Errorf("run %s: %w", l.svc.Command, err)
	}
	w.Log().Info("command completed")
	return nil
}

// Interval runs the command at each activation of its schedule. A failing
// run is logged and does not end the runner.
type Interval struct {
	svc      config.Service
	schedule cron.Schedule
	now      func() time.Time
}

func (i *Interval) RunLoop(ctx context.Context, w *onset.Worker) error {
	for w.Running() {
		next := i.schedule.Next(i.now())
		if next.IsZero() {
			w.Log().Info("schedule never activates, waiting for stop")
			for w.Sleep(time.Hour) {
			}
			return nil
		}
		if !w.Sleep(next.Sub(i.now())) {
			return nil
		}
		if err := w.RunProcess(process(w, i.svc)); err != nil {
			w.Log().Error(err, "command failed", "next", i.schedule.Next(i.now()).String())
		}
	}
	return nil
}

func process(w *onset.Worker, svc config.Service) *onset.Process {
	var p *onset.Process
	if svc.UseShell {
		p = w.Shell(strings.Join(append([]string{svc.Command}, svc.Args...), " "))
	} else {
		p = w.Command(svc.Command, svc.Args...)
	}
	p.Cmd.Dir = svc.WorkingDir
	if len(svc.Env) > 0 {
		p.Cmd.Env = append(os.Environ(), svc.Env...)
	}
	return p
}
