package onset

import (
	"os/exec"
)

// Command returns a Process for the named program. The process is killed
// when the service is disposed.
func (w *Worker) Command(name string, arg ...string) *Process {
	p := NewProcess(exec.CommandContext(w.killCtx, name, arg...))
	p.DrainTimeout = w.opts.DrainTimeout
	return p
}

// Shell returns a Process running line through the system shell. The output
// of such a process is not captured.
func (w *Worker) Shell(line string) *Process {
	name, args := shellArgs(line)
	p := w.Command(name, args...)
	p.UseShell = true
	return p
}

// PrepareBeforeStart configures p before it is started. A process not
// executed through the shell gets a hidden window and both of its streams
// redirected to the log, stdout lines at info level and stderr lines at error
// level. A shell process only gets its window hidden.
func (w *Worker) PrepareBeforeStart(p *Process) error {
	p.HideWindow = true
	if p.UseShell {
		return nil
	}

	p.RedirectStderr = true
	p.OnStderr = func(line string) {
		w.Log().Error(nil, "InnerProcess error", "line", line)
	}
	p.RedirectStdout = true
	p.OnStdout = func(line string) {
		w.Log().Info("InnerProcess output", "line", line)
	}
	return p.openPipes()
}

// AttachAfterStart begins the asynchronous reads of the redirected streams of
// a started process. Failures are counted and ignored.
func (w *Worker) AttachAfterStart(p *Process) {
	if p.RedirectStdout {
		w.ignore(FaultAttach, p.BeginOutputRead())
	}
	if p.RedirectStderr {
		w.ignore(FaultAttach, p.BeginErrorRead())
	}
}

// DetachAfterExit cancels the asynchronous reads of the redirected streams.
// It is safe to call on a process that was never started or never attached.
// Failures are counted and ignored.
func (w *Worker) DetachAfterExit(p *Process) {
	if p.RedirectStderr {
		w.ignore(FaultDetach, p.CancelErrorRead())
	}
	if p.RedirectStdout {
		w.ignore(FaultDetach, p.CancelOutputRead())
	}
}

// RunProcess prepares, starts, attaches, waits for and detaches p. It returns
// the start or exit error of the process.
func (w *Worker) RunProcess(p *Process) error {
	if err := w.PrepareBeforeStart(p); err != nil {
		return err
	}
	defer w.DetachAfterExit(p)

	if err := p.Start(); err != nil {
		return err
	}
	w.metrics.processStarted(w.Name())
	w.AttachAfterStart(p)

	err := p.Wait()
	w.metrics.processExited(w.Name(), err)
	return err
}

// ignore records an output capture fault. These faults are expected under
// races with the process exit, so they are logged at info level only.
func (w *Worker) ignore(kind string, err error) {
	if err == nil {
		return
	}
	w.metrics.fault(w.Name(), kind)
	w.Log().Info("ignored process stream fault", "kind", kind, "error", err.Error())
}
