package onset

import "context"

// Runner is the work executed by a Service on its worker goroutine.
//
// RunLoop must check w.Running() or ctx.Done() at suitable points and return
// promptly once the service is stopped. A returned error or a panic is logged
// and ends the worker; it never reaches the host.
type Runner interface {
	RunLoop(ctx context.Context, w *Worker) error
}

// RunFunc adapts a plain function to a Runner.
type RunFunc func(ctx context.Context, w *Worker) error

// RunLoop calls f(ctx, w).
func (f RunFunc) RunLoop(ctx context.Context, w *Worker) error {
	return f(ctx, w)
}

// LineFunc receives a single line read from a child process stream, without
// the trailing newline.
type LineFunc = func(line string)
