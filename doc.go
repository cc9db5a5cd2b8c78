// Package onset hosts a background worker inside a long-running service
// process.
//
// A Service owns exactly one worker goroutine running a Runner. The host
// calls Start and Stop, mapped to the start and stop requests of the OS
// service manager, and Dispose on the way out:
//
//     svc, err := onset.NewService(onset.NewIdentity("svc1", true),
//         onset.Loop(time.Second, func(ctx context.Context, w *onset.Worker) error {
//             return w.RunProcess(w.Command("backup", "--incremental"))
//         }), nil)
//     if err != nil {
//         return err
//     }
//     defer svc.Dispose()
//     if err := svc.Start(); err != nil {
//         return err
//     }
//
// Stop is cooperative: it clears the running flag and cancels the context
// given to RunLoop, which is expected to return soon after. Dispose kills the
// child processes created through the Worker, waits a bounded amount of time
// for the worker goroutine and releases the logger. If the owner forgets to
// call Dispose, a finalizer releases the service once it is unreachable.
//
// Child process output is captured into the service log by bracketing the
// process lifetime:
//
//     p := w.Command("rsync", "-a", src, dst)
//     w.PrepareBeforeStart(p)
//     p.Start()
//     w.AttachAfterStart(p)
//     p.Wait()
//     w.DetachAfterExit(p)
//
// RunProcess does exactly this. Output capture is best effort: a failure to
// begin or cancel a read is counted and ignored.
//
// A Host runs several services as a single unit and handles termination
// signals.
package onset
