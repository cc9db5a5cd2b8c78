package onset

import (
	"context"
	"time"
)

// Loop returns a Runner calling fn every interval, starting immediately, until
// the service is stopped or fn returns an error.
func Loop(interval time.Duration, fn func(ctx context.Context, w *Worker) error) Runner {
	return RunFunc(func(ctx context.Context, w *Worker) error {
		for w.Running() {
			if err := fn(ctx, w); err != nil {
				return err
			}
			if !w.Sleep(interval) {
				break
			}
		}
		return nil
	})
}
