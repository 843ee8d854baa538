package runner

import (
	"context"
	"time"

	"fraudload/internal/scenario"
)

// Schedule fires one trigger per arrival of sc, measured from start. It
// never waits for request completion. When it falls behind, overdue
// arrivals fire immediately rather than being skipped. It returns nil once
// the last arrival fired, or ctx.Err() if cancelled first.
func Schedule(ctx context.Context, sc scenario.Config, start time.Time, fire func(Trigger)) error {
	arrivals := sc.Arrivals()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		off, stage, ok := arrivals.Next()
		if !ok {
			return nil
		}

		at := start.Add(off)
		if wait := time.Until(at); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		fire(Trigger{Scheduled: at, Stage: stage})
	}
}
