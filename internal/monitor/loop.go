// Package monitor runs the polling loops that feed the pipeline: the
// document watcher, the warehouse monitor and the retrain triggers.
package monitor

import (
	"context"
	"time"
)

// Loop calls fn immediately and then once per interval until ctx is done.
// A call that overruns the interval delays the next one; ticks are not queued.
// A non-positive interval runs fn once.
func Loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if ctx.Err() != nil {
		return
	}
	fn(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
