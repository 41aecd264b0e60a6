// Package reload runs the periodic best-effort refresh every listener
// ticks on its own timer: reloading the enabled contract set without
// restarting the listener.
package reload

import (
	"context"
	"time"

	"chainindexer/shared/logger"
)

// Func refreshes whatever state a listener keeps in sync with the
// config store. A returned error is logged and retried on the next
// tick; it never stops the loop.
type Func func(ctx context.Context) error

// Loop runs fn every interval until ctx is cancelled. name identifies
// the owning listener in log lines.
func Loop(ctx context.Context, interval time.Duration, log logger.Logger, name string, fn Func) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil && log != nil {
				log.Warn("%s: reload failed, retrying next tick: %v", name, err)
			}
		}
	}
}
