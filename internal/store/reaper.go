// internal/store/reaper.go
//
// Background sweep that drops idle sessions.

package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunReaper calls Reap every interval, dropping sessions idle for longer
// than idle, until ctx is done. An idle of zero disables reaping.
func RunReaper(ctx context.Context, s Store, idle, interval time.Duration, now func() time.Time) {
	if idle <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Reap(ctx, now().Add(-idle))
			if err != nil {
				log.Warn().Err(err).Msg("reap sessions")
				continue
			}
			if n > 0 {
				log.Debug().Int("dropped", n).Int("live", s.Len()).Msg("reaped idle sessions")
			}
		}
	}
}
