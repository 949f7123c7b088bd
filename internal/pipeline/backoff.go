package pipeline

import (
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
)

// backoff tracks the reconnect delay. It doubles after every failed or short
// session and falls back to min once a session has streamed for resetAfter.
type backoff struct {
	min, max   time.Duration
	resetAfter time.Duration
	current    time.Duration
}

func newBackoff(minDelay, maxDelay, resetAfter time.Duration) *backoff {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &backoff{min: minDelay, max: maxDelay, resetAfter: resetAfter, current: minDelay}
}

// next returns the delay to wait now and advances the schedule.
func (b *backoff) next() time.Duration {
	d := b.current
	b.current = retry.NextBackoff(b.current, b.max)
	return d
}

// sessionEnded resets the schedule when the session lasted long enough to
// count as healthy.
func (b *backoff) sessionEnded(lasted time.Duration) {
	if b.resetAfter > 0 && lasted >= b.resetAfter {
		b.current = b.min
	}
}
