package syncqueue

import "time"

// MaxRetries is the hard retry cap. An item that fails this many times
// transitions to failed and stops auto-retrying until explicitly reset.
const MaxRetries = 5

// backoffSchedule is a fixed delay table indexed by retry count. Retry
// counts past the end of the table clamp to the last entry.
var backoffSchedule = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
}

// BackoffDelay returns the drain follow-up delay for the given retry
// count (1-based: the first failure has retryCount 1).
func BackoffDelay(retryCount int) time.Duration {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}
