package worker

import (
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
)

// Backoff returns the delay before retrying after the given number of attempts.
func Backoff(base, max time.Duration, attempts int) time.Duration {
	d := backoff.Exponential(base, attempts-1)
	if max > 0 && d > max {
		d = max
	}

	return backoff.FullJitter(d)
}
