package watch

import (
	"math/rand/v2"
	"time"
)

// Band is a randomized sleep range. Picking uniformly inside the band keeps
// concurrent watchers from synchronizing their requests.
type Band struct {
	Min time.Duration
	Max time.Duration
}

func (b Band) pick() time.Duration {
	if b.Max <= b.Min {
		return b.Min
	}
	return b.Min + time.Duration(rand.Int64N(int64(b.Max-b.Min)))
}

var (
	// Cycle cadence for the continuous re-scan, keyed off the set of
	// currently tracked statuses.
	defaultHighPriorityBand = Band{Min: 10 * time.Second, Max: 20 * time.Second}
	defaultActionableBand   = Band{Min: 30 * time.Second, Max: 60 * time.Second}
	defaultQuietBand        = Band{Min: 60 * time.Second, Max: 120 * time.Second}
)
