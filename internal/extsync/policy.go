// Package extsync keeps a local mirror of an externally-hosted auction's bid
// state fresh, polling the external source at a cadence proportional to how
// close the auction is to ending.
package extsync

import "time"

// Poll intervals per urgency tier.
const (
	intervalFinal  = 5 * time.Second  // under 2 minutes remaining
	intervalClose  = 15 * time.Second // under 10 minutes
	intervalNear   = 30 * time.Second // under 1 hour
	intervalIdle   = 60 * time.Second // an hour or more out
)

// PollInterval returns the poll interval for the given remaining time until
// auction end. Zero means stop polling: the auction is over. Pure function;
// callers recompute it on every tick because remaining time shrinks
// independent of poll cadence.
func PollInterval(remaining time.Duration) time.Duration {
	switch {
	case remaining <= 0:
		return 0
	case remaining < 2*time.Minute:
		return intervalFinal
	case remaining < 10*time.Minute:
		return intervalClose
	case remaining < time.Hour:
		return intervalNear
	default:
		return intervalIdle
	}
}
