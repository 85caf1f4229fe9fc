// Package schedule implements backlog pacing: releasing a podcast's
// historical episodes for download gradually instead of all at once.
package schedule

import "time"

// Backlog describes a podcast's drip feed. Episodes published at or
// after Start unlock one by one: the episode with rank k (0-indexed by
// ascending publish date among paced episodes) unlocks at
// Start + k*Interval. Episodes published before Start are not paced.
type Backlog struct {
	Start    time.Time
	Interval time.Duration
}

// New builds a Backlog from the configured start date and interval in
// days. Either value being unset yields an inactive Backlog.
func New(start time.Time, intervalDays int) Backlog {
	if start.IsZero() || intervalDays <= 0 {
		return Backlog{}
	}
	return Backlog{Start: start, Interval: time.Duration(intervalDays) * 24 * time.Hour}
}

// Active reports whether backlog pacing applies. An inactive Backlog
// imposes no restriction.
func (b Backlog) Active() bool {
	return !b.Start.IsZero() && b.Interval > 0
}

// Paced reports whether an episode published at pubdate is subject to
// pacing at all.
func (b Backlog) Paced(pubdate time.Time) bool {
	return b.Active() && !pubdate.Before(b.Start)
}

// UnlockTime returns the instant the episode with the given rank becomes
// downloadable.
func (b Backlog) UnlockTime(rank int) time.Time {
	return b.Start.Add(time.Duration(rank) * b.Interval)
}

// Unlocked reports whether the episode with the given rank is released
// at time now.
func (b Backlog) Unlocked(rank int, now time.Time) bool {
	if !b.Active() {
		return true
	}
	return !now.Before(b.UnlockTime(rank))
}
