package domain

import "time"

// Streak and winback milestone ladders.
var (
	StreakMilestones  = []int{3, 7, 14, 30}
	WinbackMilestones = []int{3, 7, 14}
)

// HourBucket classifies time remaining into the largest window it falls
// under: (0,24] hours → 24, (24,72] hours → 72. Anything outside both
// half-open intervals is not eligible.
func HourBucket(remaining time.Duration) (int, bool) {
	h := remaining.Hours()
	switch {
	case h > 0 && h <= 24:
		return 24, true
	case h > 24 && h <= 72:
		return 72, true
	}
	return 0, false
}

// HighestUnsent picks the largest milestone that the current value has
// reached and that has no existing marker. Intermediate milestones crossed
// in the same interval are deliberately not sent.
func HighestUnsent(ladder []int, current int, marked func(int) bool) (int, bool) {
	best := 0
	for _, m := range ladder {
		if m <= current && m > best && !marked(m) {
			best = m
		}
	}
	return best, best > 0
}

// WithinLookback reports whether event happened within the lookback window
// ending at now. A negative age (event in the future, clock skew) fails the
// gate.
func WithinLookback(event, now time.Time, lookback time.Duration) bool {
	if event.IsZero() {
		return false
	}
	age := now.Sub(event)
	return age >= 0 && age <= lookback
}

// WholeDaysSince returns the number of full 24h periods between then and now,
// or 0 when then is unset or in the future.
func WholeDaysSince(then, now time.Time) int {
	if then.IsZero() || now.Before(then) {
		return 0
	}
	return int(now.Sub(then).Hours() / 24)
}
