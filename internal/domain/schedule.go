package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ScheduleTolerance is how far from the configured send time an invocation
// may land and still count as "on time". Triggers fire every 30 minutes, so
// the window must cover one full period.
const ScheduleTolerance = 30 * time.Minute

// ScheduleConfig gates the strictly-once-per-day sequences. Admin-owned; the
// scanner only stamps LastRunDateUTC.
type ScheduleConfig struct {
	Enabled        bool   `json:"enabled"`
	SendTimeUTC    string `json:"sendTimeUtc"`    // HH:MM
	LastRunDateUTC string `json:"lastRunDateUtc"` // YYYY-MM-DD
}

// DueAt reports whether the sequence should run: enabled, not yet run today,
// and now within the tolerance window around the configured send time.
func (c ScheduleConfig) DueAt(now time.Time) (bool, error) {
	if !c.Enabled {
		return false, nil
	}
	if c.LastRunDateUTC == DateUTC(now) {
		return false, nil
	}
	mins, err := ParseHHMM(c.SendTimeUTC)
	if err != nil {
		return false, err
	}
	nowUTC := now.UTC()
	target := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), mins/60, mins%60, 0, 0, time.UTC)
	diff := nowUTC.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= ScheduleTolerance, nil
}

// DateUTC formats the UTC calendar date of t.
func DateUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseHHMM parses "HH:MM" into minutes since midnight.
func ParseHHMM(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

// LocalDayRange converts now into the IANA timezone, derives local midnight,
// and returns the [startOfDay, endOfDay) pair as UTC instants. A malformed
// timezone is the caller's per-record failure, never a fatal one.
func LocalDayRange(now time.Time, tz string) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	ln := now.In(loc)
	start := time.Date(ln.Year(), ln.Month(), ln.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC(), nil
}

// LocalDate formats the calendar date of now in the given timezone.
func LocalDate(now time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return now.In(loc).Format("2006-01-02"), nil
}

// WithinLocalWindow reports whether now, seen in the given timezone, lies
// within tol of the HH:MM target. Distance wraps across midnight so a 23:50
// target still matches an 00:10 invocation.
func WithinLocalWindow(now time.Time, tz, hhmm string, tol time.Duration) (bool, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return false, err
	}
	target, err := ParseHHMM(hhmm)
	if err != nil {
		return false, err
	}
	ln := now.In(loc)
	localM := ln.Hour()*60 + ln.Minute()
	diff := localM - target
	if diff < 0 {
		diff = -diff
	}
	if wrapped := 24*60 - diff; wrapped < diff {
		diff = wrapped
	}
	return time.Duration(diff)*time.Minute <= tol, nil
}
