package util

import (
	"time"
)

// WallClockLayout is the operator-facing time format (MM/DD/YYYY HH:MM:SS).
const WallClockLayout = "01/02/2006 15:04:05"

// archiverLayout is the query format the archiver appliance expects:
// ISO-8601 UTC with fractional seconds.
const archiverLayout = "2006-01-02T15:04:05.000000Z"

// ParseWallClock parses an operator wall-clock timestamp. The clock is
// interpreted as UTC; the archiver offset is applied at fetch time.
func ParseWallClock(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(WallClockLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatWallClock renders a time in the operator wall-clock format.
func FormatWallClock(t time.Time) string {
	return t.UTC().Format(WallClockLayout)
}

// FormatArchiverTime renders a time for archiver from/to query parameters.
func FormatArchiverTime(t time.Time) string {
	return t.UTC().Format(archiverLayout)
}

// ParseArchiverTime parses an archiver from/to query parameter.
func ParseArchiverTime(s string) (time.Time, bool) {
	t, err := time.Parse(archiverLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HoursToDuration converts fractional hours to a time.Duration.
func HoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
