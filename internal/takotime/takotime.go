// Package takotime converts between the market's civil timezone (JST) and
// absolute UTC instants. All scheduling logic reads "now" through the Clock
// seam so time is a replaceable input.
package takotime

import (
	"time"
)

// JST is the fixed civil timezone all market dates are expressed in.
var JST = time.FixedZone("JST", 9*60*60)

// DateLayout is the calendar-date form used as the market key.
const DateLayout = "2006-01-02"

// InstantLayout is the form stored instants are serialized in (always UTC).
const InstantLayout = "2006-01-02T15:04:05"

// MarketDate returns t's calendar date in JST.
func MarketDate(t time.Time) string {
	return t.In(JST).Format(DateLayout)
}

// DayFloor returns midnight JST of t's JST calendar day.
func DayFloor(t time.Time) time.Time {
	j := t.In(JST)
	return time.Date(j.Year(), j.Month(), j.Day(), 0, 0, 0, 0, JST)
}

// ParseDate parses a market date string into midnight JST of that day.
func ParseDate(date string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, date, JST)
}

// AtClock returns the instant of "HH:MM" JST on the given market date.
func AtClock(date, clock string) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" 15:04", date+" "+clock, JST)
}

// UTCString serializes an instant as a UTC string without offset,
// the form the ledger stores.
func UTCString(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// ParseUTC parses a stored UTC instant string.
func ParseUTC(s string) (time.Time, error) {
	return time.ParseInLocation(InstantLayout, s, time.UTC)
}

// TruncateMinute drops seconds and below. Boundary events are matched at
// exact-minute granularity.
func TruncateMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
