package braze

import "time"

// Clock abstracts wall-clock reads so the activity window, series
// anchoring, and default export timestamps stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant.
type FixedClock struct {
	Instant time.Time
}

// Now returns the pinned instant.
func (c FixedClock) Now() time.Time {
	return c.Instant
}

// LastUTCMidnight pins the clock's current calendar date to midnight UTC.
// The date components are taken from the clock's own location, so a
// process running behind UTC anchors to its local date, not the UTC one.
// Every consumer in a single pass must share one value of this; computing
// it per call site would let the filter and the series fetch disagree
// across a midnight rollover.
func LastUTCMidnight(clock Clock) time.Time {
	now := clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ISODateString formats t as an ISO 8601 UTC timestamp with millisecond
// precision, e.g. "2022-03-28T09:13:40.359Z".
func ISODateString(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ISOFromMillis formats a Unix epoch in milliseconds as an ISO 8601 UTC
// timestamp.
func ISOFromMillis(ms int64) string {
	return ISODateString(time.UnixMilli(ms))
}
