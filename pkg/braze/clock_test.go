package braze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestISODateString(t *testing.T) {
	t.Run("millisecond precision", func(t *testing.T) {
		assert.Equal(t, "2022-03-28T09:13:40.359Z", ISOFromMillis(1648458820359))
	})

	t.Run("whole seconds keep the milliseconds field", func(t *testing.T) {
		ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		assert.Equal(t, "2024-01-02T03:04:05.000Z", ISODateString(ts))
	})

	t.Run("non-UTC input is converted", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		ts := time.Date(2024, 1, 2, 12, 0, 0, 0, loc)
		assert.Equal(t, "2024-01-02T10:00:00.000Z", ISODateString(ts))
	})
}

func TestLastUTCMidnight(t *testing.T) {
	t.Run("truncates to midnight UTC", func(t *testing.T) {
		clock := FixedClock{Instant: time.Date(2024, 5, 17, 18, 42, 11, 123456789, time.UTC)}
		assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), LastUTCMidnight(clock))
	})

	t.Run("uses the clock's own calendar date", func(t *testing.T) {
		// 23:30 on May 17 in UTC-5 is already May 18 in UTC, but the
		// anchor follows the local date.
		loc := time.FixedZone("UTC-5", -5*60*60)
		clock := FixedClock{Instant: time.Date(2024, 5, 17, 23, 30, 0, 0, loc)}
		assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), LastUTCMidnight(clock))
	})

	t.Run("midnight maps to itself", func(t *testing.T) {
		clock := FixedClock{Instant: time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)}
		assert.Equal(t, clock.Instant, LastUTCMidnight(clock))
	})
}

func TestSystemClock(t *testing.T) {
	before := time.Now()
	now := SystemClock{}.Now()
	after := time.Now()
	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}
