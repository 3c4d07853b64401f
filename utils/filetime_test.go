package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFiletimeRoundTrip(t *testing.T) {
	now := time.Now().Truncate(100 * time.Nanosecond)
	assert.True(t, FiletimeToUnix(UnixToFiletime(now)).Equal(now))
}

func TestFiletimeEpoch(t *testing.T) {
	// January 1, 1970 is 11644473600 seconds after January 1, 1601.
	assert.Equal(t, uint64(116444736000000000), UnixToFiletime(time.Unix(0, 0)))
	assert.True(t, FiletimeToUnix(116444736000000000).Equal(time.Unix(0, 0)))
}

func TestDosDateTimeRoundTrip(t *testing.T) {
	tm := time.Date(2009, time.November, 10, 23, 4, 58, 0, time.Local)
	date, tim := UnixToDosDateTime(tm)
	assert.True(t, DosDateTimeToUnix(date, tim).Equal(tm))
}

func TestDosDateTimeGranularity(t *testing.T) {
	// Seconds are stored in units of two; odd seconds round down.
	tm := time.Date(2020, time.March, 5, 12, 30, 31, 0, time.Local)
	date, tim := UnixToDosDateTime(tm)
	assert.True(t, DosDateTimeToUnix(date, tim).Equal(tm.Add(-time.Second)))
}

func TestDosDateTimeBefore1980(t *testing.T) {
	date, tim := UnixToDosDateTime(time.Unix(0, 0))
	assert.Zero(t, date)
	assert.Zero(t, tim)
	assert.True(t, DosDateTimeToUnix(0, 0).IsZero())
}
