package utils

import (
	"time"
)

// Unix time is represented in nanoseconds since January 1, 1970.
// Filetime is represented in 100-nanosecond intervals since January 1, 1601.
const filetimeOffset = 11644473600

// UnixToFiletime converts the Unix time to Filetime.
func UnixToFiletime(t time.Time) uint64 {
	return uint64(t.Unix()+filetimeOffset)*1e7 + uint64(t.Nanosecond()/100)
}

// FiletimeToUnix converts Filetime to the Unix time.
func FiletimeToUnix(ft uint64) time.Time {
	return time.Unix(int64(ft)/1e7-filetimeOffset, int64(ft)%1e7*100)
}

// UnixToDosDateTime converts the Unix time to the 16-bit DOS date and time
// pair used by the legacy information levels. Seconds are stored in units
// of two.
func UnixToDosDateTime(t time.Time) (date, tim uint16) {
	if t.Year() < 1980 {
		return 0, 0
	}
	date = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tim = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return
}

// DosDateTimeToUnix converts a DOS date and time pair to the Unix time.
// A zero pair means "not set" and maps to the zero time.
func DosDateTimeToUnix(date, tim uint16) time.Time {
	if date == 0 {
		return time.Time{}
	}
	return time.Date(
		int(date>>9)+1980, time.Month(date>>5&0x0f), int(date&0x1f),
		int(tim>>11), int(tim>>5&0x3f), int(tim&0x1f)*2,
		0, time.Local)
}
