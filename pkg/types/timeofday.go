package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTime is returned when a time-of-day string cannot be parsed.
var ErrMalformedTime = errors.New("malformed time of day")

// TimeOfDay is a wall-clock time within one day, stored as seconds since
// midnight.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM:SS" value. A single-digit hour is accepted
// because some collectors do not zero-pad it.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	var v [3]int
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
		}
		v[i] = n
	}
	if v[0] > 23 || v[1] > 59 || v[2] > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	return TimeOfDay(v[0]*3600 + v[1]*60 + v[2]), nil
}

// TimeOfDayOf returns the time of day of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// Sub returns the duration from u to t. It is negative when u is later in
// the day than t.
func (t TimeOfDay) Sub(u TimeOfDay) time.Duration {
	return time.Duration(int(t)-int(u)) * time.Second
}

// String formats t as zero-padded HH:MM:SS.
func (t TimeOfDay) String() string {
	n := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", n/3600, n%3600/60, n%60)
}

// MarshalText implements encoding.TextMarshaler so TimeOfDay values encode
// as "HH:MM:SS" in JSON.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
