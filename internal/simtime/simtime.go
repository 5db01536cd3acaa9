// Package simtime holds the discrete simulation clock type.
package simtime

import (
	"math"
	"strconv"
	"time"
)

// Time is a simulation timestamp or duration in milliseconds.
type Time int64

const (
	// Unset marks a timestamp that has not been recorded yet.
	Unset Time = -1

	Millisecond Time = 1
	Second      Time = 1000
)

// FromSeconds converts seconds to Time, rounding to the nearest millisecond.
func FromSeconds(s float64) Time {
	return Time(math.Round(s * 1000))
}

// FromDuration truncates d to whole milliseconds.
func FromDuration(d time.Duration) Time { return Time(d.Milliseconds()) }

func (t Time) Seconds() float64 { return float64(t) / 1000 }

// IsSet reports whether t holds a recorded value.
func (t Time) IsSet() bool { return t >= 0 }

// String formats t as seconds with two decimals (e.g. "130.00").
func (t Time) String() string {
	return strconv.FormatFloat(t.Seconds(), 'f', 2, 64)
}

// OrUnset formats t like String but writes "-1" for negative values.
func (t Time) OrUnset() string {
	if t < 0 {
		return "-1"
	}
	return t.String()
}
