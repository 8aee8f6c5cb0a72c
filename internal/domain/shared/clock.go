package shared

import "time"

// Clock is the timestamp oracle consulted by every time-dependent transition
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

// Now calls f
func (f ClockFunc) Now() time.Time {
	return f()
}

// FixedUnixClock returns a clock frozen at the given unix second
func FixedUnixClock(sec int64) Clock {
	return ClockFunc(func() time.Time { return time.Unix(sec, 0) })
}
