// Package timing measures scoped wall time in nanoseconds.
package timing

import "time"

// Ns runs fn and returns its wall time in nanoseconds. time.Since reads the
// monotonic clock.
func Ns(fn func()) uint64 {
	start := time.Now()
	fn()
	return uint64(time.Since(start))
}

// Stopwatch accumulates split times from one start point.
type Stopwatch struct {
	last time.Time
}

// Start returns a stopwatch started now.
func Start() Stopwatch { return Stopwatch{last: time.Now()} }

// Lap returns the nanoseconds since the previous Lap (or Start) and restarts.
func (s *Stopwatch) Lap() uint64 {
	now := time.Now()
	d := now.Sub(s.last)
	s.last = now
	return uint64(d)
}
