package clock

import "time"

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. Times are in UTC and truncated to
// microseconds so they survive a round trip through every storage backend
// unchanged.
type SystemClock struct{}

// New creates a new SystemClock
func New() *SystemClock {
	return &SystemClock{}
}

// Now returns the current time
func (c *SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
