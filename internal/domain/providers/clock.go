package providers

import "time"

// Clock abstracts wall-clock time so SLA and countdown logic can be tested
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant
type FixedClock struct {
	At time.Time
}

// Now returns c.At
func (c FixedClock) Now() time.Time {
	return c.At
}
