// Package clock provides time abstractions for production and testing
package clock

import "time"

// Clock tells the current time
type Clock interface {
	Now() time.Time
}

// SystemClock provides production time implementation using the standard library
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// UnixAfter returns the Unix second d from now on c, or 0 before the epoch
func UnixAfter(c Clock, d time.Duration) uint64 {
	at := c.Now().Add(d).Unix()
	if at < 0 {
		return 0
	}
	return uint64(at)
}
