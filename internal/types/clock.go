package types

import "time"

// Clock abstracts time for testability. Services take a Clock instead of
// calling time.Now directly so expiry logic can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by the system time.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
