package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the wall clock in UTC.
func System() Clock { return systemClock{} }

// Fixed always returns the same instant. Tests use it to pin timestamps.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
