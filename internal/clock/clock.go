package clock

import "time"

// Clock abstracts wall time so lifecycle rules can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// New returns the process wall clock in UTC.
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
