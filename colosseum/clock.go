package colosseum

import "time"

// systemClock is the production Clock backed by time.Now.
type systemClock struct{}

// SystemClock returns the production Clock. Tests inject their own Clock to
// exercise the timeout boundary behaviors of spec §8 deterministically.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}
