package store

import "time"

// SetClock replaces the store clock for the duration of a test.
func SetClock(f func() time.Time) (restore func()) {
	prev := now
	now = f
	return func() { now = prev }
}
