// Package clock abstracts time so countdowns, silence detection, and
// conversational pacing can be driven deterministically in tests.
package clock

import "time"

// Clock is the time source injected into every timer-owning component.
type Clock interface {
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed. If d <= 0, f runs
	// immediately: in a new goroutine for Real, synchronously for Fake.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. It reports whether the call
// stopped a pending timer.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}
