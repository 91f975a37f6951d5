package model

import "time"

// Clock abstracts wall time so probes and diagnostic delays can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock uses the time package.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// ValidClockOrDefault returns clock, or RealClock when clock is nil.
func ValidClockOrDefault(clock Clock) Clock {
	if clock != nil {
		return clock
	}
	return RealClock{}
}
