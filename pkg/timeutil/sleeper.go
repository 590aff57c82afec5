package timeutil

import "time"

// Sleeper abstracts real wall-clock sleeping so callers that pace
// themselves between operations (rate limiting, retry backoff) can be
// tested without actually waiting.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper sleeps for real using time.Sleep.
type RealSleeper struct{}

// NewRealSleeper creates a Sleeper backed by time.Sleep.
func NewRealSleeper() RealSleeper {
	return RealSleeper{}
}

func (RealSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
