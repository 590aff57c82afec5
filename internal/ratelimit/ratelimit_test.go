package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rohmanhakim/docs-crawler/internal/ratelimit"
)

func TestComputeWaitZeroDelayIsNoOp(t *testing.T) {
	l := ratelimit.NewOriginLimiter()

	before := time.Now()
	wait := l.ComputeWait("example.com", 0)
	assert.False(t, wait.Before(before))
	assert.True(t, wait.Before(before.Add(time.Second)))
}

func TestComputeWaitMonotonicallyNondecreasing(t *testing.T) {
	l := ratelimit.NewOriginLimiter()

	first := l.ComputeWait("example.com", 1000)
	second := l.ComputeWait("example.com", 1000)
	third := l.ComputeWait("example.com", 1000)

	assert.True(t, second.After(first))
	assert.True(t, third.After(second))
}

func TestComputeWaitIsolatedPerOrigin(t *testing.T) {
	l := ratelimit.NewOriginLimiter()

	l.ComputeWait("a.example.com", 5000)
	soon := l.ComputeWait("b.example.com", 0)

	assert.WithinDuration(t, time.Now(), soon, time.Second)
}
