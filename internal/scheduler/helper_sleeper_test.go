package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

// sleeperMock is a testify mock for the timeutil.Sleeper
type sleeperMock struct {
	mock.Mock
}

func (m *sleeperMock) Sleep(d time.Duration) {
	m.Called(d)
}

// newSleeperMock creates a properly configured sleeper mock for crawl tests
func newSleeperMock(t *testing.T) *sleeperMock {
	t.Helper()
	m := new(sleeperMock)
	return m
}
