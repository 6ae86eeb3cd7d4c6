package wizard

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerDebounces(t *testing.T) {
	var runs atomic.Int64

	sched := NewScheduler(20*time.Millisecond, func() {
		runs.Add(1)
	})
	defer sched.Stop()

	for range 5 {
		sched.Bump()
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Settle a little longer to catch extra fires from replaced timers.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())
}

func TestSchedulerStopCancelsPendingRun(t *testing.T) {
	var runs atomic.Int64

	sched := NewScheduler(10*time.Millisecond, func() {
		runs.Add(1)
	})

	sched.Bump()
	sched.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), runs.Load())
}

func TestSchedulerBumpAfterStopIsNoop(t *testing.T) {
	var runs atomic.Int64

	sched := NewScheduler(time.Millisecond, func() {
		runs.Add(1)
	})

	sched.Stop()
	sched.Bump()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), runs.Load())
}
