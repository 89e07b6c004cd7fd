package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobImmediatelyAndOnTicks(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New()
	s.AddJob("counter", 20*time.Millisecond, func(_ context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	s.Start(ctx, &wg)

	require.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()

	_, ran := s.LastRun("counter")
	assert.True(t, ran)
}

func TestSchedulerSingleFlight(t *testing.T) {
	t.Parallel()

	var concurrent, peak atomic.Int32
	s := New()
	s.AddJob("slow", 10*time.Millisecond, func(_ context.Context) error {
		n := concurrent.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(50 * time.Millisecond)
		concurrent.Add(-1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	s.Start(ctx, &wg)

	time.Sleep(120 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.EqualValues(t, 1, peak.Load())
}

func TestSchedulerLastRunUnknownJob(t *testing.T) {
	t.Parallel()

	s := New()
	_, ran := s.LastRun("never-registered")
	assert.False(t, ran)
}
