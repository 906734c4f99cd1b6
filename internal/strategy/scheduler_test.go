package strategy

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type countingStrategy struct {
	name      string
	warmupErr error
	finishAt  int32
	steps     atomic.Int32
}

func (s *countingStrategy) Name() string                 { return s.name }
func (s *countingStrategy) Interval() time.Duration      { return time.Millisecond }
func (s *countingStrategy) Warmup(context.Context) error { return s.warmupErr }

func (s *countingStrategy) Step(context.Context, time.Time) error {
	n := s.steps.Add(1)
	if s.finishAt > 0 && n >= s.finishAt {
		return ErrFinished
	}
	if n%2 == 0 {
		return errors.New("transient")
	}
	return nil
}

func TestSchedulerStopIsCooperative(t *testing.T) {
	st := &countingStrategy{name: "loop"}
	s := NewScheduler(st)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return st.steps.Load() >= 5 }, time.Second, time.Millisecond)
	assert.True(t, s.Active())

	s.Stop()
	s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	require.NoError(t, <-done)
	assert.False(t, s.Active())

	after := st.steps.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, st.steps.Load())
}

func TestSchedulerFinishedAndFailedWarmup(t *testing.T) {
	finishing := &countingStrategy{name: "finishing", finishAt: 3}
	broken := &countingStrategy{name: "broken", warmupErr: errors.New("no history")}
	s := NewScheduler(finishing, broken)

	require.NoError(t, s.Run(context.Background()))
	assert.EqualValues(t, 3, finishing.steps.Load())
	assert.Zero(t, broken.steps.Load())
	assert.False(t, s.Active())

	assert.Error(t, s.Run(context.Background()))
}

func TestSchedulerContextCancel(t *testing.T) {
	st := &countingStrategy{name: "loop"}
	s := NewScheduler(st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return st.steps.Load() > 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not exit")
	}
}

func TestSchedulerWaitWithoutRun(t *testing.T) {
	s := NewScheduler()
	assert.NoError(t, s.Wait(context.Background()))
	assert.False(t, s.Active())
}
