package strategy

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs each strategy on its own goroutine: Warmup once, then Step
// on every tick of the strategy's interval. Stopping is cooperative.
type Scheduler struct {
	strategies []Strategy
	now        func() time.Time

	active   atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool
}

// NewScheduler creates a scheduler for strategies.
func NewScheduler(strategies ...Strategy) *Scheduler {
	return &Scheduler{
		strategies: strategies,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run blocks until every strategy loop has exited. A strategy whose warmup
// fails is skipped; the others keep running.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return stderrors.New("scheduler already started")
	}
	defer close(s.done)

	eg, ctx := errgroup.WithContext(ctx)
	for _, st := range s.strategies {
		s.active.Add(1)
		eg.Go(func() error {
			defer s.active.Add(-1)
			s.loop(ctx, st)
			return nil
		})
	}
	return eg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, st Strategy) {
	name := st.Name()
	if err := st.Warmup(ctx); err != nil {
		logs.Errorf("%s: warmup, err: %+v", name, err)
		return
	}
	logs.Infof("%s: warmup done", name)

	interval := st.Interval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			logs.Infof("%s: stopped", name)
			return
		case <-ticker.C:
		}

		// stop wins over a tick that raced it
		select {
		case <-s.stop:
			logs.Infof("%s: stopped", name)
			return
		default:
		}

		err := st.Step(ctx, s.now())
		switch {
		case err == nil:
		case stderrors.Is(err, ErrFinished):
			logs.Infof("%s: finished", name)
			return
		default:
			logs.Errorf("%s: step, err: %+v", name, err)
		}
	}
}

// Stop asks every strategy loop to exit after its current step.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Wait blocks until Run has returned or ctx is done. A scheduler that was
// never started returns immediately.
func (s *Scheduler) Wait(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether any strategy loop is still running.
func (s *Scheduler) Active() bool {
	return s.active.Load() > 0
}
