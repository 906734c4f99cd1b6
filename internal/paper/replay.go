package paper

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/history"
	"venuetrader/internal/strategy"
)

// Clocked strategies read the wall clock at warmup. The replay points them
// at the replayed time instead.
type Clocked interface {
	SetClock(now func() time.Time)
}

// AccountReport summarizes one account after a replay.
type AccountReport struct {
	Account  string
	Fills    int
	Position int64
	PnL      float64
}

// Report is the outcome of a replay.
type Report struct {
	Ticks    int
	Steps    int
	Finished []string
	Accounts []AccountReport
	Fills    []Fill
}

type runner struct {
	s        strategy.Strategy
	lastStep time.Time
	done     bool
}

// Replay warms the strategies up, then feeds ticks through the venue and
// steps every strategy at its interval in replayed time. Strategy errors
// other than strategy.ErrFinished are logged like the live scheduler does.
func Replay(ctx context.Context, venue *Venue, product string, ticks []history.Tick, strategies ...strategy.Strategy) (Report, error) {
	if venue == nil {
		return Report{}, errors.New("paper: nil venue")
	}
	if len(ticks) == 0 {
		return Report{}, errors.New("paper: no ticks to replay")
	}

	start := ticks[0].Time
	runners := make([]*runner, 0, len(strategies))
	for _, s := range strategies {
		if c, ok := s.(Clocked); ok {
			c.SetClock(func() time.Time { return start })
		}
		if err := s.Warmup(ctx); err != nil {
			logs.Errorf("paper: %s warmup, err: %+v", s.Name(), err)
		}
		runners = append(runners, &runner{s: s})
	}

	var report Report
	for _, t := range ticks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := venue.Feed(product, t); err != nil {
			return report, err
		}
		report.Ticks++

		for _, r := range runners {
			if r.done || t.Time.Sub(r.lastStep) < r.s.Interval() {
				continue
			}
			r.lastStep = t.Time
			report.Steps++
			err := r.s.Step(ctx, t.Time)
			switch {
			case err == nil:
			case stderrors.Is(err, strategy.ErrFinished):
				r.done = true
				report.Finished = append(report.Finished, r.s.Name())
				logs.Infof("paper: %s finished at %s", r.s.Name(), t.Time)
			default:
				logs.Errorf("paper: %s step, err: %+v", r.s.Name(), err)
			}
		}
	}

	report.Fills = venue.Fills()
	report.Accounts = venue.accounts()
	return report, nil
}

func (v *Venue) accounts() []AccountReport {
	byAccount := make(map[string]*AccountReport)
	get := func(account string) *AccountReport {
		r, ok := byAccount[account]
		if !ok {
			r = &AccountReport{Account: account}
			byAccount[account] = r
		}
		return r
	}
	for key, qty := range v.positions {
		get(key.Account).Position += qty
	}
	for _, f := range v.fills {
		get(f.Account).Fills++
	}

	out := make([]AccountReport, 0, len(byAccount))
	for account, r := range byAccount {
		r.PnL = v.PnL(account)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// Split returns the ticks before at, for warmup, and the ticks from at on,
// for replay.
func Split(ticks []history.Tick, at time.Time) (warm, replay []history.Tick) {
	i := sort.Search(len(ticks), func(i int) bool { return !ticks[i].Time.Before(at) })
	return ticks[:i], ticks[i:]
}
