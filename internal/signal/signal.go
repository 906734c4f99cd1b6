package signal

import (
	"math"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/pkg/exception"
	"venuetrader/pkg/ring"
)

// Signal is the directional output of the engine.
type Signal int8

const (
	Short Signal = -1
	Flat  Signal = 0
	Long  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Config sizes the vote windows.
type Config struct {
	// Divisor converts a price move into unit votes: int(move / Divisor).
	Divisor float64 `yaml:"divisor"`
	// VoteCount bounds the primary vote window.
	VoteCount int `yaml:"vote_count"`
	// FinalCount bounds the final-vote window.
	FinalCount int `yaml:"final_count"`
	// Verbose logs every recorded move.
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the production window sizes.
func DefaultConfig() Config {
	return Config{
		Divisor:    2,
		VoteCount:  250,
		FinalCount: 3,
	}
}

// Validate checks the window sizes.
func (c Config) Validate() error {
	if c.Divisor <= 0 || math.IsNaN(c.Divisor) || math.IsInf(c.Divisor, 0) {
		return errors.Wrapf(exception.ErrConfigInvalid, "signal divisor: %v", c.Divisor)
	}
	if c.VoteCount <= 0 {
		return errors.Wrapf(exception.ErrConfigInvalid, "signal vote count: %d", c.VoteCount)
	}
	if c.FinalCount <= 0 {
		return errors.Wrapf(exception.ErrConfigInvalid, "signal final count: %d", c.FinalCount)
	}
	return nil
}

// Engine derives a directional signal from a bounded window of unit votes.
// An Engine is owned by one strategy and is not safe for concurrent use.
type Engine struct {
	name   string
	cfg    Config
	votes  *ring.Buffer[int]
	final  *ring.Buffer[int]
	full   bool
	signal Signal
	flip   Signal
}

// NewEngine creates an engine. name prefixes its log lines.
func NewEngine(name string, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		name:  name,
		cfg:   cfg,
		votes: ring.New[int](cfg.VoteCount),
		final: ring.New[int](cfg.FinalCount),
	}, nil
}

// RecordMove converts delta into int(delta/Divisor) unit votes and appends
// them, evicting the oldest votes past capacity. The count is clamped to
// ±math.MaxInt32. NaN and infinite moves are discarded and ok is false.
func (e *Engine) RecordMove(delta float64) (added int, ok bool) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		logs.Warnf("%s: discard invalid move %v", e.name, delta)
		return 0, false
	}

	units := math.Trunc(delta / e.cfg.Divisor)
	if math.Abs(units) > math.MaxInt32 {
		logs.Warnf("%s: clamp move %v", e.name, delta)
		units = math.Copysign(math.MaxInt32, units)
	}
	added = int(units)
	vote := 1
	if added < 0 {
		vote = -1
	}
	// only the last Cap votes can survive
	for range min(added*vote, e.votes.Cap()) {
		e.votes.Push(vote)
	}

	if e.cfg.Verbose {
		logs.Infof("%s: change %.2f, votes %d, total vote %.1f%%", e.name, delta, added, e.TotalPercent())
	}
	return added, true
}

// AdvanceFinalVote appends sign(total) to the final-vote window once the
// primary window has filled for the first time.
func (e *Engine) AdvanceFinalVote() {
	if !e.full && e.votes.Full() {
		e.full = true
		logs.Infof("%s: votes full", e.name)
	}
	if !e.full {
		return
	}

	switch total := e.votes.Sum(); {
	case total > 0:
		e.final.Push(1)
	case total < 0:
		e.final.Push(-1)
	default:
		e.final.Push(0)
	}
}

// DeriveSignal reads the final-vote window: LONG when it is full of +1,
// SHORT when full of -1, FLAT otherwise. FLAT clears the flip lock.
func (e *Engine) DeriveSignal() Signal {
	switch {
	case e.final.Full() && e.final.Every(1):
		e.signal = Long
	case e.final.Full() && e.final.Every(-1):
		e.signal = Short
	default:
		e.signal = Flat
		e.flip = Flat
	}

	if e.cfg.Verbose {
		logs.Infof("%s: final votes %v, signal %s", e.name, e.final.Values(), e.signal)
	}
	return e.signal
}

// Observe records one sampled move and returns the refreshed signal.
func (e *Engine) Observe(delta float64) Signal {
	e.RecordMove(delta)
	e.AdvanceFinalVote()
	return e.DeriveSignal()
}

// Signal returns the last derived signal.
func (e *Engine) Signal() Signal {
	return e.signal
}

// Total returns the running vote total.
func (e *Engine) Total() int {
	return e.votes.Sum()
}

// TotalPercent maps the vote total onto a signed percentage of conviction.
func (e *Engine) TotalPercent() float64 {
	p := 0.5 + float64(e.votes.Sum())/float64(2*e.cfg.VoteCount)
	if p < 0.5 {
		p = -(1 - p)
	}
	return math.Round(p*1000) / 10
}

// Full reports whether the primary window has filled at least once.
func (e *Engine) Full() bool {
	return e.full
}

// Votes returns the primary window, oldest first.
func (e *Engine) Votes() []int {
	return e.votes.Values()
}

// FinalVotes returns the final-vote window, oldest first.
func (e *Engine) FinalVotes() []int {
	return e.final.Values()
}

// CanEnter reports whether s is a direction that may be entered: not FLAT
// and not locked by a previous entry.
func (e *Engine) CanEnter(s Signal) bool {
	return s != Flat && s != e.flip
}

// Lock suppresses re-entry into s until the signal returns to FLAT or the
// lock is cleared.
func (e *Engine) Lock(s Signal) {
	e.flip = s
}

// ClearLock drops the flip lock.
func (e *Engine) ClearLock() {
	e.flip = Flat
}

// Locked returns the direction currently locked.
func (e *Engine) Locked() Signal {
	return e.flip
}
