package strategy

import (
	"fmt"
	"time"

	"github.com/yanun0323/errors"

	"venuetrader/pkg/exception"
)

// Checkpoint is a ladder rung: After the entry, the position may grow to Cap
// lots unless it is underwater.
type Checkpoint struct {
	After time.Duration `yaml:"after"`
	Cap   int64         `yaml:"cap"`
}

// DefaultCheckpoints are +15/+25/+30/+35 minutes with caps 2 to 5.
func DefaultCheckpoints() []Checkpoint {
	return []Checkpoint{
		{After: 15 * time.Minute, Cap: 2},
		{After: 25 * time.Minute, Cap: 3},
		{After: 30 * time.Minute, Cap: 4},
		{After: 35 * time.Minute, Cap: 5},
	}
}

// LadderAction is what a checkpoint asks for.
type LadderAction int8

const (
	LadderHold LadderAction = iota
	LadderAdd
	LadderFlatten
)

func (a LadderAction) String() string {
	switch a {
	case LadderAdd:
		return "ADD"
	case LadderFlatten:
		return "FLATTEN"
	default:
		return "HOLD"
	}
}

// LadderDecision is the outcome of one evaluation.
type LadderDecision struct {
	Action LadderAction
	Cap    int64
	// ClearLock is set on a flatten past the first checkpoint.
	ClearLock bool
}

// FlattenTag returns the order tag of a checkpoint flatten.
func (d LadderDecision) FlattenTag() string {
	return fmt.Sprintf("PNL%d_FLATTEN", d.Cap)
}

// AddTag returns the order tag of a checkpoint add for a position of sign dir.
func (d LadderDecision) AddTag(dir int64) string {
	if dir < 0 {
		return fmt.Sprintf("ADD%d_SELL", d.Cap)
	}
	return fmt.Sprintf("ADD%d_BUY", d.Cap)
}

// Ladder scales an open position at time checkpoints after entry.
type Ladder struct {
	checkpoints []Checkpoint
	// acted counts the checkpoints already acted upon.
	acted int
}

// NewLadder validates that checkpoints increase in both time and cap.
func NewLadder(checkpoints []Checkpoint) (*Ladder, error) {
	if len(checkpoints) == 0 {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "ladder has no checkpoints")
	}
	for i, cp := range checkpoints {
		if cp.After <= 0 || cp.Cap <= 0 {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "ladder checkpoint %d: %+v", i, cp)
		}
		if i > 0 && (cp.After <= checkpoints[i-1].After || cp.Cap <= checkpoints[i-1].Cap) {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "ladder checkpoint %d not increasing", i)
		}
	}
	return &Ladder{checkpoints: append([]Checkpoint(nil), checkpoints...)}, nil
}

// Evaluate checks the latest checkpoint passed after elapsed time in
// position. pos is the signed position, meanEntry the mean entry price.
// Each checkpoint acts at most once until Reset.
func (l *Ladder) Evaluate(elapsed time.Duration, pos int64, meanEntry, last float64) LadderDecision {
	idx := -1
	for i, cp := range l.checkpoints {
		if elapsed > cp.After {
			idx = i
		}
	}
	if idx < 0 || pos == 0 || idx < l.acted {
		return LadderDecision{}
	}

	cp := l.checkpoints[idx]
	if abs64(pos) == cp.Cap {
		return LadderDecision{}
	}

	underwater := (pos > 0 && meanEntry > last) || (pos < 0 && meanEntry < last)
	switch {
	case underwater:
		l.acted = idx + 1
		return LadderDecision{Action: LadderFlatten, Cap: cp.Cap, ClearLock: idx > 0}
	case abs64(pos) < cp.Cap:
		l.acted = idx + 1
		return LadderDecision{Action: LadderAdd, Cap: cp.Cap}
	default:
		return LadderDecision{}
	}
}

// Reset rearms every checkpoint for a new entry.
func (l *Ladder) Reset() {
	l.acted = 0
}
