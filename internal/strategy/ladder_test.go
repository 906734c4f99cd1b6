package strategy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuetrader/pkg/exception"
)

func TestNewLadderValidates(t *testing.T) {
	testCases := []struct {
		desc        string
		checkpoints []Checkpoint
	}{
		{desc: "empty"},
		{desc: "zero cap", checkpoints: []Checkpoint{{After: time.Minute}}},
		{desc: "time not increasing", checkpoints: []Checkpoint{{After: 2 * time.Minute, Cap: 2}, {After: time.Minute, Cap: 3}}},
		{desc: "cap not increasing", checkpoints: []Checkpoint{{After: time.Minute, Cap: 3}, {After: 2 * time.Minute, Cap: 3}}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := NewLadder(tc.checkpoints)
			assert.ErrorIs(t, err, exception.ErrConfigInvalid)
		})
	}
}

func TestLadderAddsOncePerCheckpoint(t *testing.T) {
	l, err := NewLadder(DefaultCheckpoints())
	require.NoError(t, err)

	assert.Equal(t, LadderHold, l.Evaluate(10*time.Minute, 1, 100, 101).Action)

	d := l.Evaluate(16*time.Minute, 1, 100, 101)
	assert.Equal(t, LadderAdd, d.Action)
	assert.EqualValues(t, 2, d.Cap)
	assert.Equal(t, "ADD2_BUY", d.AddTag(1))

	// the add has not been reflected yet: the checkpoint must not act twice
	assert.Equal(t, LadderHold, l.Evaluate(17*time.Minute, 1, 100, 101).Action)

	// at cap until the next checkpoint
	assert.Equal(t, LadderHold, l.Evaluate(20*time.Minute, 2, 100.5, 101).Action)

	d = l.Evaluate(26*time.Minute, 2, 100.5, 101)
	assert.Equal(t, LadderAdd, d.Action)
	assert.EqualValues(t, 3, d.Cap)
}

func TestLadderFlattensUnderwater(t *testing.T) {
	testCases := []struct {
		desc      string
		elapsed   time.Duration
		pos       int64
		mean      float64
		last      float64
		cap       int64
		clearLock bool
	}{
		{desc: "long first checkpoint", elapsed: 16 * time.Minute, pos: 1, mean: 101, last: 100, cap: 2},
		{desc: "long later checkpoint", elapsed: 31 * time.Minute, pos: 3, mean: 101, last: 100, cap: 4, clearLock: true},
		{desc: "short first checkpoint", elapsed: 16 * time.Minute, pos: -1, mean: 100, last: 101, cap: 2},
		{desc: "short last checkpoint", elapsed: time.Hour, pos: -4, mean: 100, last: 101, cap: 5, clearLock: true},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			l, err := NewLadder(DefaultCheckpoints())
			require.NoError(t, err)

			d := l.Evaluate(tc.elapsed, tc.pos, tc.mean, tc.last)
			assert.Equal(t, LadderFlatten, d.Action)
			assert.Equal(t, tc.cap, d.Cap)
			assert.Equal(t, tc.clearLock, d.ClearLock)
			assert.Equal(t, fmt.Sprintf("PNL%d_FLATTEN", tc.cap), d.FlattenTag())
		})
	}
}

func TestLadderReset(t *testing.T) {
	l, err := NewLadder(DefaultCheckpoints())
	require.NoError(t, err)

	assert.Equal(t, LadderAdd, l.Evaluate(16*time.Minute, -1, 100, 99).Action)
	assert.Equal(t, LadderHold, l.Evaluate(16*time.Minute, -1, 100, 99).Action)

	l.Reset()
	d := l.Evaluate(16*time.Minute, -1, 100, 99)
	assert.Equal(t, LadderAdd, d.Action)
	assert.Equal(t, "ADD2_SELL", d.AddTag(-1))
}
