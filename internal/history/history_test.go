package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuetrader/pkg/conn"
	"venuetrader/pkg/exception"
)

func TestParseSendingTime(t *testing.T) {
	chicago := time.FixedZone("CDT", -5*3600)
	want := time.Date(2025, 7, 14, 9, 31, 2, 123456789, chicago)

	testCases := []struct {
		desc  string
		input string
	}{
		{desc: "nanoseconds", input: "2025-07-14 09:31:02.123456789 -0500"},
		{desc: "beyond nanoseconds", input: "2025-07-14 09:31:02.12345678999 -0500"},
		{desc: "colon offset", input: "2025-07-14 09:31:02.123456789 -05:00"},
		{desc: "short offset", input: "2025-07-14 09:31:02.123456789-05"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := ParseSendingTime(tc.input)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseSendingTime("yesterday")
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)
}

func TestStaticReturnsLatestOldestFirst(t *testing.T) {
	base := time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)
	src := Static{
		"NQU5": {
			{Time: base.Add(2 * time.Second), Price: 2345300},
			{Time: base, Price: 2345100},
			{Time: base.Add(time.Second), Price: 2345200},
		},
	}

	ticks, err := src.Ticks(context.Background(), "NQU5", 2)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.EqualValues(t, 2345200, ticks[0].Price)
	assert.EqualValues(t, 2345300, ticks[1].Price)

	ticks, err = src.Ticks(context.Background(), "ESU5", 10)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestBetween(t *testing.T) {
	base := time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)
	ticks := []Tick{
		{Time: base.Add(-time.Minute)},
		{Time: base},
		{Time: base.Add(time.Minute)},
		{Time: base.Add(2 * time.Minute)},
	}

	got := Between(ticks, base, base.Add(time.Minute))
	require.Len(t, got, 2)
	assert.True(t, got[0].Time.Equal(base))
}

func TestNewPostgresSourceRequiresClient(t *testing.T) {
	_, err := NewPostgresSource(nil, "")
	assert.ErrorIs(t, err, exception.ErrHistoryNilStore)

	_, err = NewPostgresSource(&conn.Client{}, "")
	assert.ErrorIs(t, err, exception.ErrHistoryNilStore)
}

func TestTableNamePattern(t *testing.T) {
	assert.True(t, tableName.MatchString(DefaultTable))
	assert.True(t, tableName.MatchString("cme.nq_fut_trades_weekly"))
	assert.False(t, tableName.MatchString("trades; DROP TABLE x"))
	assert.False(t, tableName.MatchString(""))
}
