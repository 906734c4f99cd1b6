package history

import (
	"context"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"venuetrader/internal/schema"
	"venuetrader/pkg/conn"
	"venuetrader/pkg/exception"
)

// Tick is one historical trade. Price is scaled like wire prices.
type Tick struct {
	Time  time.Time
	Price schema.Price
	Qty   int64
}

// Source returns up to limit of the most recent trades of product, oldest
// first.
type Source interface {
	Ticks(ctx context.Context, product string, limit int) ([]Tick, error)
}

// Config selects the trade table of the time-series store.
type Config struct {
	Table    string      `yaml:"table"`
	Postgres conn.Option `yaml:"postgres"`
}

// DefaultTable is the weekly futures trade table.
const DefaultTable = "nq_fut_trades_weekly"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads trades through gorm.
type PostgresSource struct {
	db    *gorm.DB
	table string
}

// NewPostgresSource creates a source over client reading table.
func NewPostgresSource(client *conn.Client, table string) (*PostgresSource, error) {
	if client == nil || client.DB() == nil {
		return nil, exception.ErrHistoryNilStore
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "history table %q", table)
	}
	return &PostgresSource{db: client.DB(), table: table}, nil
}

type tradeRow struct {
	WhName      string  `gorm:"column:wh_name"`
	TPrice      float64 `gorm:"column:t_price"`
	TQty        int64   `gorm:"column:t_qty"`
	SendingTime string  `gorm:"column:sending_time"`
}

// Ticks implements Source.
func (s *PostgresSource) Ticks(ctx context.Context, product string, limit int) ([]Tick, error) {
	if limit <= 0 {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "history limit %d", limit)
	}

	var rows []tradeRow
	err := s.db.WithContext(ctx).
		Raw("SELECT wh_name, t_price, t_qty, sending_time FROM "+s.table+
			" WHERE wh_name = ? ORDER BY sending_time DESC LIMIT ?", product, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "query %s for %s", s.table, product)
	}

	ticks := make([]Tick, 0, len(rows))
	for _, r := range rows {
		ts, err := ParseSendingTime(r.SendingTime)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, Tick{Time: ts, Price: schema.Price(math.Round(r.TPrice)), Qty: r.TQty})
	}
	sortTicks(ticks)
	return ticks, nil
}

var sendingTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999-07",
	time.RFC3339Nano,
}

// ParseSendingTime parses a text timestamp of the trade table. Fractions
// longer than nanoseconds are truncated.
func ParseSendingTime(s string) (time.Time, error) {
	s = truncateFraction(strings.TrimSpace(s))
	for _, layout := range sendingTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(exception.ErrInvalidArgument, "sending time %q", s)
}

func truncateFraction(s string) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	end := dot + 1
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end-dot-1 <= 9 {
		return s
	}
	return s[:dot+10] + s[end:]
}

func sortTicks(ticks []Tick) {
	slices.SortStableFunc(ticks, func(a, b Tick) int {
		return a.Time.Compare(b.Time)
	})
}

// Static is an in-memory Source keyed by product.
type Static map[string][]Tick

// Ticks implements Source.
func (s Static) Ticks(_ context.Context, product string, limit int) ([]Tick, error) {
	ticks := slices.Clone(s[product])
	sortTicks(ticks)
	if limit > 0 && len(ticks) > limit {
		ticks = ticks[len(ticks)-limit:]
	}
	return ticks, nil
}

// Between returns the ticks with from <= Time <= to.
func Between(ticks []Tick, from, to time.Time) []Tick {
	var out []Tick
	for _, t := range ticks {
		if t.Time.Before(from) || t.Time.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out
}
