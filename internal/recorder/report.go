package recorder

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summary totals the fills of one account.
type Summary struct {
	Account string
	Fills   int
	Bought  int64
	Sold    int64
	// Net is the position left by the fills.
	Net int64
	// Cash is the sum of -price*qty in price points. It is the realized
	// result when Net is zero.
	Cash decimal.Decimal
	Tags map[string]int
}

// Flat reports whether the fills closed out.
func (s Summary) Flat() bool {
	return s.Net == 0
}

// MarkToMarket values the open position at last.
func (s Summary) MarkToMarket(last float64) decimal.Decimal {
	return s.Cash.Add(decimal.NewFromFloat(last).Mul(decimal.NewFromInt(s.Net)))
}

// Summarize groups trades by account, sorted by account.
func Summarize(trades []Trade) []Summary {
	byAccount := make(map[string]*Summary)
	for _, t := range trades {
		s, ok := byAccount[t.Account]
		if !ok {
			s = &Summary{Account: t.Account, Tags: make(map[string]int)}
			byAccount[t.Account] = s
		}
		s.Fills++
		if t.Qty > 0 {
			s.Bought += t.Qty
		} else {
			s.Sold -= t.Qty
		}
		s.Net += t.Qty
		s.Cash = s.Cash.Sub(decimal.NewFromFloat(t.Price).Mul(decimal.NewFromInt(t.Qty)))
		if t.Tag != "" {
			s.Tags[t.Tag]++
		}
	}

	out := make([]Summary, 0, len(byAccount))
	for _, s := range byAccount {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
