package tick

import (
	"github.com/shopspring/decimal"
)

// Round snaps price to the nearest multiple of size, ties to even.
func Round(price, size float64) float64 {
	if size <= 0 {
		return price
	}
	step := decimal.NewFromFloat(size)
	steps := decimal.NewFromFloat(price).Div(step).RoundBank(0)
	f, _ := steps.Mul(step).Float64()
	return f
}
