package recorder

import (
	"encoding/csv"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
)

var ErrBadHeader = errors.New("trade file header mismatch")

// ReadTrades loads every row of a daily trade file.
func ReadTrades(path string, loc *time.Location) ([]Trade, error) {
	if loc == nil {
		loc = time.Local
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(rows) == 0 || !slices.Equal(rows[0], Header) {
		return nil, ErrBadHeader
	}

	trades := make([]Trade, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ts, err := time.ParseInLocation(timeLayout, row[0], loc)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d time", i+1)
		}
		price, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d price", i+1)
		}
		qty, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d quantity", i+1)
		}
		trades = append(trades, Trade{Time: ts, Price: price, Qty: qty, Account: row[3], Tag: row[4]})
	}
	return trades, nil
}
