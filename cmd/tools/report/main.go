package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/yanun0323/logs"

	"venuetrader/internal/ops"
	"venuetrader/internal/recorder"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (empty: built-in defaults)")
	from := flag.String("from", "", "First day, \"2006-01-02\" (default: every file)")
	to := flag.String("to", "", "Last day, \"2006-01-02\" (default: every file)")
	mark := flag.Float64("mark", 0, "Price to value open positions at (0: skip)")
	flag.Parse()

	cfg, err := ops.LoadFile(*configPath)
	if err != nil {
		fatal("config", err)
	}
	loaded, err := ops.ResolveLocal(cfg)
	if err != nil {
		fatal("config", err)
	}

	paths, err := filepath.Glob(filepath.Join(loaded.TradeLog.Dir, "*.csv"))
	if err != nil {
		fatal("trade files", err)
	}
	sort.Strings(paths)

	var trades []recorder.Trade
	for _, path := range paths {
		day := strings.TrimSuffix(filepath.Base(path), ".csv")
		if (*from != "" && day < *from) || (*to != "" && day > *to) {
			continue
		}
		rows, err := recorder.ReadTrades(path, loaded.Location)
		if err != nil {
			logs.Warnf("report: skip %s, err: %+v", path, err)
			continue
		}
		trades = append(trades, rows...)
	}
	if len(trades) == 0 {
		fmt.Println("no trades")
		return
	}

	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Time.Before(trades[j].Time) })
	fmt.Printf("%d trades from %s to %s\n", len(trades),
		trades[0].Time.In(loaded.Location).Format(time.DateTime),
		trades[len(trades)-1].Time.In(loaded.Location).Format(time.DateTime))

	for _, s := range recorder.Summarize(trades) {
		line := fmt.Sprintf("%-7s fills=%d bought=%d sold=%d net=%d", s.Account, s.Fills, s.Bought, s.Sold, s.Net)
		switch {
		case s.Flat():
			line += " realized=" + s.Cash.StringFixed(2)
		case *mark > 0:
			line += " marked=" + s.MarkToMarket(*mark).StringFixed(2)
		default:
			line += " open"
		}
		fmt.Println(line)

		tags := make([]string, 0, len(s.Tags))
		for tag := range s.Tags {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			fmt.Printf("  %-16s %d\n", tag, s.Tags[tag])
		}
	}
}

func fatal(step string, err error) {
	logs.Errorf("report: %s, err: %+v", step, err)
	os.Exit(1)
}
