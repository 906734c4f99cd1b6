package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/history"
	"venuetrader/internal/ops"
	"venuetrader/internal/paper"
	"venuetrader/internal/strategy"
	"venuetrader/pkg/conn"
	"venuetrader/pkg/exception"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (empty: built-in defaults)")
	product := flag.String("product", "", "Product to replay (default: first configured)")
	from := flag.String("from", "", "Replay start, exchange-local \"2006-01-02 15:04\" (default: latest day in the history)")
	limit := flag.Int("limit", 500_000, "History rows to load")
	worker := flag.String("worker", "w", "Worker tag of strategy orders")
	flag.Parse()

	cfg, err := ops.LoadFile(*configPath)
	if err != nil {
		fatal("config", err)
	}
	loaded, err := ops.ResolveLocal(cfg)
	if err != nil {
		fatal("config", err)
	}
	if *product == "" {
		*product = loaded.Products[0].Name
	}

	ctx := context.Background()
	db, err := conn.New(loaded.History.Postgres)
	if err != nil {
		fatal("history store", err)
	}
	defer func() { _ = db.Close() }()
	src, err := history.NewPostgresSource(db, loaded.History.Table)
	if err != nil {
		fatal("history source", err)
	}
	ticks, err := src.Ticks(ctx, *product, *limit)
	if err != nil {
		fatal("history", err)
	}
	if len(ticks) == 0 {
		fatal("history", errors.Wrap(exception.ErrHistoryEmpty, *product))
	}

	start, err := replayStart(*from, ticks, loaded.Location)
	if err != nil {
		fatal("from", err)
	}
	warm, replay := paper.Split(ticks, start)
	logs.Infof("paper: %d warmup and %d replay trades from %s", len(warm), len(replay), start)

	venue, err := paper.NewVenue(loaded.Paper, loaded.Registry)
	if err != nil {
		fatal("venue", err)
	}
	if err := venue.Open(*product, loaded.Accounts...); err != nil {
		fatal("venue", err)
	}
	strategies, err := loaded.BuildStrategies(venue.Store(), func(account, product string) strategy.Orders {
		return venue.Route(account, product, *worker)
	}, history.Static{*product: warm})
	if err != nil {
		fatal("strategies", err)
	}

	report, err := paper.Replay(ctx, venue, *product, replay, strategies...)
	if err != nil {
		fatal("replay", err)
	}

	for _, f := range report.Fills {
		fmt.Printf("%s %-7s %-6s %3d @ %-10v %s\n", f.Time.In(loaded.Location).Format("2006-01-02 15:04:05"), f.Account, f.Product, f.Qty, f.Price, f.Tag)
	}
	fmt.Printf("ticks=%d steps=%d finished=%v\n", report.Ticks, report.Steps, report.Finished)
	for _, a := range report.Accounts {
		fmt.Printf("%-7s fills=%d position=%d pnl=%.2f\n", a.Account, a.Fills, a.Position, a.PnL)
	}
}

// replayStart parses from, or picks the start of the latest local day in
// ticks.
func replayStart(from string, ticks []history.Tick, loc *time.Location) (time.Time, error) {
	if from != "" {
		return time.ParseInLocation("2006-01-02 15:04", from, loc)
	}
	last := ticks[len(ticks)-1].Time.In(loc)
	return time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc), nil
}

func fatal(step string, err error) {
	logs.Errorf("paper: %s, err: %+v", step, err)
	os.Exit(1)
}
