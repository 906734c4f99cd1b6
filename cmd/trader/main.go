package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"

	"venuetrader/internal/bus"
	"venuetrader/internal/client"
	"venuetrader/internal/history"
	"venuetrader/internal/obs"
	"venuetrader/internal/og"
	"venuetrader/internal/ops"
	"venuetrader/internal/recorder"
	"venuetrader/internal/session"
	"venuetrader/internal/shutdown"
	"venuetrader/internal/state"
	"venuetrader/internal/strategy"
	"venuetrader/pkg/conn"
)

const (
	lifecycleRetention = time.Hour
	dispatchDrain      = 2 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (empty: built-in defaults)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		fatal("config", err)
	}

	stopProfiler, err := obs.StartProfiler(loaded.Profiling)
	if err != nil {
		logs.Warnf("trader: profiler disabled, err: %+v", err)
	}

	metrics := obs.NewMetrics()
	if loaded.Metrics.Addr != "" {
		obs.Serve(loaded.Metrics.Addr, metrics)
		logs.Infof("trader: metrics on %s", loaded.Metrics.Addr)
	}

	ctx := context.Background()
	registry := loaded.Registry
	store := state.NewStore(registry)
	queue := bus.NewQueue(loaded.QueueSize)

	tradingConn := session.New(loaded.Trading, metrics)
	gateway := og.NewGateway(tradingConn, registry, loaded.Gateway, metrics)

	trades, err := recorder.NewTradeLog(loaded.TradeLog)
	if err != nil {
		fatal("trade log", err)
	}
	if err := trades.Start(ctx); err != nil {
		fatal("trade log", err)
	}
	dispatcher := client.NewDispatcher(store, registry, gateway.Lifecycle(), trades, metrics)

	trading := client.NewTrading(loaded.TradingClient(), tradingConn, queue, registry, store, metrics)
	sessions := []shutdown.Session{tradingConn}
	clients := []*client.Client{trading}

	var positions *client.Client
	if loaded.PositionsEnabled() {
		positionsConn := session.New(loaded.Positions, metrics)
		positions = client.NewPositions(loaded.PositionsClient(), positionsConn, queue, registry, store, gateway, metrics)
		sessions = append(sessions, positionsConn)
		clients = append(clients, positions)
	} else {
		logs.Warnf("trader: no positions access token, positions session disabled")
	}

	src, closeHistory := openHistory(loaded.History)
	strategies, err := loaded.BuildStrategies(store, func(account, product string) strategy.Orders {
		return gateway.Route(account, product, og.DefaultWorker)
	}, src)
	if err != nil {
		fatal("strategies", err)
	}
	for _, s := range strategies {
		logs.Infof("trader: strategy %s enabled", s.Name())
	}
	scheduler := strategy.NewScheduler(strategies...)

	dispatched := make(chan struct{})
	exit := func(code int) {
		// fills still queued reach the trade log before it closes
		queue.Close()
		select {
		case <-dispatched:
		case <-time.After(dispatchDrain):
			logs.Warnf("trader: dispatcher still busy after %s", dispatchDrain)
		}
		if err := trades.Close(); err != nil {
			logs.Errorf("trader: close trade log, err: %+v", err)
		}
		closeHistory()
		stopProfiler()
		os.Exit(code)
	}
	coordinator, err := shutdown.New(loaded.Shutdown, store, gateway, scheduler, exit, sessions...)
	if err != nil {
		fatal("shutdown", err)
	}
	coordinator.SetRefresh(func() {
		trading.RequestActiveOrders()
		if positions != nil {
			positions.RequestPositions()
		}
	})
	if positions != nil {
		positions.SetActive(func() bool { return scheduler.Active() || coordinator.Started() })
	}

	for _, c := range clients {
		if err := c.Start(ctx); err != nil {
			fatal("start", err)
		}
		logs.Infof("trader: %s session started", c.Name())
	}

	go func() {
		defer close(dispatched)
		dispatcher.Run(ctx, queue)
	}()
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Infof("trader: signal received")
		case <-console():
			logs.Infof("trader: quit command")
		}
		_ = coordinator.Run(ctx)
	}()

	eg, egCtx := errgroup.WithContext(ctx)
	for _, c := range clients {
		eg.Go(func() error { return c.Run(egCtx) })
	}
	eg.Go(func() error { return scheduler.Run(egCtx) })
	eg.Go(func() error {
		pruneLifecycle(egCtx, gateway.Lifecycle())
		return nil
	})

	if err := eg.Wait(); err != nil {
		logs.Errorf("trader: %+v", err)
	}
	// fail fast: a lost session shuts the process down
	_ = coordinator.Run(ctx)
}

// openHistory connects the warmup store. Without one, strategies start cold.
func openHistory(cfg history.Config) (history.Source, func()) {
	if !cfg.Postgres.Enabled() {
		logs.Warnf("trader: no history store configured, warmup disabled")
		return nil, func() {}
	}
	db, err := conn.New(cfg.Postgres)
	if err != nil {
		logs.Errorf("trader: history store unavailable, warmup disabled, err: %+v", err)
		return nil, func() {}
	}
	src, err := history.NewPostgresSource(db, cfg.Table)
	if err != nil {
		logs.Errorf("trader: history source, err: %+v", err)
		_ = db.Close()
		return nil, func() {}
	}
	return src, func() { _ = db.Close() }
}

// console closes the returned channel when "q" is read from stdin.
func console() <-chan struct{} {
	quit := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if strings.EqualFold(strings.TrimSpace(scanner.Text()), "q") {
				close(quit)
				return
			}
		}
	}()
	return quit
}

func pruneLifecycle(ctx context.Context, lifecycle *og.Lifecycle) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := lifecycle.Prune(now.Add(-lifecycleRetention)); n > 0 {
				logs.Infof("trader: pruned %d tracked orders", n)
			}
		}
	}
}

func fatal(step string, err error) {
	logs.Errorf("trader: %s, err: %+v", step, err)
	os.Exit(1)
}
