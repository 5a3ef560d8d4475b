package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"tradingcase/internal/api"
	"tradingcase/internal/backtest"
	"tradingcase/internal/broker"
	"tradingcase/internal/config"
	"tradingcase/internal/domain"
	"tradingcase/internal/engine"
	"tradingcase/internal/marketdata"
	"tradingcase/internal/store"
	"tradingcase/internal/util"
	"tradingcase/pkg/tradingcase"
)

var requestFlags = []cli.Flag{
	&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "ticker symbol", Required: true},
	&cli.StringFlag{Name: "start", Usage: "first date, YYYY-MM-DD", Value: time.Now().AddDate(-1, 0, 0).Format(backtest.DateLayout)},
	&cli.StringFlag{Name: "end", Usage: "last date, YYYY-MM-DD", Value: time.Now().Format(backtest.DateLayout)},
	&cli.Float64Flag{Name: "cash", Usage: "initial cash (default from config)"},
	&cli.IntFlag{Name: "fast", Usage: "fast moving average period (default from config)"},
	&cli.IntFlag{Name: "slow", Usage: "slow moving average period (default from config)"},
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "run one backtest locally",
	ArgsUsage: " ",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "strategy", Usage: "strategy name (see strategies)"},
		&cli.Float64Flag{Name: "commission", Usage: "commission rate per leg", Value: -1},
		&cli.StringFlag{Name: "sizing", Usage: "all-in or fixed"},
		&cli.Float64Flag{Name: "stake", Usage: "units per buy with fixed sizing"},
		&cli.BoolFlag{Name: "close-at-end", Usage: "sell an open position at the last close"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every order"},
		&cli.BoolFlag{Name: "trades", Usage: "print the trade log"},
		&cli.BoolFlag{Name: "json", Usage: "print the full run as JSON"},
		&cli.BoolFlag{Name: "save", Usage: "record the run in the history database"},
	}, requestFlags...),
	Action: runBacktest,
}

var compareCommand = &cli.Command{
	Name:  "compare",
	Usage: "run several strategies over the same series in parallel",
	Flags: append([]cli.Flag{
		&cli.StringSliceFlag{Name: "strategy", Usage: "strategies to compare (default: all)"},
	}, requestFlags...),
	Action: compareStrategies,
}

var strategiesCommand = &cli.Command{
	Name:  "strategies",
	Usage: "list available strategies",
	Action: func(c *cli.Context) error {
		svc, cleanup, err := newLocalService(c, false, nil)
		if err != nil {
			return err
		}
		defer cleanup()
		printStrategies(c.App.Writer, svc.Strategies())
		return nil
	},
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "list recorded runs, or show one with --id",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "show a single run with its trades"},
		&cli.StringFlag{Name: "symbol", Usage: "filter by symbol"},
		&cli.StringFlag{Name: "strategy", Usage: "filter by strategy"},
		&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum runs to list"},
	},
	Action: showHistory,
}

var remoteCommand = &cli.Command{
	Name:  "remote",
	Usage: "run a backtest on a tradingcase-server",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "url", Value: "http://localhost:8000", Usage: "HTTP base URL of the server"},
		&cli.StringFlag{Name: "grpc", Usage: "gRPC address; when set the HTTP URL is ignored"},
		&cli.StringFlag{Name: "strategy", Usage: "strategy name"},
	}, requestFlags...),
	Action: runRemote,
}

// ---------------------------------------------------------------------------
// Local wiring
// ---------------------------------------------------------------------------

func loadConfig() (*config.Config, error) {
	path := configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == "config/tradingcase.yaml" {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, cfg.Validate()
}

// newLocalService builds a Service from the configuration. withHistory opens
// the SQLite run store. mutate may adjust the default parameters.
func newLocalService(c *cli.Context, withHistory bool, mutate func(*backtest.Params)) (*backtest.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	defaults := backtest.ParamsFromConfig(cfg.Backtest)
	if mutate != nil {
		mutate(&defaults)
	}
	level := logLevel
	if defaults.Verbose {
		level = "info"
	}
	logger := util.NewLogger(level, "console")
	cleanup := func() { _ = logger.Sync() }

	var cache *store.ParquetStore
	if cfg.MarketData.Cache {
		cache = store.NewParquetStore(cfg.Storage.DataDir)
	}
	source, err := marketdata.NewSource(cfg, cache, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := backtest.ServiceOptions{
		Source:            source,
		Defaults:          defaults,
		MaxConcurrentRuns: cfg.Backtest.MaxConcurrentRuns,
		Logger:            logger,
	}
	if withHistory {
		runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		opts.Runs = runs
		cleanup = func() {
			_ = runs.Close()
			_ = logger.Sync()
		}
	}

	svc, err := backtest.NewService(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func requestFromFlags(c *cli.Context, defaults backtest.Request) backtest.Request {
	req := defaults
	req.Symbol = c.String("symbol")
	req.StartDate = c.String("start")
	req.EndDate = c.String("end")
	if c.IsSet("cash") {
		req.InitialCash = c.Float64("cash")
	}
	if c.IsSet("fast") {
		req.FastPeriod = c.Int("fast")
	}
	if c.IsSet("slow") {
		req.SlowPeriod = c.Int("slow")
	}
	return req
}

func requestWithStrategy(c *cli.Context, defaults backtest.Request) backtest.Request {
	req := requestFromFlags(c, defaults)
	if s := c.String("strategy"); s != "" {
		req.Strategy = s
	}
	return req
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

func runBacktest(c *cli.Context) error {
	svc, cleanup, err := newLocalService(c, c.Bool("save"), func(p *backtest.Params) {
		if c.Float64("commission") >= 0 {
			p.CommissionRate = c.Float64("commission")
		}
		if c.IsSet("sizing") {
			p.Sizing = broker.Sizing(c.String("sizing"))
		}
		if c.IsSet("stake") {
			p.Stake = c.Float64("stake")
		}
		if c.Bool("close-at-end") {
			p.EndOfSeries = engine.ClosePosition
		}
		if c.Bool("verbose") {
			p.Verbose = true
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := svc.Run(c.Context, requestWithStrategy(c, svc.NewRequest()))
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	printRun(c.App.Writer, run)
	if c.Bool("trades") {
		printTrades(c.App.Writer, run.Report.Trades)
	}
	return nil
}

func compareStrategies(c *cli.Context) error {
	svc, cleanup, err := newLocalService(c, false, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	names := c.StringSlice("strategy")
	if len(names) == 0 {
		for _, info := range svc.Strategies() {
			names = append(names, info.Name)
		}
	}

	var (
		mu   sync.Mutex
		runs []*domain.Run
	)
	g, ctx := errgroup.WithContext(c.Context)
	for _, name := range names {
		g.Go(func() error {
			req := requestFromFlags(c, svc.NewRequest())
			req.Strategy = name
			run, err := svc.Run(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Report.ProfitLoss > runs[j].Report.ProfitLoss })
	printComparison(c.App.Writer, runs)
	return nil
}

func showHistory(c *cli.Context) error {
	svc, cleanup, err := newLocalService(c, true, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if id := c.String("id"); id != "" {
		run, err := svc.GetRun(c.Context, id)
		if err != nil {
			return err
		}
		printRun(c.App.Writer, run)
		printTrades(c.App.Writer, run.Report.Trades)
		return nil
	}

	runs, err := svc.ListRuns(c.Context, store.RunFilter{
		Symbol:   c.String("symbol"),
		Strategy: c.String("strategy"),
		Limit:    c.Int("limit"),
	})
	if err != nil {
		return err
	}
	printHistory(c.App.Writer, runs)
	return nil
}

func runRemote(c *cli.Context) error {
	req := tradingcase.BacktestRequest{
		Symbol:      c.String("symbol"),
		StartDate:   c.String("start"),
		EndDate:     c.String("end"),
		InitialCash: c.Float64("cash"),
		FastPeriod:  c.Int("fast"),
		SlowPeriod:  c.Int("slow"),
		Strategy:    c.String("strategy"),
	}

	if addr := c.String("grpc"); addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return err
		}
		defer conn.Close()

		raw, err := json.Marshal(req)
		if err != nil {
			return err
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return err
		}
		resp, err := api.NewBacktestServiceClient(conn).Run(c.Context, fields)
		if err != nil {
			return err
		}
		printResponse(c.App.Writer, tradingcase.BacktestResponse(*resp))
		return nil
	}

	client := tradingcase.NewClient(c.String("url"))
	resp, err := client.Backtest(c.Context, req)
	if err != nil {
		return err
	}
	printResponse(c.App.Writer, *resp)
	return nil
}
