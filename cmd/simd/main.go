package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/uhyunpark/algosim/params"
	"github.com/uhyunpark/algosim/pkg/api"
	"github.com/uhyunpark/algosim/pkg/app/sim"
	"github.com/uhyunpark/algosim/pkg/storage"
	"github.com/uhyunpark/algosim/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, util.ParseLevel(cfg.Node.LogLevel))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Tape ----
	var tape storage.Store = storage.NewInMemoryStore()
	if cfg.Node.TapePath != "" {
		ps, err := storage.NewPebbleStore(cfg.Node.TapePath)
		if err != nil {
			sugar.Fatalw("tape_open_failed", "path", cfg.Node.TapePath, "err", err)
		}
		tape = ps
		sugar.Infow("tape_opened", "path", cfg.Node.TapePath)
	}
	defer tape.Close()

	// ---- Simulator ----
	s, err := sim.New(cfg, tape, sugar)
	if err != nil {
		sugar.Fatalw("sim_init_failed", "err", err)
	}
	sugar.Infow("sim_starting",
		"assets", cfg.Exchange.Assets,
		"participants", cfg.Exchange.Participants,
		"ticks_per_day", cfg.Oracle.TicksPerDay,
		"breadth", cfg.Oracle.Breadth,
		"seed", cfg.Oracle.Seed,
		"tick_interval_ms", cfg.Node.TickInterval.Milliseconds())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server (optional) ----
	apiErr := make(chan error, 1)
	if cfg.Node.APIAddr != "" {
		apiServer := api.NewServer(s, sugar.Named("api"))
		go func() { apiErr <- apiServer.Start(ctx, cfg.Node.APIAddr) }()
	}

	run, err := s.Run(ctx, cfg.Plan)
	if err != nil {
		sugar.Fatalw("run_failed", "err", err)
	}

	rep := run.Report
	fmt.Printf("Run %s (%s %s %g of asset %d over %d ticks)\n",
		run.ID, rep.Algorithm, rep.Side, rep.Requested, rep.Asset, rep.Ticks)
	if rep.Aborted {
		fmt.Printf("Aborted: %s\n", rep.AbortErr)
	}
	fmt.Printf("Slippage was %.2f%%\n", rep.SlippagePct)
	fmt.Printf("Market Impact was %.2f%%\n", rep.MarketImpactPct)
	fmt.Printf("Executed %.2f%% of the order\n", rep.CompletionPct)

	if cfg.Node.APIAddr == "" {
		return
	}
	// keep serving the finished session until interrupted
	select {
	case <-ctx.Done():
	case err := <-apiErr:
		if err != nil {
			sugar.Errorw("api_server_failed", "err", err)
		}
	}
}
