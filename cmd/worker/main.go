package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"forexsync/internal/application"
	"forexsync/internal/bootstrap"
	"forexsync/internal/config"
	"forexsync/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	runKind := flag.String("run", "", "run one sync and exit: daily|monthly|backfill")
	months := flag.Int("months", 0, "months of history for -run backfill")
	flag.Parse()

	log := logx.L()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	var once *application.SyncJob
	if *runKind != "" {
		kind, err := application.ParseSyncKind(*runKind)
		if err != nil {
			log.Fatal("invalid -run", zap.Error(err))
		}
		once = &application.SyncJob{Kind: kind, Months: *months}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, cleanup, err := bootstrap.InitWorkerApp(ctx, cfg, once)
	if err != nil {
		log.Fatal("init worker", zap.Error(err))
	}
	defer cleanup()

	if err := run(ctx); err != nil {
		log.Error("worker exited", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}
