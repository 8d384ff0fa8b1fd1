package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genserver/internal/adapter/repo"
	"genserver/internal/infra"
	"genserver/internal/ledger"
	"genserver/internal/provider"
	"genserver/internal/provider/generate"
	"genserver/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	jobs := repo.NewJobRepository(pool)
	batches := repo.NewBatchRepository(pool)
	led := ledger.New(repo.NewLedgerRepository(pool), logger)

	var gen generate.Generator
	if cfg.GeneratorURL != "" {
		gen, err = generate.NewHTTPClient(generate.Options{
			BaseURL:    cfg.GeneratorURL,
			HTTPClient: &http.Client{Timeout: cfg.GeneratorTimeout},
			Logger:     logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: failed to configure generator client")
		}
	} else {
		logger.Warn().Msg("worker: generator url missing, using synthetic generation")
		gen = generate.NewSynthetic()
	}

	workers := worker.NewPool(jobs, batches, gen, led, worker.Options{
		Workers:          cfg.WorkerCount,
		PollInterval:     cfg.WorkerPollInterval,
		GenerateTimeout:  cfg.GeneratorTimeout,
		Retry:            provider.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts, InitialDelay: cfg.RetryInitialDelay},
		CreditsPerJob:    cfg.CreditsPerJob,
		StaleJobAfter:    cfg.StaleJobAfter,
		ReaperInterval:   cfg.ReaperInterval,
		ReaperBatchLimit: cfg.ReaperBatchLimit,
		SettleInterval:   cfg.SettlementInterval,
	}, logger)

	if err := workers.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
