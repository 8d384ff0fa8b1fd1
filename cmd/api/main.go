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
	"genserver/internal/admission"
	"genserver/internal/batchview"
	"genserver/internal/http/handlers"
	"genserver/internal/http/httpapi"
	"genserver/internal/infra"
	"genserver/internal/ledger"
	"genserver/internal/provider"
	paymentprovider "genserver/internal/provider/payment"
	"genserver/internal/reconcile"
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
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	jobs := repo.NewJobRepository(pool)
	batches := repo.NewBatchRepository(pool)
	ledgerRepo := repo.NewLedgerRepository(pool)
	payments := repo.NewPaymentRepository(pool)

	led := ledger.New(ledgerRepo, logger)

	retryPolicy := provider.RetryPolicy{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
	}

	var paymentClient paymentprovider.Provider
	if cfg.PaymentProviderURL != "" {
		paymentClient, err = paymentprovider.NewHTTPClient(paymentprovider.Options{
			BaseURL:    cfg.PaymentProviderURL,
			HTTPClient: &http.Client{Timeout: cfg.PaymentPollTimeout},
			Logger:     logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure payment provider client")
		}
	} else {
		logger.Warn().Msg("no payment provider configured, poll checks will rely on webhooks only")
		paymentClient = unreachableProvider{}
	}

	app := &handlers.App{
		Admission: admission.NewController(jobs, batches, admission.Limits{
			MaxItemsPerBatch: cfg.MaxItemsPerBatch,
			MaxQueuedPerUser: cfg.MaxQueuedPerUser,
		}, logger),
		Batches:    batchview.NewAggregator(jobs, batches, logger),
		Jobs:       jobs,
		Ledger:     led,
		Reconciler: reconcile.New(payments, led, paymentClient, retryPolicy, logger),
		Logger:     logger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// unreachableProvider stands in when no provider endpoint is configured.
type unreachableProvider struct{}

func (unreachableProvider) GetStatus(context.Context, string) (paymentprovider.ProviderStatus, error) {
	return "", errors.New("payment provider not configured")
}
