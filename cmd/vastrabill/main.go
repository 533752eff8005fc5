package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vastrabill/vastrabill/internal/app"
	"github.com/vastrabill/vastrabill/internal/billing"
	"github.com/vastrabill/vastrabill/internal/company"
	"github.com/vastrabill/vastrabill/internal/customers"
	"github.com/vastrabill/vastrabill/internal/gstin"
	"github.com/vastrabill/vastrabill/internal/ledger"
	"github.com/vastrabill/vastrabill/internal/observability"
	"github.com/vastrabill/vastrabill/internal/platform/cache"
	"github.com/vastrabill/vastrabill/internal/platform/db"
	"github.com/vastrabill/vastrabill/internal/shared"
	"github.com/vastrabill/vastrabill/internal/tax"
	"github.com/vastrabill/vastrabill/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, statements served uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	idempotencyStore := shared.NewIdempotencyStore(pool)

	var registry *gstin.RegistryClient
	if cfg.GSTRegistryURL != "" {
		registry = gstin.NewRegistryClient(cfg.GSTRegistryURL, cfg.GSTRegistryTimeout)
	}
	gstinHandler := gstin.NewHandler(logger, registry)
	taxHandler := tax.NewHandler(logger)

	companyRepo := company.NewRepository(pool)
	companyService := company.NewService(companyRepo)
	companyHandler := company.NewHandler(logger, companyService)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService)

	ledgerRepo := ledger.NewRepository(pool)
	statementCache := ledger.NewStatementCache(redisClient, cfg.StatementCacheTTL)
	ledgerService := ledger.NewService(ledgerRepo, statementCache, idempotencyStore, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, companyService, ledgerService, logger)
	billingHandler := billing.NewHandler(logger, billingService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		GstinHandler:     gstinHandler,
		TaxHandler:       taxHandler,
		CustomersHandler: customersHandler,
		CompanyHandler:   companyHandler,
		BillingHandler:   billingHandler,
		LedgerHandler:    ledgerHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
