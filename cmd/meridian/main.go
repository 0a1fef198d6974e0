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

	"github.com/meridian-erp/meridian-erp/internal/accounting"
	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/posting"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)

	accountsCache := accounts.NewCache(redisClient)
	accountsRegistry, err := accounts.NewRegistry(accounts.NewRepository(dbpool), accountsCache, cfg.Accounts)
	if err != nil {
		logger.Error("init account registry", slog.Any("error", err))
		os.Exit(1)
	}
	accountsHandler := accounts.NewHandler(logger, accountsRegistry)

	journalsService := journals.NewService(journals.NewRepository(dbpool))
	journalsHandler := journals.NewHandler(logger, journalsService)

	reportsHandler := reports.NewHandler(logger, accountsRegistry)

	fiscalGuard := fiscal.NewGuard(dbpool)

	ledgerService := accounting.NewService(accounting.NewRepository(dbpool), auditLogger, fiscalGuard, accountsRegistry)
	ledgerHandler := accounting.NewHandler(logger, ledgerService)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	paymentsService := payments.NewService(payments.NewRepository(dbpool), auditLogger)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	metrics := observability.NewMetrics()

	hooks := posting.NewHooks(ledgerService, accountsRegistry, inventoryService, paymentsService, cfg.Journals).WithObserver(metrics)
	postingHandler := posting.NewHandler(logger, hooks)

	documentsHandler := documents.NewHandler()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountingHandler: ledgerHandler,
		AccountsHandler:   accountsHandler,
		JournalsHandler:   journalsHandler,
		ReportsHandler:    reportsHandler,
		InventoryHandler:  inventoryHandler,
		PaymentsHandler:   paymentsHandler,
		PostingHandler:    postingHandler,
		DocumentsHandler:  documentsHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
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
