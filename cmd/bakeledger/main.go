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

	"github.com/bakeledger/bakeledger/internal/app"
	"github.com/bakeledger/bakeledger/internal/catalog"
	"github.com/bakeledger/bakeledger/internal/creditnote"
	"github.com/bakeledger/bakeledger/internal/invoicing"
	"github.com/bakeledger/bakeledger/internal/ledger"
	"github.com/bakeledger/bakeledger/internal/observability"
	"github.com/bakeledger/bakeledger/internal/platform/cache"
	"github.com/bakeledger/bakeledger/internal/platform/db"
	"github.com/bakeledger/bakeledger/internal/returns"
	"github.com/bakeledger/bakeledger/internal/sales"
	"github.com/bakeledger/bakeledger/internal/settlement"
	"github.com/bakeledger/bakeledger/internal/shared"
	"github.com/bakeledger/bakeledger/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, availability cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	availabilityCache := cache.NewJSONCache(redisClient, cfg.AvailabilityCacheTTL, "ledger:availability")

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	catalogHandler := catalog.NewHandler(logger, catalogService)

	ledgerService := ledger.NewService(ledger.NewRepository(pool), availabilityCache, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	invoicingRepo := invoicing.NewRepository(pool)
	invoicingService := invoicing.NewService(invoicingRepo, catalogService, auditLogger, ledgerService, metrics)
	invoicingHandler := invoicing.NewHandler(logger, invoicingService, invoicingRepo)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, auditLogger, idempotency, ledgerService, metrics)
	salesHandler := sales.NewHandler(logger, salesService, salesRepo)

	returnsRepo := returns.NewRepository(pool)
	returnsService := returns.NewService(returnsRepo, auditLogger, ledgerService)
	returnsHandler := returns.NewHandler(logger, returnsService, returnsRepo)

	creditNoteRepo := creditnote.NewRepository(pool)
	creditNoteService := creditnote.NewService(creditNoteRepo, auditLogger, logger, metrics)
	creditNoteHandler := creditnote.NewHandler(logger, creditNoteService, creditNoteRepo)

	settlementRepo := settlement.NewRepository(pool)
	settlementService := settlement.NewService(settlementRepo, auditLogger, logger, metrics)
	settlementHandler := settlement.NewHandler(logger, settlementService, settlementRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		CatalogHandler:    catalogHandler,
		LedgerHandler:     ledgerHandler,
		InvoicingHandler:  invoicingHandler,
		SalesHandler:      salesHandler,
		ReturnsHandler:    returnsHandler,
		CreditNoteHandler: creditNoteHandler,
		SettlementHandler: settlementHandler,
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
		logger.Info("server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
