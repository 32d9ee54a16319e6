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
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/approval"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/payroll"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/purchasing"
	"github.com/meridian-erp/meridian-erp/internal/sales"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// mirrorActorID attributes status changes applied by the approval mirror.
const mirrorActorID = 0

func main() {
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
		logger.Warn("redis ping", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	refData := cache.NewRefData(redisClient, cfg.RefCacheTTL)
	locks := shared.NewMutex(redisClient, cfg.LockTTL)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	poster := ledger.NewPoster(sequence.NewSequencer(), fiscal.NewCalendar())
	stockLedger := inventory.NewLedger(cfg.AllowNegativeStock)

	masterdataService := masterdata.NewService(masterdata.NewRepository(pool), refData)
	fiscalService := fiscal.NewService(fiscal.NewRepository(pool), locks, auditLogger)
	ledgerService := ledger.NewService(ledger.NewRepository(pool))
	if err := ledgerService.CheckRules(ctx); err != nil {
		logger.Error("posting rule configuration", slog.Any("error", err))
		os.Exit(1)
	}
	inventoryService := inventory.NewService(pool, inventory.NewRepository(pool), stockLedger)
	assetsService := assets.NewService(pool, assets.NewRepository(pool), masterdataService, poster, logger)
	salesService := sales.NewService(pool, sales.NewRepository(pool), masterdataService, stockLedger, poster, auditLogger)
	purchasingService := purchasing.NewService(pool, purchasing.NewRepository(pool), masterdataService, stockLedger, poster, auditLogger)
	treasuryService := treasury.NewService(pool, treasury.NewRepository(pool), masterdataService, poster, idempotencyStore, auditLogger)
	payrollService := payroll.NewService(pool, payroll.NewRepository(pool), masterdataService, poster, auditLogger)

	registry, err := approval.NewRegistry(map[approval.DocumentKind]approval.Mirror{
		approval.DocumentKindSalesInvoice: {
			Approve: func(ctx context.Context, id int64) error {
				return salesService.SetStatus(ctx, id, sales.StatusApproved)
			},
			Cancel: func(ctx context.Context, id int64) error {
				return salesService.SetStatus(ctx, id, sales.StatusCancelled)
			},
		},
		approval.DocumentKindPurchaseInvoice: {
			Approve: func(ctx context.Context, id int64) error {
				return purchasingService.SetStatus(ctx, id, purchasing.StatusApproved)
			},
			Cancel: func(ctx context.Context, id int64) error {
				return purchasingService.SetStatus(ctx, id, purchasing.StatusCancelled)
			},
		},
		approval.DocumentKindPayrollRun: {
			Approve: func(ctx context.Context, id int64) error {
				return payrollService.SetStatus(ctx, id, payroll.StatusApproved, mirrorActorID)
			},
			Cancel: func(ctx context.Context, id int64) error {
				return payrollService.SetStatus(ctx, id, payroll.StatusCancelled, mirrorActorID)
			},
		},
	})
	if err != nil {
		logger.Error("build approval registry", slog.Any("error", err))
		os.Exit(1)
	}
	approvalService := approval.NewService(pool, approval.NewRepository(pool), registry, auditLogger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		MasterDataHandler: masterdata.NewHandler(masterdataService),
		FiscalHandler:     fiscal.NewHandler(logger, fiscalService),
		LedgerHandler:     ledger.NewHandler(ledgerService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		AssetsHandler:     assets.NewHandler(logger, assetsService),
		SalesHandler:      sales.NewHandler(logger, salesService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		TreasuryHandler:   treasury.NewHandler(logger, treasuryService),
		PayrollHandler:    payroll.NewHandler(logger, payrollService),
		ApprovalHandler:   approval.NewHandler(logger, approvalService),
		JobHandler:        jobs.NewHandler(inspector, logger),
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
