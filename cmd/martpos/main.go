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
	"golang.org/x/sync/errgroup"

	"github.com/martpos/martpos/internal/app"
	"github.com/martpos/martpos/internal/auth"
	"github.com/martpos/martpos/internal/billing"
	"github.com/martpos/martpos/internal/billing/returns"
	"github.com/martpos/martpos/internal/cart"
	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/loyalty"
	"github.com/martpos/martpos/internal/observability"
	"github.com/martpos/martpos/internal/platform/cache"
	"github.com/martpos/martpos/internal/platform/db"
	"github.com/martpos/martpos/internal/promo"
	"github.com/martpos/martpos/internal/receiving"
	"github.com/martpos/martpos/internal/shared"
	"github.com/martpos/martpos/internal/users"
	"github.com/martpos/martpos/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.LockTimeout)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionTTL)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)
	authHandler := auth.NewHandler(logger, usersService, sessionManager)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	cartStore := cart.NewStore(redisClient)
	cartHandler := cart.NewHandler(logger, cartStore, catalogService)

	stockLedger := ledger.New(logger)
	ledgerRepo := ledger.NewRepository(pool)
	adjuster := ledger.NewAdjuster(pool, stockLedger)
	inventoryHandler := ledger.NewHandler(logger, ledgerRepo, adjuster)

	promoRepo := promo.NewRepository(pool, logger)
	promoHandler := promo.NewHandler(logger, promoRepo)

	loyaltyRepo := loyalty.NewRepository(pool)
	loyaltyService := loyalty.NewService(loyaltyRepo)
	loyaltyHandler := loyalty.NewHandler(logger, loyaltyService)

	receivingService := receiving.NewService(pool, stockLedger, logger)
	receivingHandler := receiving.NewHandler(logger, receivingService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	billingRepo := billing.NewRepository(pool)
	receiptRenderer := billing.NewRenderer(billingRepo, cfg.StoreName)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	billingService := billing.NewService(
		billing.NewPgStore(pool),
		cartStore,
		promoRepo,
		stockLedger,
		jobsClient,
		receiptRenderer,
		idempotencyStore,
		logger,
	)
	billingHandler := billing.NewHandler(logger, billingService, billingRepo, receiptRenderer)

	returnsService := returns.NewService(returns.NewPgStore(pool), stockLedger, logger)
	returnsHandler := returns.NewHandler(logger, returnsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		RoleResolver:     usersRepo.RoleByID,
		AuthHandler:      authHandler,
		CatalogHandler:   catalogHandler,
		CartHandler:      cartHandler,
		BillingHandler:   billingHandler,
		ReturnsHandler:   returnsHandler,
		LoyaltyHandler:   loyaltyHandler,
		ReceivingHandler: receivingHandler,
		InventoryHandler: inventoryHandler,
		PromoHandler:     promoHandler,
		UsersHandler:     usersHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
