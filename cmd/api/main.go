package main

import (
	"context"
	"errors"
	"fmt"
	"iap-entitlement-service/internal/client"
	"iap-entitlement-service/internal/config"
	"iap-entitlement-service/internal/lock"
	"iap-entitlement-service/internal/logger"
	"iap-entitlement-service/internal/metrics"
	"iap-entitlement-service/internal/repository"
	"iap-entitlement-service/internal/server"
	"iap-entitlement-service/internal/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}

	ctx := context.Background()

	db, err := client.InitDBClient(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("init database", zap.Error(err))
	}

	rdb, err := client.InitRedisClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal("init redis", zap.Error(err))
	}
	if rdb == nil {
		log.Warn("REDIS_ADDR not set, catalog cache and per-user lock disabled")
	} else {
		defer rdb.Close()
	}

	metrics.Register()

	appStoreClient := client.NewAppStoreClient(&cfg.AppStore)

	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	packageRepo := repository.NewCachedPackageRepository(
		repository.NewPackageRepository(db), rdb, cfg.Catalog.CacheTTL, log,
	)

	catalog := service.NewCatalogResolver(packageRepo)
	purchaseService := service.NewPurchaseService(
		db,
		appStoreClient,
		cfg.AppStore.SharedSecret,
		cfg.Catalog.ProductID(),
		userRepo,
		paymentRepo,
		catalog,
		service.NewTrialEligibilityEvaluator(paymentRepo),
		service.NewPurchaseAcceptancePolicy(),
		service.NewEntitlementLedger(paymentRepo, userRepo),
		lock.NewUserLocker(rdb, cfg.Redis.LockTTL, cfg.Redis.LockWait),
		log,
	)
	userService := service.NewUserService(userRepo)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(purchaseService, catalog, userService, cfg.Auth.JWTSecret, log)

	log.Info("starting HTTP server",
		zap.String("addr", serverAddr),
		zap.String("environment", cfg.Environment.Name),
		zap.String("appstore_environment", cfg.AppStore.Environment),
	)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
}
