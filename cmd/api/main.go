package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/audit"
	"chatcall-platform/internal/auth"
	"chatcall-platform/internal/billing"
	"chatcall-platform/internal/calls"
	"chatcall-platform/internal/config"
	"chatcall-platform/internal/earnings"
	"chatcall-platform/internal/events"
	"chatcall-platform/internal/httpapi"
	"chatcall-platform/internal/metrics"
	"chatcall-platform/internal/migration"
	"chatcall-platform/internal/payments"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/reporting"
	"chatcall-platform/internal/rtc"
	"chatcall-platform/internal/wallet"
	"chatcall-platform/pkg/logger"
	"chatcall-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	sqlDB, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: cfg.DB.MaxOpenConns})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if cfg.DB.AutoMigrate {
		if err := migration.RunMigrations(sqlDB); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	db, err := utils.OpenGorm(sqlDB, logger.NewGormLogger(log, 200*time.Millisecond))
	if err != nil {
		log.Error("gorm init failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var publisher events.Publisher = events.LogPublisher{Log: log}
	if cfg.Kafka.Enabled {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers)
		if err != nil {
			log.Error("kafka init failed", "err", err)
			os.Exit(1)
		}
		defer kp.Close()
		publisher = kp
	}

	store := accounts.NewStore(db)
	walletSvc := wallet.NewService(db, log, m)
	pricingSvc := pricing.NewService(pricing.FromBilling(cfg.Billing))
	callRepo := calls.NewRepository(db)
	billingSvc := billing.NewService(db, pricingSvc, store, walletSvc, callRepo, log, m)
	earningsSvc := earnings.NewService(db, store, cfg.Billing, log, m)

	var tokens calls.TokenIssuer
	if cfg.LiveKit.APIKey != "" {
		issuer, err := rtc.NewIssuer(cfg.LiveKit)
		if err != nil {
			log.Error("livekit init failed", "err", err)
			os.Exit(1)
		}
		tokens = issuer
	} else {
		log.Warn("livekit not configured; calls start without join tokens")
	}

	callSvc := calls.NewService(calls.Deps{
		DB:       db,
		Repo:     callRepo,
		Accounts: store,
		Pricing:  pricingSvc,
		Billing:  billingSvc,
		Earnings: earningsSvc,
		Busy:     calls.NewRedisBusyGuard(rdb, cfg.LiveKit.TokenTTL),
		Tokens:   tokens,
		Log:      log,
		Metrics:  m,
	})

	minCallCoins, err := pricingSvc.MinuteCost(pricing.CallTypeAudio, true)
	if err != nil {
		log.Error("pricing init failed", "err", err)
		os.Exit(1)
	}

	h := httpapi.Handlers{
		Auth:      authManager,
		Accounts:  store,
		Wallet:    walletSvc,
		Payments:  payments.NewService(db, walletSvc, cfg.Razorpay.KeySecret, nil, log),
		Calls:     callSvc,
		Earnings:  earningsSvc,
		Reporting: reporting.NewService(reporting.NewGormRepo(db)),
		Audit:     audit.NewService(audit.NewGormRepo(db), log),
		DevTokens: cfg.DevTokensEnabled(),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware(m))
	r.Use(httpapi.ClientIP())

	registerRoutes(r, h, routeDeps{
		authMW:       auth.RequireAccessToken(authManager),
		registry:     registry,
		balances:     walletSvc,
		minCallCoins: minCallCoins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup
	relay := events.NewRelay(db, publisher, log, m, events.RelayConfig{
		Interval:   cfg.Kafka.RelayInterval,
		BatchSize:  cfg.Kafka.RelayBatch,
		MaxRetries: cfg.Kafka.MaxRetryCount,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(rootCtx)
	}()

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	wg.Wait()
	log.Info("shutdown complete")
}
