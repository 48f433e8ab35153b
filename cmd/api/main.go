package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/auth"
	"faircore-backend/internal/chain"
	"faircore-backend/internal/config"
	"faircore-backend/internal/events"
	"faircore-backend/internal/fairness"
	"faircore-backend/internal/handlers"
	"faircore-backend/internal/logging"
	"faircore-backend/internal/metrics"
	"faircore-backend/internal/middleware"
	"faircore-backend/internal/monitor"
	"faircore-backend/internal/multisig"
	"faircore-backend/internal/payout"
	"faircore-backend/internal/pool"
	"faircore-backend/internal/security"
	"faircore-backend/internal/session"
	"faircore-backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.Configure(logging.LevelFor(cfg.Env))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	var kv store.KV
	redisStore, err := store.NewRedis(cfg.RedisURL, cfg.RedisPass, cfg.RedisDB)
	switch {
	case err == nil:
		defer redisStore.Close()
		kv = redisStore
		logger.Info("using redis store", zap.String("addr", cfg.RedisURL))
	case cfg.Env == "production":
		logger.Fatal("failed to connect to redis", zap.Error(err))
	default:
		kv = store.NewMemory(clk)
		logger.Warn("redis unavailable, using in-memory store", zap.Error(err))
	}

	var chainClient chain.Client
	if cfg.ChainMock {
		mock := chain.NewMock()
		mock.SetBalance(cfg.PoolWallet, cfg.InitialPool)
		chainClient = mock
		logger.Warn("using mock chain client")
	} else {
		chainClient = chain.NewRPC(cfg.ChainRPC)
	}

	bus := events.NewBus()
	engine := fairness.NewEngine()
	sessions := session.NewManager(kv, engine, clk, logger)

	ledger := pool.NewLedger(kv, clk, logger, bus, pool.Options{
		InitialBalance:     cfg.InitialPool,
		ReserveRatio:       cfg.ReserveRatio,
		MaxDailyWithdrawal: cfg.Payouts.MaxDailyWithdrawal,
		MaxSingleTx:        cfg.Payouts.MaxSingleTx,
	})
	if err := ledger.Init(ctx); err != nil {
		logger.Fatal("failed to initialize pool ledger", zap.Error(err))
	}

	gas := chain.NewGasTracker(chainClient, clk, logger)
	mon, err := monitor.New(chainClient, clk, logger, monitor.Options{
		From:           cfg.PoolWallet,
		ConfirmTimeout: cfg.Payouts.ConfirmTimeout,
		MaxAttempts:    cfg.Payouts.SubmitAttempts,
	})
	if err != nil {
		logger.Fatal("failed to start transaction monitor", zap.Error(err))
	}

	msig := multisig.NewService(kv, clk, logger, bus, cfg.Signers)
	limiter := payout.NewRateLimiter(clk,
		payout.LimitRule{Limit: cfg.RateLimits.SensitiveLimit, Window: cfg.RateLimits.SensitiveWindow},
		payout.LimitRule{Limit: cfg.RateLimits.GeneralLimit, Window: cfg.RateLimits.GeneralWindow})

	orch := payout.NewOrchestrator(cfg.Payouts, payout.Deps{
		Records:  payout.NewRecords(kv),
		Locks:    payout.NewLocks(kv, cfg.Payouts.LockTTL),
		Limiter:  limiter,
		Ledger:   ledger,
		Multisig: msig,
		Monitor:  mon,
		Audit:    &security.StaticChecker{},
		Gas:      gas,
		Bus:      bus,
		Clock:    clk,
		Logger:   logger,
	})

	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry, clk)

	sessions.StartSweeper(ctx)
	ledger.StartSweeper(ctx)
	msig.StartSweeper(ctx)
	mon.StartPolling(ctx)
	gas.StartRefresher(ctx)
	limiter.StartTrimmer(ctx)
	startMetricsFeed(ctx, bus, mon)
	metrics.StartPromServer(ctx, logger, cfg.PromPort)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ObserveMiddleware(logger))

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	authHandler := handlers.NewAuthHandler(authService, cfg.Env, logger)
	gameHandler := handlers.NewGameHandler(sessions, engine, logger)
	payoutHandler := handlers.NewPayoutHandler(orch, logger)
	proposalHandler := handlers.NewProposalHandler(msig, logger)
	wsHandler := handlers.NewWebSocketHandler(bus, logger)

	router.GET("/readyz", func(c *gin.Context) {
		if _, err := kv.Get(c.Request.Context(), store.KeyPoolState); err != nil && err != store.ErrNotFound {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sensitiveLimit := middleware.RateLimitMiddleware(limiter, payout.ClassSensitive)

	router.POST("/auth/token", sensitiveLimit, authHandler.Token)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(authService))
	protected.Use(middleware.RateLimitMiddleware(limiter, payout.ClassGeneral))
	{
		protected.GET("/ws", wsHandler.HandleWebSocket)

		games := protected.Group("/games")
		games.Use(middleware.RequirePermission(auth.PermissionPlay))
		{
			games.POST("/session", gameHandler.CreateSession)
			games.POST("/play", sensitiveLimit, gameHandler.Play)
			games.POST("/reveal", gameHandler.Reveal)
			games.POST("/verify", gameHandler.Verify)
		}

		payouts := protected.Group("/payouts")
		payouts.Use(middleware.RequirePermission(auth.PermissionPayout))
		{
			payouts.POST("", payoutHandler.Create)
			payouts.GET("", payoutHandler.History)
		}

		proposals := protected.Group("/proposals")
		{
			proposals.GET("/:id", proposalHandler.Get)
			proposals.POST("/:id/sign", middleware.RequirePermission(auth.PermissionSign), proposalHandler.Sign)
		}
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}

// startMetricsFeed mirrors bus events and breaker state into prometheus.
func startMetricsFeed(ctx context.Context, bus *events.Bus, mon *monitor.Monitor) {
	ch, cancel := bus.Subscribe(events.TopicPoolBalance)
	ticker := time.NewTicker(15 * time.Second)

	go func() {
		defer cancel()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if balance, ok := ev.Payload.(float64); ok {
					metrics.RecordPoolBalance(balance)
				}
			case <-ticker.C:
				metrics.RecordBreakerState("tx_submit", mon.BreakerState() == apperr.BreakerOpen)
			}
		}
	}()
}
