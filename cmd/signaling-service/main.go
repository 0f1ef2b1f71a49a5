package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	callHandler "nutritrack-signaling/internal/handler/http/call"
	healthHandler "nutritrack-signaling/internal/handler/http/health"
	notificationHandler "nutritrack-signaling/internal/handler/http/notification"
	pushHandler "nutritrack-signaling/internal/handler/http/push"
	wsHandler "nutritrack-signaling/internal/handler/ws"
	"nutritrack-signaling/internal/middleware"
	"nutritrack-signaling/internal/presence"
	"nutritrack-signaling/internal/repository/cockroach"
	redisRepo "nutritrack-signaling/internal/repository/redis"
	callService "nutritrack-signaling/internal/service/call"
	notificationService "nutritrack-signaling/internal/service/notification"
	"nutritrack-signaling/pkg/config"
	"nutritrack-signaling/pkg/constants"
	"nutritrack-signaling/pkg/database"
	"nutritrack-signaling/pkg/jwt"
	"nutritrack-signaling/pkg/logger"
	"nutritrack-signaling/pkg/metrics"
	"nutritrack-signaling/pkg/push"
	"nutritrack-signaling/pkg/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("Signaling service stopped", zap.Error(err))
	}
	logger.Info("Signaling service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(cfg.Server.ServiceName, promRegistry)

	// 2. CockroachDB
	var db *database.CockroachDB
	err := resilience.Retry(ctx, "connect to CockroachDB", 5, time.Second, 30*time.Second, func(ctx context.Context) error {
		var err error
		db, err = database.NewCockroachDB(ctx, &cfg.Database)
		return err
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Connected to CockroachDB",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	if cfg.Database.RunMigrations {
		if err := db.Migrate(); err != nil {
			return err
		}
		logger.Info("Database migrations applied")
	}

	// 3. Redis
	redisDB, err := database.NewRedisDB(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisDB.Close()
	logger.Info("Connected to Redis", zap.String("host", cfg.Redis.Host))

	// 4. Presence registry
	var (
		registry presence.Registry
		bus      = redisDB.Client
	)
	switch cfg.Presence.Backend {
	case config.PresenceBackendRedis:
		registry = redisRepo.NewPresenceRepository(redisDB.Client, cfg.Presence.TTL)
	default:
		registry = presence.NewMemoryRegistry(cfg.Presence.Shards)
		// A process-local registry never hands out another node's handle.
		bus = nil
	}
	logger.Info("Presence registry ready",
		zap.String("backend", cfg.Presence.Backend),
		zap.String("node_id", cfg.Presence.NodeID))

	// 5. Push notifications
	pushProvider, err := push.NewProvider(ctx, &cfg.Push)
	if err != nil {
		return fmt.Errorf("failed to initialize push provider: %w", err)
	}
	pushProvider = push.NewResilientProvider(pushProvider, resilience.NewCircuitBreaker("push", 5, 30*time.Second))
	pushSvc := push.NewService(pushProvider, redisRepo.NewPushTokenRepository(redisDB.Client), appMetrics)

	// 6. Services
	notificationSvc := notificationService.NewService(cockroach.NewNotificationRepository(db.Pool), pushSvc)
	defer notificationSvc.Wait()

	hub := wsHandler.NewSignalingHub(registry, cfg.Presence.NodeID, bus, cfg.WebSocket, appMetrics)
	callSvc := callService.NewService(
		cockroach.NewCallRepository(db.Pool),
		notificationSvc,
		cockroach.NewUserRepository(db.Pool),
		hub,
		callService.WithMetrics(appMetrics),
	)

	// 7. Handlers
	signalingHdlr := wsHandler.NewSignalingHandler(hub, callSvc, cfg.Server.AllowedOrigins)
	callHdlr := callHandler.NewHandler(callSvc)
	notificationHdlr := notificationHandler.NewHandler(notificationSvc)
	pushHdlr := pushHandler.NewHandler(pushSvc)
	healthHdlr := healthHandler.NewHandler(cfg.Server.ServiceName, map[string]healthHandler.Pinger{
		"database": db,
		"redis":    redisDB,
	})

	// 8. Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.NewPrometheusMiddleware(appMetrics).Handler())

	router.GET("/health", healthHdlr.Health)
	router.GET("/metrics", middleware.MetricsHandler(promRegistry))

	var auth gin.HandlerFunc
	if cfg.JWT.Secret != "" {
		jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Audience, 15*time.Minute)
		auth = middleware.AuthMiddleware(jwtManager, middleware.NewRedisRevocationChecker(redisDB.Client))
	} else {
		logger.Warn("JWT_SECRET not set: signaling and REST endpoints are unauthenticated")
		auth = func(c *gin.Context) { c.Next() }
	}

	// The WebSocket handshake has its own origin check.
	router.GET("/v1/calls/ws/signaling", auth, signalingHdlr.ServeWS)

	rest := router.Group("/v1")
	rest.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	rest.Use(auth)
	rest.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	if cfg.Server.RateLimitRequests > 0 {
		rest.Use(middleware.NewRateLimiter(redisDB.Client, cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow).Middleware())
	}
	{
		rest.GET("/calls/history", callHdlr.GetHistory)
		rest.GET("/calls/:id", callHdlr.GetCall)

		rest.GET("/notifications", notificationHdlr.GetNotifications)
		rest.GET("/notifications/count", notificationHdlr.GetNotificationCount)
		rest.POST("/notifications/:id/read", notificationHdlr.MarkAsRead)
		rest.POST("/notifications/read-all", notificationHdlr.MarkAllAsRead)

		rest.POST("/push/tokens", pushHdlr.RegisterToken)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 9. Run until a signal arrives
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Signaling service starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("websocket", "/v1/calls/ws/signaling"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down signaling service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
		defer cancel()

		hub.Shutdown()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
