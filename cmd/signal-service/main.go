package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orgchat-backend/internal/config"
	intDatabase "orgchat-backend/internal/database"
	presenceHandler "orgchat-backend/internal/handler/http/presence"
	pushHandler "orgchat-backend/internal/handler/http/push"
	signalHandler "orgchat-backend/internal/handler/http/signal"
	wsHandler "orgchat-backend/internal/handler/ws"
	"orgchat-backend/internal/middleware"
	postgresRepo "orgchat-backend/internal/repository/postgres"
	redisRepo "orgchat-backend/internal/repository/redis"
	presenceService "orgchat-backend/internal/service/presence"
	signalService "orgchat-backend/internal/service/signal"
	"orgchat-backend/pkg/constants"
	"orgchat-backend/pkg/jwt"
	"orgchat-backend/pkg/logger"
	"orgchat-backend/pkg/metrics"
	"orgchat-backend/pkg/push"
)

func main() {
	ctx := context.Background()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize logger
	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	productionMode := cfg.Server.Environment == "production"
	if productionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 3. Setup JWT manager
	if cfg.JWT.Secret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)

	// 4. Connect to Postgres (directory lookups) with exponential backoff.
	// The service still starts without it: name lookups fall back to ids and
	// conversation channels deny until the directory is reachable.
	dbConfig := &intDatabase.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}

	db := connectPostgres(ctx, dbConfig)
	if db != nil {
		defer db.Close()
	} else {
		logger.Warn("Running in limited mode without directory lookups")
	}

	// 5. Initialize Redis with degraded mode support
	redisDB, err := intDatabase.NewRedisDB(&intDatabase.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisDB.Close()

	appMetrics := metrics.NewMetrics(cfg.Server.ServiceName)
	redisDB.OnDegradedChange(appMetrics.SetRedisDegraded)

	if err := redisDB.HealthCheck(ctx); err != nil {
		logger.Warn("Redis unreachable at startup, entering degraded mode", zap.Error(err))
	}
	healthCtx, stopHealthCheck := context.WithCancel(ctx)
	defer stopHealthCheck()
	redisDB.StartHealthCheck(healthCtx, 10*time.Second)

	// 6. Initialize push notifications
	pushProvider, err := push.NewProvider()
	if err != nil {
		if productionMode {
			logger.Fatal("Failed to initialize push provider", zap.Error(err))
		}
		logger.Warn("Push provider unavailable, falling back to mock", zap.Error(err))
		pushProvider = &push.MockProvider{}
	}
	if _, isMock := pushProvider.(*push.MockProvider); isMock && productionMode {
		logger.Fatal("Mock push provider is not allowed in production")
	}
	pushTokenRepo := redisRepo.NewPushTokenRepository(redisDB)
	pushSvc := push.NewService(pushProvider, pushTokenRepo, appMetrics)
	logger.Info("Push provider initialized", zap.String("provider", pushProvider.Name()))

	// 7. Repositories
	callStateRepo := redisRepo.NewCallStateRepository(redisDB, cfg.Call.StateTTL, cfg.Call.PendingTTL)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB, cfg.Presence.TTL)

	var directoryRepo *postgresRepo.DirectoryRepository
	if db != nil {
		directoryRepo = postgresRepo.NewDirectoryRepository(db.Pool)
	} else {
		directoryRepo = postgresRepo.NewDirectoryRepository(nil)
	}

	// 8. Realtime hub and publisher
	authorizer := wsHandler.NewChannelAuthorizer(directoryRepo)
	hub := wsHandler.NewHub(redisDB, authorizer, callStateRepo, appMetrics)
	publisher := wsHandler.NewRedisPublisher(redisDB)

	// 9. Services
	signalSvc := signalService.NewService(callStateRepo, directoryRepo, publisher, pushSvc)
	presenceSvc := presenceService.NewService(presenceRepo, appMetrics)

	// 10. Handlers
	signalHdlr := signalHandler.NewHandler(signalSvc, callStateRepo, appMetrics)
	presenceHdlr := presenceHandler.NewHandler(presenceSvc)
	pushHdlr := pushHandler.NewHandler(pushSvc)
	channelAuthHdlr := wsHandler.NewAuthHandler(authorizer)

	// 11. Router
	router := gin.New()
	router.SetTrustedProxies(nil)

	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":         "healthy",
			"service":        cfg.Server.ServiceName,
			"redis_degraded": redisDB.IsDegraded(),
			"time":           time.Now().UTC(),
		})
	})
	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	revocationChecker := middleware.NewRedisRevocationChecker(redisDB)
	auth := middleware.AuthMiddleware(jwtManager, revocationChecker)
	rateLimiter := middleware.NewRateLimiter(redisDB, constants.SignalRateLimit, constants.SignalRateWindow)

	calls := router.Group("/v1/calls")
	calls.Use(auth, rateLimiter.Middleware())
	{
		calls.POST("/signal", signalHdlr.Signal)
		calls.GET("/pending", signalHdlr.PendingCall)
		calls.GET("/state", signalHdlr.CallState)
	}

	presence := router.Group("/v1/presence")
	presence.Use(auth)
	{
		presence.POST("/heartbeat", presenceHdlr.Heartbeat)
		presence.POST("/offline", presenceHdlr.Offline)
		presence.GET("/online", presenceHdlr.GetOnline)
		presence.GET("/:user_id", presenceHdlr.GetStatus)
	}

	realtime := router.Group("/v1/realtime")
	realtime.Use(auth)
	{
		realtime.GET("/ws", hub.ServeWS)
		realtime.POST("/auth", channelAuthHdlr.Authorize)
	}

	pushTokens := router.Group("/v1/push")
	pushTokens.Use(auth)
	{
		pushTokens.POST("/tokens", pushHdlr.RegisterToken)
		pushTokens.DELETE("/tokens", pushHdlr.UnregisterToken)
		pushTokens.DELETE("/tokens/all", pushHdlr.UnregisterAllTokens)
	}

	// 12. Start server with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Signal service starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down signal service")
	stopHealthCheck()
	shutdownCtx, cancel := context.WithTimeout(ctx, constants.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}

// connectPostgres dials the directory database with exponential backoff,
// returning nil when it stays unreachable
func connectPostgres(ctx context.Context, cfg *intDatabase.PostgresConfig) *intDatabase.PostgresDB {
	maxRetries := 5
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	db, err := intDatabase.NewPostgresDB(ctx, cfg)
	if err == nil {
		logger.Info("Connected to Postgres")
		return db
	}

	for attempt := 2; attempt <= maxRetries; attempt++ {
		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		logger.Warn("Postgres connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		time.Sleep(delay)

		db, err = intDatabase.NewPostgresDB(ctx, cfg)
		if err == nil {
			logger.Info("Connected to Postgres", zap.Int("attempt", attempt))
			return db
		}
	}

	logger.Error("Failed to connect to Postgres", zap.Int("attempts", maxRetries), zap.Error(err))
	return nil
}
