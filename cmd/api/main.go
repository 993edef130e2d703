package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/shuffle/internal/analytics"
	"github.com/SergeiKhy/shuffle/internal/config"
	"github.com/SergeiKhy/shuffle/internal/handler"
	"github.com/SergeiKhy/shuffle/internal/middleware"
	"github.com/SergeiKhy/shuffle/internal/repository"
	"github.com/SergeiKhy/shuffle/internal/repository/migrations"
	"github.com/SergeiKhy/shuffle/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Миграции схемы PostgreSQL
	migrator, err := migrations.New(repository.DSN(cfg.DB), logger)
	if err != nil {
		logger.Fatal("Failed to init migrations", zap.Error(err))
	}
	if err := migrator.Up(); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("Failed to close migrator", zap.Error(err))
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	stores := map[string]handler.Pinger{
		"postgres": db,
		"redis":    redis,
	}

	// Инициализация репозиториев
	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)

	var clickRepo repository.ClickRepository
	switch cfg.Clicks.Store {
	case config.ClickStoreClickHouse:
		ch, err := repository.NewClickHouseDB(cfg.ClickHouse)
		if err != nil {
			logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
		}
		defer ch.Close()
		stores["clickhouse"] = ch
		clickRepo = repository.NewClickHouseClickRepository(ch)
		logger.Info("Click log stored in ClickHouse")
	default:
		clickRepo = repository.NewClickRepository(db)
		logger.Info("Click log stored in PostgreSQL")
	}

	// Партиции журнала кликов на текущий и следующий месяц
	maintainer := service.NewPartitionMaintainer(clickRepo, cfg.Clicks.MaintenanceCron, logger)
	if err := maintainer.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start partition maintenance", zap.Error(err))
	}
	defer maintainer.Stop()

	// Инициализация сервисов
	linkService := service.NewLinkService(linkRepo, cacheRepo, logger)

	// Инициализация процессора кликов (Worker Pool)
	clickProcessor := service.NewClickProcessor(clickRepo, logger)
	clickProcessor.Start()
	defer clickProcessor.Stop()

	tracker := service.NewPixelTracker(cfg.Pixel, logger)
	redirectService := service.NewRedirectService(linkService, clickProcessor, tracker, cfg.Pixel.Timeout, logger)
	authService := service.NewAuthService(cfg.Auth)

	engine := analytics.NewEngine(linkRepo, clickRepo, analytics.Options{
		BaseURL:          cfg.App.BaseURL,
		Location:         cfg.App.Location(),
		Partitions:       cfg.Clicks.Partitions,
		FetchTimeout:     cfg.Clicks.FetchTimeout,
		FetchConcurrency: cfg.Clicks.FetchConcurrency,
	}, logger)

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	adminAuth := middleware.NewAdminAuth(middleware.AdminAuthConfig{
		APIKeys: cfg.Auth.APIKeys,
		Tokens:  authService,
		Logger:  logger,
	})

	// Настройка роутера
	router := handler.NewRouter(handler.RouterConfig{
		Links:       handler.NewLinkHandler(linkService, cfg.App.BaseURL, logger),
		Redirects:   handler.NewRedirectHandler(redirectService, linkService, clickProcessor, cfg.App.FallbackPath, logger),
		Dashboard:   handler.NewDashboardHandler(engine, logger),
		Auth:        handler.NewAuthHandler(authService, logger),
		Health:      handler.NewHealthHandler(stores, clickProcessor),
		RateLimiter: rateLimiter,
		AdminAuth:   adminAuth,
		CORSOrigins: cfg.App.CORSOrigins,
		Logger:      logger,
	})

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("base_url", cfg.App.BaseURL),
			zap.String("timezone", cfg.App.Location().String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
