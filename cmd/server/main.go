package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shareit/internal/api"
	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/logging"
	"shareit/internal/metrics"
	"shareit/internal/models"
	"shareit/internal/notify"
	"shareit/internal/repository"
	"shareit/internal/service"
	"shareit/internal/sheets"
	"shareit/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	limiter := buildRateLimiter(redisClient, &logger)

	bus := events.NewEventBus()

	var syncWorker domain.SyncWorker
	sheetsWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger)
	if sheetsWorker != nil {
		syncWorker = sheetsWorker
	}

	initTelegram(cfg, bus, &logger)

	users := service.NewUserService(db, &logger)
	items := service.NewItemService(db, bus, &logger)
	bookings := service.NewBookingService(db, bus, syncWorker, &logger)
	requests := service.NewRequestService(db, &logger)
	export := api.NewExportHandler(db, &logger)

	httpServer := api.NewHTTPServer(*cfg, users, items, bookings, requests, limiter, export, &logger)

	startMetrics(ctx, cfg, &logger)

	go func() {
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	logger.Info().Int("http_port", cfg.HTTP.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// buildRateLimiter prefers redis with a memory fallback; memory only when redis is off.
func buildRateLimiter(redisClient *redis.Client, logger *zerolog.Logger) domain.RateLimiter {
	memory := repository.NewMemoryRateLimiter()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(redisClient), memory, logger)
}

func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.SheetsWorker {
	if !cfg.Google.Enabled {
		return nil
	}

	sheetsService, err := sheets.NewService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets sync")
		return nil
	}
	logger.Info().Msg("google sheets connected")

	retry := worker.RetryPolicy{MaxRetries: cfg.Worker.MaxRetries}
	w := worker.NewSheetsWorker(db, sheetsService, redisClient, retry, logger)
	w.SetPolling(time.Duration(cfg.Worker.IntervalSec)*time.Second, cfg.Worker.BatchSize)

	go w.Start(ctx)

	// Полная пересборка зеркала при старте
	if err := w.EnqueueTask(ctx, models.SyncTaskFullResync, 0, nil, ""); err != nil {
		logger.Warn().Err(err).Msg("enqueue initial resync")
	}

	return w
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled {
		return
	}

	bot, err := notify.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}

	notifier := notify.NewOpsNotifier(bot, cfg.Telegram.OpsChat, logger)
	notifier.Subscribe(bus)
	logger.Info().Int64("ops_chat", cfg.Telegram.OpsChat).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
