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

	"pawsit/internal/config"
	"pawsit/internal/database"
	"pawsit/internal/domain"
	"pawsit/internal/google"
	"pawsit/internal/logging"
	"pawsit/internal/metrics"
	"pawsit/internal/notify"
	"pawsit/internal/render"
	"pawsit/internal/repository"
	"pawsit/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
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
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	renderer := render.NewExcelRenderer(&logger)
	notifier := buildNotifier(cfg, &logger)
	ledger := initLedger(cfg, &logger)

	retryPolicy := worker.RetryPolicy{
		MaxRetries:    cfg.Worker.MaxRetries,
		InitialDelay:  cfg.Worker.InitialDelay.Std(),
		MaxDelay:      cfg.Worker.MaxDelay.Std(),
		BackoffFactor: cfg.Worker.BackoffFactor,
	}

	effectsWorker := worker.NewEffectsWorker(db, renderer, notifier, ledger, redisClient,
		retryPolicy, cfg.Exports.Path, &logger)
	effectsWorker.SetPollInterval(cfg.Worker.PollInterval.Std())
	effectsWorker.SetBatchSize(cfg.Worker.BatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	go effectsWorker.RunOverdueSweep(ctx, cfg.Worker.OverdueSweep.Std())
	effectsWorker.Start(ctx)

	logger.Info().Msg("worker stopped")
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
	logger := baseLogger.With().Str("component", "worker-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func buildNotifier(cfg *config.Config, logger *zerolog.Logger) domain.NotificationDispatcher {
	if !cfg.Notifications.Enabled || cfg.Notifications.BotToken == "" {
		return notify.NewLogDispatcher(logger)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Notifications.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, falling back to log notifications")
		return notify.NewLogDispatcher(logger)
	}

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
	return notify.NewTelegramDispatcher(bot, cfg.Notifications.OpsChatID, logger)
}

func initLedger(cfg *config.Config, logger *zerolog.Logger) domain.LedgerWriter {
	if cfg.Google.CredentialsFile == "" || cfg.Google.LedgerSpreadsheetID == "" {
		logger.Info().Msg("fee ledger mirror not configured")
		return nil
	}

	ledger, err := google.NewSheetsLedger(
		cfg.Google.CredentialsFile,
		cfg.Google.LedgerSpreadsheetID,
		cfg.Google.LedgerSheetName,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without fee ledger mirror")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ledger.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("google sheets connection test failed")
	}
	if err := ledger.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("fee ledger header check failed")
	}

	logger.Info().Msg("fee ledger mirror initialized")
	return ledger
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9091
	}
	go startMetricsServer(ctx, port, logger)
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
