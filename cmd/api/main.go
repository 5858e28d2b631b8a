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

	"pawsit/internal/api"
	"pawsit/internal/billing"
	"pawsit/internal/config"
	"pawsit/internal/database"
	"pawsit/internal/domain"
	"pawsit/internal/events"
	"pawsit/internal/logging"
	"pawsit/internal/metrics"
	"pawsit/internal/models"
	"pawsit/internal/notify"
	"pawsit/internal/repository"
	"pawsit/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	if err := seedCatalog(db, &logger); err != nil {
		return err
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	repo := buildRepository(cfg, db, redisClient, &logger)
	notifier := buildNotifier(cfg, &logger)
	eventBus := events.NewEventBus()
	subscribeAuditLog(eventBus, &logger)
	feeCalc := billing.NewFeeCalculator(models.PercentToBps(cfg.Billing.FeePercent))
	effects := service.NewEffectQueue(repo)

	invoices := service.NewInvoiceService(repo, eventBus, notifier, effects, feeCalc,
		cfg.Billing.InvoicePrefix, cfg.Billing.DueTermDays, &logger)
	bookings := service.NewBookingService(repo, eventBus, notifier, feeCalc,
		cfg.Booking.LeadTimeMinutes, cfg.Booking.MaxPendingPerUser, cfg.Booking.DeleteGraceDays, &logger)
	bookings.SetCompletionHandler(service.NewInvoicingOrchestrator(repo, invoices, effects, feeCalc, &logger))

	httpServer := api.NewHTTPServer(cfg.API, bookings, invoices, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, &logger)
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
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

type catalogSeed struct {
	Sitters []struct {
		UserID    int64  `yaml:"user_id"`
		Name      string `yaml:"name"`
		ChatID    int64  `yaml:"chat_id"`
		Offerings []struct {
			Name            string `yaml:"name"`
			Description     string `yaml:"description"`
			DurationMinutes int64  `yaml:"duration_minutes"`
			PriceCents      int64  `yaml:"price_cents"`
		} `yaml:"offerings"`
	} `yaml:"sitters"`
}

// seedCatalog loads sitters and their offerings from the seed file on first
// start. A non-empty catalog is left untouched.
func seedCatalog(db *database.DB, logger *zerolog.Logger) error {
	ctx := context.Background()

	count, err := db.CountSitters(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seedPath := os.Getenv("CATALOG_PATH")
	if seedPath == "" {
		seedPath = "configs/catalog.yaml"
	}
	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("catalog_path", seedPath).Msg("no catalog seed file, starting with an empty catalog")
			return nil
		}
		logger.Error().Err(err).Str("catalog_path", seedPath).Msg("read catalog seed")
		return err
	}

	var seed catalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("catalog_path", seedPath).Msg("parse catalog seed")
		return err
	}

	for _, s := range seed.Sitters {
		sitter := &models.Sitter{UserID: s.UserID, Name: s.Name, ChatID: s.ChatID, IsActive: true}
		if err := db.CreateSitter(ctx, sitter); err != nil {
			return err
		}
		for _, o := range s.Offerings {
			offering := &models.ServiceOffering{
				SitterID:        sitter.ID,
				Name:            o.Name,
				Description:     o.Description,
				DurationMinutes: o.DurationMinutes,
				PriceCents:      o.PriceCents,
				IsActive:        true,
			}
			if err := db.CreateOffering(ctx, offering); err != nil {
				return err
			}
		}
	}

	logger.Info().Int("sitters", len(seed.Sitters)).Msg("catalog seeded")
	return nil
}

// subscribeAuditLog mirrors every lifecycle event into the log so the
// event stream is visible without an external consumer.
func subscribeAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	types := []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingStarted,
		events.EventBookingCompleted,
		events.EventBookingCancelled,
		events.EventBookingRescheduled,
		events.EventInvoiceGenerated,
		events.EventInvoiceCancelled,
		events.EventPaymentRecorded,
	}
	for _, eventType := range types {
		bus.Subscribe(eventType, func(e *events.Event) error {
			logger.Info().Str("event", e.Type).RawJSON("payload", e.Payload).Msg("domain event")
			return nil
		})
	}
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

// buildRepository wraps the database with the catalog reference cache:
// redis with in-memory failover when redis is configured, plain in-memory
// otherwise.
func buildRepository(cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.Repository {
	const referenceTTL = 5 * time.Minute

	memory := repository.NewMemoryReferenceCache(referenceTTL)
	var cache domain.ReferenceCache = memory
	if redisClient != nil {
		primary := repository.NewRedisReferenceCache(redisClient, referenceTTL)
		cache = repository.NewFailoverReferenceCache(primary, memory, logger)
	}
	return repository.NewCachedRepository(db, cache, logger)
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

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
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
