package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reservo/internal/api"
	"reservo/internal/clock"
	"reservo/internal/config"
	"reservo/internal/database"
	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/export"
	"reservo/internal/lifecycle"
	"reservo/internal/logging"
	"reservo/internal/metrics"
	"reservo/internal/notify"
	"reservo/internal/repository"
	"reservo/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// adminRecipient addresses the Telegram admin broadcast; the channel itself
// knows the chat ids.
const adminRecipient = "admins"

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

	if err := lifecycle.CheckSystemGuardsDisjoint(); err != nil {
		return fmt.Errorf("lifecycle rules: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()

	if err := syncInventory(ctx, db, logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	bus := events.NewEventBus()
	bus.Subscribe(events.AllEvents, func(ev *events.Event) error {
		metrics.IncEvent(ev.Type)
		return nil
	})
	startMetrics(ctx, cfg, logger)

	health, err := startHealth(cfg, logger)
	if err != nil {
		return err
	}

	scheduler := buildScheduler(cfg, db, redisClient, bus, logger)
	scheduler.Start(ctx)
	if health != nil {
		health.SetServing(true)
	}
	logger.Info().Int("jobs", scheduler.Running()).Msg("Engine started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	if health != nil {
		health.SetServing(false)
	}

	// Runs in progress are finished before the store is closed.
	scheduler.Wait()

	if health != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		health.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("Engine stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "engine"), closer, nil
}

func startHealth(cfg *config.Config, logger *zerolog.Logger) (*api.HealthServer, error) {
	if !cfg.API.GRPC.Enabled {
		return nil, nil
	}
	health, err := api.NewHealthServer(cfg.API.GRPC, logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return nil, err
	}
	go func() {
		if err := health.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	return health, nil
}

func syncInventory(ctx context.Context, db *database.DB, logger *zerolog.Logger) error {
	path := os.Getenv("INVENTORY_PATH")
	if path == "" {
		path = "configs/inventory.yaml"
	}

	inv, err := config.LoadInventory(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("inventory_path", path).Msg("inventory file not found, skipping sync")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("inventory_path", path).Msg("read inventory")
		return err
	}

	if err := db.SyncInventory(ctx, inv.Properties, inv.RoomTypes); err != nil {
		return fmt.Errorf("sync inventory: %w", err)
	}
	logger.Info().
		Int("properties", len(inv.Properties)).
		Int("room_types", len(inv.RoomTypes)).
		Msg("Inventory synced")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	client := repository.NewRedisClient(cfg.Redis)
	if client == nil {
		return nil
	}

	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	dead := repository.NewDeadLetterRepository(client, worker.DefaultDeadLetterKey)
	if n, err := dead.Len(ctx); err == nil && n > 0 {
		logger.Warn().Int64("dead_letters", n).Msg("abandoned notifications waiting for review")
	}
	return client
}

func buildSender(cfg *config.Config, logger *zerolog.Logger) (*notify.Dispatcher, bool) {
	nc := cfg.Notifications
	nlog := logging.Component(logger, "notify")

	var customer notify.Channel = notify.NewLogChannel(nlog)
	if nc.SMTP.Host != "" {
		customer = notify.NewEmailChannel(nc.SMTP)
	} else {
		logger.Warn().Msg("smtp host not configured, customer notifications go to the log")
	}

	var admin notify.Channel
	bot, err := notify.NewTelegramBot(nc.Telegram)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("telegram init failed, admin broadcasts disabled")
	case bot != nil && len(nc.Telegram.AdminChatIDs) > 0:
		admin = notify.NewTelegramChannel(bot, nc.Telegram.AdminChatIDs, nlog)
		logger.Info().Str("bot", bot.Self.UserName).Msg("telegram admin channel connected")
	}

	limiter := notify.NewLimiter(nc.RatePerSecond, nc.RateBurst)
	return notify.NewDispatcher(customer, admin, limiter, nlog), admin != nil
}

func buildScheduler(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	bus *events.EventBus,
	logger *zerolog.Logger,
) *worker.Scheduler {
	clk := clock.Real{}
	wc := cfg.Workers
	nc := cfg.Notifications

	sender, hasAdmin := buildSender(cfg, logger)
	queue := worker.NewNotificationWorker(db, sender, redisClient, clk, worker.RetryPolicy{
		MaxRetries:    nc.Retries(),
		InitialDelay:  nc.FirstRetryDelay(),
		MaxDelay:      nc.RetryDelayCap(),
		BackoffFactor: nc.BackoffFactor,
	}, nc.BatchSize, logging.Worker(logger, "notifications"))

	var exporter domain.PayoutExporter
	if cfg.Exports.Enabled {
		exporter = export.NewPayoutReport(cfg.Exports.Path, logging.Component(logger, "export"))
	}
	adminTo := ""
	if hasAdmin {
		adminTo = adminRecipient
	}

	s := worker.NewScheduler(logging.Component(logger, "scheduler"))
	s.Add(queue, nc.PollEvery(), true)
	s.Add(worker.NewAutoRejectWorker(db, queue, bus, db, clk,
		config.Duration(wc.AutoReject.PaymentDeadline, config.DefaultPaymentDeadline),
		logging.Worker(logger, "auto_reject"),
	), config.Duration(wc.AutoReject.Interval, config.DefaultHourly), false)
	s.Add(worker.NewNoShowWorker(db, queue, bus, db, clk,
		config.Duration(wc.NoShow.GracePeriod, config.DefaultGracePeriod),
		logging.Worker(logger, "no_show"),
	), config.Duration(wc.NoShow.Interval, config.DefaultHourly), false)
	s.Add(worker.NewPaymentReminderWorker(db, queue, clk, worker.ReminderWindows{
		Deadline: config.Duration(wc.AutoReject.PaymentDeadline, config.DefaultPaymentDeadline),
		MinAge:   config.Duration(wc.PaymentReminder.MinAge, config.DefaultReminderMinAge),
		Dedup:    config.Duration(wc.PaymentReminder.DedupWindow, config.DefaultReminderDedup),
	}, logging.Worker(logger, "payment_reminder")),
		config.Duration(wc.PaymentReminder.Interval, config.DefaultHourly), false)
	s.Add(worker.NewCouponExpiryWorker(db, bus, db, clk, logging.Worker(logger, "coupon_expiry")),
		config.Duration(wc.CouponExpiry.Interval, config.DefaultHourly), false)
	s.Add(worker.NewFeaturedWorker(db, db, clk, worker.CriteriaFromConfig(wc.Featured), logging.Worker(logger, "featured")),
		config.Duration(wc.Featured.Interval, config.DefaultDaily), true)

	s.Add(worker.NewPayoutWorker(db, queue, bus, db, exporter, clk, wc.Payout.CutoffDay, adminTo, logging.Worker(logger, "payout")),
		config.Duration(wc.Payout.Interval, config.DefaultDaily), false)

	if cfg.Backup.Enabled && db.Driver() == config.DriverSQLite {
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		s.Add(backup, backup.Interval(), false)
	}
	return s
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

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
