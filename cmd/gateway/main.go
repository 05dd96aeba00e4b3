package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-gateway/internal/channel"
	"github.com/kursadbilgin/notify-gateway/internal/config"
	"github.com/kursadbilgin/notify-gateway/internal/cooldown"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/handler"
	"github.com/kursadbilgin/notify-gateway/internal/health"
	"github.com/kursadbilgin/notify-gateway/internal/infra/database"
	"github.com/kursadbilgin/notify-gateway/internal/infra/database/migrations"
	infraredis "github.com/kursadbilgin/notify-gateway/internal/infra/redis"
	"github.com/kursadbilgin/notify-gateway/internal/modem"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"github.com/kursadbilgin/notify-gateway/internal/provider"
	"github.com/kursadbilgin/notify-gateway/internal/queue"
	"github.com/kursadbilgin/notify-gateway/internal/ratelimit"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"github.com/kursadbilgin/notify-gateway/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	channelName, err := domain.ParseChannelName(cfg.Channel)
	if err != nil {
		log.Fatalf("invalid CHANNEL: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, channelName.String())
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, channelName, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
	logger.Info("gateway stopped")
}

// gatewayChannel is the selected adapter plus the resources only some
// adapters own.
type gatewayChannel struct {
	channel  channel.Channel
	session  *modem.Session
	telegram *provider.TelegramClient
}

func run(cfg *config.Config, channelName domain.ChannelName, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	openDB := func(context.Context) (*gorm.DB, error) {
		return database.NewDatabase(cfg.DBDriver, cfg.DatabaseDSN)
	}

	if cfg.DBAutoMigrate {
		err := database.WithConnection(ctx, openDB, cfg.DBConnectRetries, cfg.DBRetryDelay, func(db *gorm.DB) error {
			return migrations.Migrate(db, cfg.ObservationsTable)
		})
		if err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}
		logger.Info("database migrations applied")
	}

	scope := database.NewScope(openDB, cfg.DBConnectRetries, cfg.DBRetryDelay, logger)
	stores := repository.NewScopedStore(scope, cfg.ObservationsTable)

	var cooldownSet cooldown.Set = cooldown.NewMemorySet()
	var limiter ratelimit.RateLimiter = ratelimit.Unlimited{}
	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		redisCooldown, err := infraredis.NewCooldownSet(rdb, channelName.String())
		if err != nil {
			return err
		}
		throttle, err := infraredis.NewSendThrottle(rdb, cfg.RateLimitPerSec, time.Second)
		if err != nil {
			return err
		}
		cooldownSet, limiter = redisCooldown, throttle
		logger.Info("redis cooldown and send throttle enabled", zap.Int("rateLimitPerSec", cfg.RateLimitPerSec))
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		publisher = queue.NewRabbitMQPublisher(rmq)
		logger.Info("delivery events enabled", zap.String("exchange", queue.EventsExchange))
	}
	defer publisher.Close()

	gw, err := buildChannel(ctx, cfg, channelName, metrics, logger)
	if err != nil {
		return err
	}
	if gw.session != nil {
		defer func() {
			if err := gw.session.Close(); err != nil {
				logger.Warn("failed to close modem", zap.Error(err))
			}
		}()
	}

	poller, err := service.NewPoller(gw.channel, cooldownSet, service.PollerConfig{
		BatchLimit:      cfg.BatchLimit,
		SendRetries:     cfg.SendRetries,
		RetryDelay:      cfg.RetryDelay,
		DeliveryTimeout: cfg.DeliveryTimeout,
		Cooldown:        cfg.Cooldown,
		TriggerPattern:  cfg.EventTriggerPattern,
	}, logger)
	if err != nil {
		return err
	}
	poller.SetMetrics(metrics)
	poller.SetRateLimiter(limiter)
	poller.SetPublisher(publisher)

	tracker := health.NewTracker()
	runner, err := service.NewRunner(poller, stores, tracker, cfg.Sleep, cfg.MaxConsecutiveErrors, logger)
	if err != nil {
		return err
	}
	runner.SetMetrics(metrics)

	watchdog := health.NewWatchdog(tracker, cfg.WatchdogInterval, cfg.WatchdogTimeout, func(code int) {
		_ = logger.Sync()
		os.Exit(code)
	}, logger)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          handler.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	var modemStatus handler.ModemStatuser
	if gw.session != nil {
		modemStatus = gw.session
	}
	handler.RegisterHealthRoutes(app, tracker, cfg.WatchdogTimeout, modemStatus, metrics)
	if gw.telegram != nil {
		if cfg.TelegramWebhookSecret == "" {
			logger.Warn("TELEGRAM_WEBHOOK_SECRET not set, subscriber registration webhook disabled")
		} else if err := handler.RegisterTelegramRoutes(app, gw.telegram, stores, cfg.TelegramWebhookSecret, logger); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		return watchdog.Run(gctx)
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("http server listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	logger.Info("notify gateway started",
		zap.String("outboxTable", gw.channel.OutboxTable()),
		zap.Duration("sleep", cfg.Sleep),
	)
	return g.Wait()
}

func buildChannel(
	ctx context.Context,
	cfg *config.Config,
	name domain.ChannelName,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*gatewayChannel, error) {
	switch name {
	case domain.ChannelSMSModem:
		session, err := modem.NewSession(modem.Config{
			Port:              cfg.ModemPort,
			BaudRate:          cfg.ModemBaudRate,
			PIN:               cfg.ModemPIN,
			ReconnectAttempts: cfg.ModemReconnectAttempts,
		}, modem.OpenSerial, modem.NewCorrelator(cfg.DeliveryRetention), buildAlerter(cfg, logger), logger)
		if err != nil {
			return nil, err
		}
		session.OnRecover(metrics.ObserveModemReconnect)
		if err := session.Open(ctx); err != nil {
			logger.Warn("modem not ready at startup, cycles will retry", zap.String("port", cfg.ModemPort), zap.Error(err))
		}
		ch, err := channel.NewModemSMS(session)
		if err != nil {
			return nil, err
		}
		return &gatewayChannel{channel: ch, session: session}, nil

	case domain.ChannelSMSTwilio, domain.ChannelWhatsApp, domain.ChannelVoice:
		client, err := provider.NewTwilioClient(provider.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			BaseURL:    cfg.TwilioBaseURL,
		})
		if err != nil {
			return nil, err
		}

		var ch channel.Channel
		switch name {
		case domain.ChannelSMSTwilio:
			ch, err = channel.NewTwilioSMS(client, cfg.TwilioNumber)
		case domain.ChannelWhatsApp:
			ch, err = channel.NewWhatsApp(client, cfg.TwilioWhatsAppNumber)
		default:
			ch, err = channel.NewVoice(client, cfg.TwilioNumber, cfg.IVRBaseURL)
		}
		if err != nil {
			return nil, err
		}
		return &gatewayChannel{channel: ch}, nil

	case domain.ChannelTelegram:
		client, err := provider.NewTelegramClient(cfg.TelegramToken, cfg.TelegramBaseURL)
		if err != nil {
			return nil, err
		}
		ch, err := channel.NewTelegram(client)
		if err != nil {
			return nil, err
		}
		return &gatewayChannel{channel: ch, telegram: client}, nil

	case domain.ChannelEmail:
		mailer, err := provider.NewMailer(smtpAccounts(cfg), logger)
		if err != nil {
			return nil, err
		}
		ch, err := channel.NewEmail(mailer, cfg.EmailSubject)
		if err != nil {
			return nil, err
		}
		return &gatewayChannel{channel: ch}, nil
	}

	return nil, fmt.Errorf("%w: unsupported channel %q", domain.ErrValidation, name)
}

// buildAlerter returns nil when no SMTP account is configured; the modem
// session then only logs exhausted recoveries.
func buildAlerter(cfg *config.Config, logger *zap.Logger) modem.Alerter {
	mailer, err := provider.NewMailer(smtpAccounts(cfg), logger)
	if err != nil {
		logger.Warn("modem alerts disabled", zap.Error(err))
		return nil
	}
	return provider.NewEmailAlerter(mailer, cfg.AlertEmailTo, logger)
}

func smtpAccounts(cfg *config.Config) []provider.SMTPAccount {
	settings := cfg.SMTPAccounts()
	accounts := make([]provider.SMTPAccount, 0, len(settings))
	for _, s := range settings {
		accounts = append(accounts, provider.SMTPAccount{
			Host:     s.Host,
			Port:     s.Port,
			Username: s.Username,
			Password: s.Password,
			From:     s.From,
		})
	}
	return accounts
}
