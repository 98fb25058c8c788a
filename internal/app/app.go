package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fieldops/scheduler/internal/config"
	"github.com/fieldops/scheduler/internal/dispatch"
	"github.com/fieldops/scheduler/internal/dispatch/channels"
	"github.com/fieldops/scheduler/internal/domain"
	"github.com/fieldops/scheduler/internal/httpserver"
	"github.com/fieldops/scheduler/internal/httpserver/deps"
	"github.com/fieldops/scheduler/internal/logger"
	"github.com/fieldops/scheduler/internal/queue"
	"github.com/fieldops/scheduler/internal/redis"
	"github.com/fieldops/scheduler/internal/scheduler"
	redisstore "github.com/fieldops/scheduler/internal/store/redis"
	"github.com/fieldops/scheduler/internal/upstream"
	"github.com/fieldops/scheduler/internal/version"
)

type App struct {
	cfg              *config.Config
	logger           logger.Logger
	server           *httpserver.Server
	redisClient      *goredis.Client
	consumer         *queue.Consumer
	templateReloader *scheduler.TemplateReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}

	store := redisstore.NewStore(redisClient, cfg.DispatchRetention)

	// Upstream lookup clients, one per entity kind
	clientLookup := upstream.NewClient("client", "user service",
		cfg.UserServiceURL, upstream.ClientDetailPath, cfg.UpstreamTimeout, loggerClient)
	serviceLookup := upstream.NewClient("service", "services service",
		cfg.ServicesServiceURL, upstream.ServiceDetailPath, cfg.UpstreamTimeout, loggerClient)

	// Notification template catalog (optional file, defaults otherwise)
	catalog := dispatch.NewCatalog()
	var templateReloader *scheduler.TemplateReloader
	if cfg.TemplateFile != "" {
		templateReloader = scheduler.NewTemplateReloader(
			cfg.TemplateFile,
			catalog,
			loggerClient,
			cfg.TemplateReloadInterval,
			make(chan struct{}, 1),
		)
	} else {
		loggerClient.Info("template file not configured, using built-in defaults")
	}

	// Channel senders; a channel without a configured provider is never
	// attempted even when the user's preferences allow it.
	senders := map[domain.Channel]dispatch.Sender{}
	if cfg.EmailProviderURL != "" {
		senders[domain.ChannelEmail] = channels.NewEmailSender(cfg.EmailProviderURL, cfg.EmailFrom, cfg.SenderTimeout)
	}
	if cfg.SMSProviderURL != "" {
		senders[domain.ChannelSMS] = channels.NewSMSSender(cfg.SMSProviderURL, cfg.SMSSenderID, cfg.SenderTimeout)
	}

	dispatcher := dispatch.NewDispatcher(loggerClient, store, store, catalog, senders)

	consumer := queue.NewConsumer(queue.Options{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topic:   cfg.KafkaTopic,
	}, dispatcher.Handle, loggerClient)

	// Dependencies passed to routes
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		Appointments:  store,
		ClientLookup:  clientLookup,
		ServiceLookup: serviceLookup,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:              cfg,
		logger:           loggerClient,
		server:           server,
		redisClient:      redisClient,
		consumer:         consumer,
		templateReloader: templateReloader,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting scheduler v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("scheduler %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start template reloader (if a template file is configured)
	if a.templateReloader != nil {
		if err := a.templateReloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start template reloader: %w", err)
		}
		a.logger.Info("template reloader started",
			logger.Duration("interval", a.cfg.TemplateReloadInterval))
	}

	// Start the notification queue consumer
	a.consumer.Start(ctx)
	a.logger.Info("notification consumer started",
		logger.Strings("brokers", a.cfg.KafkaBrokers),
		logger.String("topic", a.cfg.KafkaTopic),
		logger.String("group", a.cfg.KafkaGroupID))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.templateReloader != nil {
		a.templateReloader.Stop()
	}

	if err := a.consumer.Stop(); err != nil {
		a.logger.Warnf("failed to stop queue consumer: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Scheduler stopped cleanly")
	return nil
}
