// cmd/concierge/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kaya-concierge/internal/api"
	"kaya-concierge/internal/common/aws"
	"kaya-concierge/internal/common/config"
	"kaya-concierge/internal/common/database"
	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/common/observability"
	"kaya-concierge/internal/engine"
	"kaya-concierge/internal/export"
	"kaya-concierge/internal/notify"
	"kaya-concierge/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting concierge...",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.Server.Port),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracerEndpoint := ""
	if cfg.Tracing.Enabled {
		tracerEndpoint = cfg.Tracing.Endpoint
	}
	tracer, err := observability.NewTracer(cfg.App.Name, tracerEndpoint)
	if err != nil {
		zapLog.Fatal("tracer init failed", zap.Error(err))
	}
	defer tracer.Shutdown()

	ctx := context.Background()

	// --- Lead store ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()

	err = retryWithBackoff(func() error {
		return pg.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Postgres connection")
	if err != nil {
		zapLog.Fatal("postgres unreachable", zap.Error(err))
	}

	pgStore := store.NewPostgresLeadStore(pg, log)
	if err := pgStore.Migrate(ctx); err != nil {
		zapLog.Fatal("migration failed", zap.Error(err))
	}

	var leadStore store.LeadStore = pgStore
	if cfg.Database.Redis.Enabled {
		redisClient, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("redis init failed", zap.Error(err))
		}
		defer redisClient.Close()

		ttl := time.Duration(cfg.Database.Redis.CacheTTL) * time.Second
		leadStore = store.NewCachedLeadStore(pgStore, redisClient.GetClient(), ttl, log)
		zapLog.Info("redis lead cache enabled", zap.Duration("ttl", ttl))
	}

	// --- Closing notifications ---
	notifier, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}

	// --- Application wiring ---
	eng := engine.NewEngine(leadStore, notifier, log, engine.WithObservability(obs, tracer))
	exporter := export.NewExporter(leadStore, log)
	handlers := api.NewHandlers(eng, leadStore, exporter, log)

	srv := api.NewServer(cfg.Server, api.NewRouter(handlers, log))

	go func() {
		zapLog.Info("concierge: listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLog.Info("concierge: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Fatal("shutdown failed", zap.Error(err))
	}
	zapLog.Info("concierge: stopped")
}

// buildNotifier assembles the configured notification channels. Returns nil
// when every channel is disabled.
func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) (notify.Notifier, error) {
	var channels notify.Multi

	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		channels = append(channels, notify.NewEmailNotifier(
			sesClient,
			cfg.Notifications.Email.FromEmail,
			cfg.Notifications.Email.ToEmail,
			log,
		))
	}

	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		channels = append(channels, notify.NewSMSNotifier(
			snsClient,
			cfg.Notifications.SMS.PhoneNumber,
			log,
		))
	}

	if len(channels) == 0 {
		return nil, nil
	}
	return channels, nil
}
