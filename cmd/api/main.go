package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/securevault/securevault/internal/cache"
	"github.com/securevault/securevault/internal/config"
	"github.com/securevault/securevault/internal/identity"
	"github.com/securevault/securevault/internal/infra"
	"github.com/securevault/securevault/internal/ledger"
	"github.com/securevault/securevault/internal/logging"
	"github.com/securevault/securevault/internal/notification"
	"github.com/securevault/securevault/internal/rates"
	"github.com/securevault/securevault/internal/routes"
	"github.com/securevault/securevault/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.AppName, cfg.LogLevel)

	ctx := context.Background()

	deps := routes.Deps{
		Cfg:    cfg,
		Rates:  rates.NewExchangeRateAPI(cfg.ExchangeBaseURL, cfg.ExchangeAPIKey, 5*time.Second),
		Logger: logger,
	}

	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if cfg.AutoMigrate {
			if err := infra.Migrate(ctx, db); err != nil {
				logger.Error("migrate schema", "error", err)
				os.Exit(1)
			}
		}
		deps.Store = ledger.NewPostgresStore(db)
		deps.Users = identity.NewPostgresRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
		mem := ledger.NewMemoryStore()
		deps.Store = mem
		deps.Users = identity.NewMemoryRepository(mem)
	}

	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		deps.Cache = cache.NewRedis(client)
	} else {
		logger.Warn("REDIS_URL not set, using in-memory cache")
		deps.Cache = cache.NewMemory()
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafka := notification.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn("close kafka writer", "error", err)
			}
		}()
		deps.Notifier = kafka
		logger.Info("publishing transfer events", slog.Any("brokers", cfg.KafkaBrokers), slog.String("topic", cfg.KafkaTopic))
	} else {
		deps.Notifier = notification.NewLoggerNotifier(logger)
	}

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
