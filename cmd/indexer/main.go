package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/keetahub/keeta-history-indexer/internal/cache"
	"github.com/keetahub/keeta-history-indexer/internal/config"
	"github.com/keetahub/keeta-history-indexer/internal/explorer"
	"github.com/keetahub/keeta-history-indexer/internal/flags"
	"github.com/keetahub/keeta-history-indexer/internal/history"
	"github.com/keetahub/keeta-history-indexer/internal/models"
	"github.com/keetahub/keeta-history-indexer/internal/provider"
	"github.com/keetahub/keeta-history-indexer/internal/stream"
	"github.com/keetahub/keeta-history-indexer/internal/tokenmeta"
)

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

// main runs the background indexer: it polls the wallet node for new
// history on the watched accounts, feeds each account's session and
// distributes newly surfaced operations via Redis.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if len(cfg.WatchAccounts) == 0 {
		logger.Fatal("WATCH_ACCOUNTS is required for the indexer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	opCache := cache.NewRedisCacheFromClient(rclient, logger)
	pubsub := cache.NewPubSubManager(cfg.RedisAddr, logger)
	defer pubsub.Close()

	flagStore, err := flags.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create flags store")
	}

	providerClient := provider.NewClient(provider.ClientConfig{
		BaseURL:      cfg.ProviderURL,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	manager := history.NewManager(
		history.SessionConfig{Logger: logger},
		history.SessionDeps{
			Provider:  providerClient,
			Blocks:    explorer.NewClient(cfg.ExplorerURL, cfg.ExplorerAPIKey),
			Tokens:    tokenmeta.NewClient(cfg.TokenMetaURL, cfg.TokenMetaAPIKey),
			MetaCache: opCache,
		},
		flagStore,
	)
	defer manager.Close()

	poller := stream.NewHistoryPoller(stream.HistoryPollerConfig{
		Manager:      manager,
		Accounts:     cfg.WatchAccounts,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	handler := func(account string, op *models.GroupedOperation) {
		if err := opCache.AddRecentOperation(ctx, op); err != nil {
			logger.WithError(err).Warn("failed to cache operation")
		}
		if err := pubsub.PublishOperation(ctx, account, op); err != nil {
			logger.WithError(err).Warn("failed to publish operation")
		}
	}

	go func() {
		if err := poller.Start(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("poller stopped")
		}
	}()

	logger.WithField("accounts", cfg.WatchAccounts).Info("indexer running")

	<-sigCh
	logger.Info("shutting down")
	cancel()
	_ = poller.Stop()
}
