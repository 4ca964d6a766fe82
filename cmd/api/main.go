package main

import (
	"context"
	"fmt"
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
	"github.com/keetahub/keeta-history-indexer/internal/provider"
	"github.com/keetahub/keeta-history-indexer/internal/server"
	"github.com/keetahub/keeta-history-indexer/internal/tokenmeta"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the history API server
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize Redis client for caching and pipeline flags
	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	// Operation cache doubles as the read-through token metadata cache
	opCache := cache.NewRedisCacheFromClient(rclient, logger)

	// Initialize pipeline flags store for runtime configuration
	flagStore, err := flags.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create flags store")
	}

	// Wallet node client with retry support
	providerClient := provider.NewClient(provider.ClientConfig{
		BaseURL:      cfg.ProviderURL,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	// Per-account history sessions
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

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		History:  manager,
		Provider: providerClient,
		Cache:    opCache,
		Flags:    flagStore,
		DevMode:  cfg.DevMode,
		Logger:   logger,
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	// Start the HTTP server
	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
