package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/keetahub/keeta-history-indexer/internal/cache"
	"github.com/keetahub/keeta-history-indexer/internal/config"
	"github.com/keetahub/keeta-history-indexer/internal/constants"
	"github.com/keetahub/keeta-history-indexer/internal/models"
)

// Example consumer: tails the operation channels the indexer publishes.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	pubsub := cache.NewPubSubManager(cfg.RedisAddr, logger)
	defer pubsub.Close()

	logger.Info("starting history subscriber")

	// All operations
	go pubsub.Subscribe(ctx, constants.PubSubChannelAll, func(account string, op *models.GroupedOperation) {
		logger.WithFields(logrus.Fields{
			"account": account,
			"type":    op.Type,
			"amount":  op.FormattedAmount,
			"block":   op.BlockHash,
		}).Info("operation")
	})

	// Per-account channels
	go pubsub.PSubscribe(ctx, constants.PubSubChannelAccountPrefix+"*", func(account string, op *models.GroupedOperation) {
		logger.WithField("account", account).Debug("account channel match")
	})

	logger.Info("subscriber running, press Ctrl+C to stop")

	<-sigCh
	logger.Info("shutting down subscriber")
}
