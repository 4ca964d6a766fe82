package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/keetahub/keeta-history-indexer/internal/constants"
	"github.com/keetahub/keeta-history-indexer/internal/models"
	"github.com/keetahub/keeta-history-indexer/internal/storage"
)

// operationMessage is the wire format published for each surfaced
// operation.
type operationMessage struct {
	Account   string                   `json:"account"`
	Operation *models.GroupedOperation `json:"operation"`
}

// PubSubManager distributes newly surfaced history operations over Redis
// Pub/Sub.
type PubSubManager struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewPubSubManager(addr string, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		}),
		logger: logger,
	}
}

// PublishOperation publishes an operation to the global channel and the
// account-specific channel.
func (p *PubSubManager) PublishOperation(ctx context.Context, account string, op *models.GroupedOperation) error {
	data, err := json.Marshal(operationMessage{Account: account, Operation: op})
	if err != nil {
		return err
	}

	channels := []string{
		constants.PubSubChannelAll,
		constants.PubSubChannelAccountPrefix + account,
	}

	pipe := p.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe consumes operations from a channel until the context ends.
func (p *PubSubManager) Subscribe(ctx context.Context, channel string, handler storage.OperationHandler) error {
	pubsub := p.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	p.logger.WithField("channel", channel).Info("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m operationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				p.logger.WithError(err).Debug("skipping malformed operation message")
				continue
			}
			handler(m.Account, m.Operation)
		}
	}
}

// PSubscribe consumes operations matching a channel pattern
// (e.g. "history:account:*").
func (p *PubSubManager) PSubscribe(ctx context.Context, pattern string, handler storage.OperationHandler) error {
	pubsub := p.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	p.logger.WithField("pattern", pattern).Info("subscribed to pattern")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m operationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				p.logger.WithError(err).Debug("skipping malformed operation message")
				continue
			}
			handler(m.Account, m.Operation)
		}
	}
}

// Close closes the underlying Redis connection.
func (p *PubSubManager) Close() error {
	return p.client.Close()
}
