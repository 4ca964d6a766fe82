package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/keetahub/keeta-history-indexer/internal/history"
	"github.com/keetahub/keeta-history-indexer/internal/storage"
)

// HistoryPoller periodically pulls the newest history page for every
// watched account and hands rows the pipeline has not seen before to the
// handler. Dedup lives in the sessions, so a quiet account costs one
// provider call per tick and nothing else.
type HistoryPoller struct {
	manager      *history.Manager
	accounts     []string
	pollInterval time.Duration
	logger       *logrus.Logger

	mu      sync.Mutex
	running bool
}

// HistoryPollerConfig holds configuration for the history poller
type HistoryPollerConfig struct {
	Manager      *history.Manager
	Accounts     []string
	PollInterval time.Duration
	Logger       *logrus.Logger
}

// NewHistoryPoller creates a new history poller
func NewHistoryPoller(cfg HistoryPollerConfig) *HistoryPoller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	return &HistoryPoller{
		manager:      cfg.Manager,
		accounts:     cfg.Accounts,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}
}

// Start begins polling for new operations
func (p *HistoryPoller) Start(ctx context.Context, handler storage.OperationHandler) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.logger.WithFields(logrus.Fields{
		"interval": p.pollInterval,
		"accounts": len(p.accounts),
	}).Info("starting history polling")

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return ctx.Err()

		case <-ticker.C:
			p.poll(ctx, handler)
		}
	}
}

// Stop stops the poller
func (p *HistoryPoller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return nil
}

// poll fetches the newest page for every account. One failing account
// does not block the others.
func (p *HistoryPoller) poll(ctx context.Context, handler storage.OperationHandler) {
	for _, account := range p.accounts {
		session := p.manager.Session(ctx, account)

		rows, err := session.FetchLatest(ctx)
		if err != nil {
			p.logger.WithError(err).WithField("account", account).Warn("history poll failed")
			continue
		}
		if len(rows) == 0 {
			p.logger.WithField("account", account).Debug("no new operations")
			continue
		}

		p.logger.WithFields(logrus.Fields{
			"account": account,
			"count":   len(rows),
		}).Info("new operations")

		for i := range rows {
			handler(account, &rows[i])
		}
	}
}
