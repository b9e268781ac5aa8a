package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/service"
)

// Watcher drives the poller on a fixed interval. An external cron hitting
// the HTTP surface can coexist with it; ingestion is idempotent.
type Watcher struct {
	poller   *service.Poller
	interval time.Duration
	logger   *zap.Logger
}

func New(poller *service.Poller, interval time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		poller:   poller,
		interval: interval,
		logger:   logger,
	}
}

// Start runs one pass immediately, then one per interval until the context
// is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("starting gmail poll watcher", zap.Duration("interval", w.interval))

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	result, err := w.poller.PollAll(ctx)
	if err != nil {
		w.logger.Error("poll pass failed", zap.Error(err))
		return
	}
	w.logger.Info("poll pass finished",
		zap.Int("accounts", len(result.PerAccount)),
		zap.Int("total_new", result.TotalNew))
}
