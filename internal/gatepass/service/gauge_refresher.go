package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/metrics"
)

// TokenGaugeRefresher periodically counts tokens by status and publishes the
// counts as a gauge.  It only reads; expiry transitions still happen lazily
// at verification time.
type TokenGaugeRefresher struct {
	tokens   store.TokenStore
	metrics  *metrics.Metrics
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewTokenGaugeRefresher creates a refresher but does not start it.  An
// interval of 0 disables it.
func NewTokenGaugeRefresher(tokens store.TokenStore, m *metrics.Metrics, interval time.Duration, logger *slog.Logger) *TokenGaugeRefresher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TokenGaugeRefresher{
		tokens:   tokens,
		metrics:  m,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs one refresh immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (r *TokenGaugeRefresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("token gauge refresher disabled")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)

	r.logger.Info("token gauge refresher started", "interval", r.interval)
}

// Stop signals the loop to exit and waits for it.
func (r *TokenGaugeRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *TokenGaugeRefresher) loop(ctx context.Context) {
	defer close(r.done)

	r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

func (r *TokenGaugeRefresher) Refresh(ctx context.Context) {
	counts, err := r.tokens.CountByStatus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("token gauge refresh failed", "error", err)
		}
		return
	}
	r.metrics.SetTokenCounts(counts)
}
