package realtime

import (
	"context"
	"time"

	"github.com/caseline/caseline/internal/common/config"

	"go.uber.org/zap"
)

// Sweeper periodically evicts connections that stopped sending heartbeats.
// It runs independently of message delivery; the registry snapshots before
// iterating, so a sweep can never deadlock with an in-progress broadcast.
type Sweeper struct {
	logger   *zap.Logger
	registry *Registry
	interval time.Duration
	timeout  time.Duration
}

// NewSweeper creates a sweeper from the realtime configuration.
func NewSweeper(logger *zap.Logger, registry *Registry, cfg config.RealtimeConfig) *Sweeper {
	return &Sweeper{
		logger:   logger.Named("realtime.sweeper"),
		registry: registry,
		interval: cfg.HeartbeatInterval,
		timeout:  cfg.ConnectionTimeout,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("heartbeat sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("timeout", s.timeout))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("heartbeat sweeper stopped")
			return
		case <-ticker.C:
			if evicted := s.registry.EvictStale(s.timeout); len(evicted) > 0 {
				s.logger.Info("evicted stale connections", zap.Int("count", len(evicted)))
			}
		}
	}
}
