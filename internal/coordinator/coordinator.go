package coordinator

import (
	"context"
	"time"

	"github.com/caseline/caseline/internal/backend"
	"github.com/caseline/caseline/internal/common/config"
	"github.com/caseline/caseline/internal/coordinator/affinity"
	"github.com/caseline/caseline/pkg/metrics"

	"go.uber.org/zap"
)

// Result is a settled completion plus metadata about how it was obtained.
// Attempted lists the backends that were tried and failed before the
// successful one.
type Result struct {
	Text       string        `json:"text"`
	Backend    string        `json:"backend"`
	Model      string        `json:"model"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"-"`
	Attempted  []string      `json:"attempted"`
}

// Coordinator resolves "get a completion for this conversation" into a
// concrete backend call with retry-by-substitution across backends. A
// backend that fails within one request is never retried in that request.
type Coordinator struct {
	logger   *zap.Logger
	backends *backend.Registry
	stats    *backend.StatsTracker
	affinity affinity.Store
	metrics  *metrics.Metrics // optional
	cfg      config.FallbackConfig
}

// New creates a coordinator. metrics may be nil when metrics are disabled.
func New(logger *zap.Logger, backends *backend.Registry, stats *backend.StatsTracker, aff affinity.Store, m *metrics.Metrics, cfg config.FallbackConfig) *Coordinator {
	return &Coordinator{
		logger:   logger.Named("coordinator"),
		backends: backends,
		stats:    stats,
		affinity: aff,
		metrics:  m,
		cfg:      cfg,
	}
}

// Stats exposes the per-backend statistics tracker for the health endpoint.
func (c *Coordinator) Stats() *backend.StatsTracker {
	return c.stats
}

// ClearAffinity drops the affinity entry when a conversation ends.
func (c *Coordinator) ClearAffinity(ctx context.Context, conversationID string) error {
	return c.affinity.Clear(ctx, conversationID)
}

// GetResponse attempts backends in order until one succeeds. On success the
// conversation's affinity is updated to the winning backend. When fallback
// is disabled the first failure is surfaced immediately as a BackendError.
func (c *Coordinator) GetResponse(ctx context.Context, conversationID string, req *backend.Request, preferred string) (*Result, error) {
	var attempted []string
	attemptedSet := make(map[string]bool)
	name := c.startCandidate(ctx, conversationID, preferred)
	var lastErr error

	for {
		if name == "" || attemptedSet[name] {
			var ok bool
			if name, ok = c.nextCandidate(attemptedSet); !ok {
				return nil, &ExhaustedError{Attempted: attempted, LastCause: lastErr}
			}
		}

		adapter, err := c.backends.Get(name)
		if err != nil {
			// Candidate walks only yield configured names; a miss here means
			// the registry changed underneath us. Treat as a normal failure.
			lastErr = err
			attempted = append(attempted, name)
			attemptedSet[name] = true
			name = ""
			continue
		}

		start := time.Now()
		completion, latency, err := c.attempt(ctx, adapter, req)
		if err == nil {
			c.settleSuccess(name, start, latency)
			if aerr := c.affinity.Set(ctx, conversationID, name); aerr != nil {
				c.logger.Warn("failed to record affinity",
					zap.String("conversation", conversationID),
					zap.Error(aerr))
			}
			return &Result{
				Text:       completion.Text,
				Model:      completion.Model,
				Confidence: completion.Confidence,
				Backend:    name,
				Latency:    latency,
				Attempted:  attempted,
			}, nil
		}

		c.settleFailure(name, start, latency, err)
		c.logger.Warn("backend attempt failed",
			zap.String("backend", name),
			zap.String("conversation", conversationID),
			zap.Error(err))
		lastErr = err
		attempted = append(attempted, name)
		attemptedSet[name] = true

		if !c.cfg.Enabled {
			return nil, &BackendError{Name: name, Cause: err}
		}
		name = ""
	}
}

// attempt runs one sync completion under the per-backend timeout.
func (c *Coordinator) attempt(ctx context.Context, adapter backend.Adapter, req *backend.Request) (*backend.Completion, time.Duration, error) {
	if c.cfg.PerBackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PerBackendTimeout)
		defer cancel()
	}
	start := time.Now()
	completion, err := adapter.CompleteSync(ctx, req)
	return completion, time.Since(start), err
}

// startCandidate picks where the fallback walk begins: explicit preference,
// then session affinity, then the configured default.
func (c *Coordinator) startCandidate(ctx context.Context, conversationID, preferred string) string {
	if preferred != "" && c.backends.Has(preferred) {
		return preferred
	}
	if conversationID != "" {
		name, err := c.affinity.Get(ctx, conversationID)
		if err != nil {
			c.logger.Warn("affinity lookup failed",
				zap.String("conversation", conversationID),
				zap.Error(err))
		} else if name != "" && c.backends.Has(name) {
			return name
		}
	}
	if c.cfg.Default != "" && c.backends.Has(c.cfg.Default) {
		return c.cfg.Default
	}
	return ""
}

// nextCandidate walks the configured fallback order, then any remaining
// configured backend in registration order. Both walks are deterministic so
// retries are reproducible.
func (c *Coordinator) nextCandidate(attempted map[string]bool) (string, bool) {
	for _, name := range c.cfg.Order {
		if c.backends.Has(name) && !attempted[name] {
			return name, true
		}
	}
	for _, name := range c.backends.Available() {
		if !attempted[name] {
			return name, true
		}
	}
	return "", false
}

// priorityRank orders backends for consensus tie-breaks: position in the
// fallback order first, then registration order.
func (c *Coordinator) priorityRank(name string) int {
	for i, n := range c.cfg.Order {
		if n == name {
			return i
		}
	}
	for i, n := range c.backends.Available() {
		if n == name {
			return len(c.cfg.Order) + i
		}
	}
	return int(^uint(0) >> 1)
}

func (c *Coordinator) settleSuccess(name string, start time.Time, latency time.Duration) {
	c.stats.RecordSuccess(name, latency)
	if c.metrics != nil {
		c.metrics.BackendAttempt(name, "success", start)
	}
}

func (c *Coordinator) settleFailure(name string, start time.Time, latency time.Duration, err error) {
	c.stats.RecordFailure(name, latency, err)
	if c.metrics != nil {
		c.metrics.BackendAttempt(name, "failure", start)
	}
}
