package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/caseline/caseline/internal/backend"

	"go.uber.org/zap"
)

// ConsensusResult carries the best response plus every individual outcome,
// so callers can show disagreement between providers.
type ConsensusResult struct {
	Best      *Result           `json:"best"`
	Responses []*Result         `json:"responses"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// GetConsensus fans the same request out to several backends concurrently
// and synthesizes a single answer. One backend's failure never cancels the
// others. The best response is the highest-confidence success; equal
// confidences break by fallback-order priority, then registration order.
func (c *Coordinator) GetConsensus(ctx context.Context, conversationID string, req *backend.Request, names []string) (*ConsensusResult, error) {
	if len(names) == 0 {
		names = c.backends.Available()
	}
	candidates := make([]string, 0, len(names))
	for _, name := range names {
		if c.backends.Has(name) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return nil, &ExhaustedError{Attempted: names, LastCause: backend.ErrNotConfigured}
	}

	results := make([]*Result, len(candidates))
	errs := make([]error, len(candidates))
	var wg sync.WaitGroup
	for i, name := range candidates {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			adapter, err := c.backends.Get(name)
			if err != nil {
				errs[i] = err
				return
			}
			start := time.Now()
			completion, latency, err := c.attempt(ctx, adapter, req)
			if err != nil {
				c.settleFailure(name, start, latency, err)
				errs[i] = err
				return
			}
			c.settleSuccess(name, start, latency)
			results[i] = &Result{
				Text:       completion.Text,
				Model:      completion.Model,
				Confidence: completion.Confidence,
				Backend:    name,
				Latency:    latency,
			}
		}(i, name)
	}
	wg.Wait()

	var responses []*Result
	failures := make(map[string]string)
	var lastErr error
	var best *Result
	for i, name := range candidates {
		if errs[i] != nil {
			failures[name] = errs[i].Error()
			lastErr = errs[i]
			continue
		}
		res := results[i]
		responses = append(responses, res)
		if best == nil ||
			res.Confidence > best.Confidence ||
			(res.Confidence == best.Confidence && c.priorityRank(res.Backend) < c.priorityRank(best.Backend)) {
			best = res
		}
	}

	if best == nil {
		return nil, &ExhaustedError{Attempted: candidates, LastCause: lastErr}
	}

	if err := c.affinity.Set(ctx, conversationID, best.Backend); err != nil {
		c.logger.Warn("failed to record affinity",
			zap.String("conversation", conversationID),
			zap.Error(err))
	}
	c.logger.Info("consensus settled",
		zap.String("conversation", conversationID),
		zap.String("best", best.Backend),
		zap.Int("responses", len(responses)),
		zap.Int("failures", len(failures)))

	return &ConsensusResult{Best: best, Responses: responses, Failures: failures}, nil
}
