package backend

import (
	"sync"
	"time"
)

// Stats are the rolling counters for one backend. A request in flight has
// been counted in Requests but not yet in Successes or Failures; once every
// attempt settles, Successes+Failures == Requests.
type Stats struct {
	Requests      int64         `json:"requests"`
	Successes     int64         `json:"successes"`
	Failures      int64         `json:"failures"`
	TotalLatency  time.Duration `json:"total_latency_ns"`
	LastError     string        `json:"last_error,omitempty"`
	LastSuccessAt time.Time     `json:"last_success_at,omitempty"`
}

// AverageLatency returns the mean latency across settled attempts.
func (s Stats) AverageLatency() time.Duration {
	settled := s.Successes + s.Failures
	if settled == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(settled)
}

// StatsTracker keeps per-backend statistics. It is mutated only by the
// coordinator after each attempt; readers take a copied snapshot instead of
// reading fields piecemeal.
type StatsTracker struct {
	mu     sync.Mutex
	byName map[string]*Stats
}

// NewStatsTracker creates an empty tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{byName: make(map[string]*Stats)}
}

func (t *StatsTracker) get(name string) *Stats {
	s, ok := t.byName[name]
	if !ok {
		s = &Stats{}
		t.byName[name] = s
	}
	return s
}

// RecordSuccess settles one successful attempt.
func (t *StatsTracker) RecordSuccess(name string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(name)
	s.Requests++
	s.Successes++
	s.TotalLatency += latency
	s.LastSuccessAt = time.Now()
}

// RecordFailure settles one failed attempt.
func (t *StatsTracker) RecordFailure(name string, latency time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(name)
	s.Requests++
	s.Failures++
	s.TotalLatency += latency
	if err != nil {
		s.LastError = err.Error()
	}
}

// Snapshot returns a copy of all per-backend stats.
func (t *StatsTracker) Snapshot() map[string]Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Stats, len(t.byName))
	for name, s := range t.byName {
		out[name] = *s
	}
	return out
}

// For returns a copy of one backend's stats.
func (t *StatsTracker) For(name string) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byName[name]
	if !ok {
		return Stats{}
	}
	return *s
}
