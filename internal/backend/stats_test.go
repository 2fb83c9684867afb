package backend

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsTrackerSettlesEveryAttempt(t *testing.T) {
	tr := NewStatsTracker()
	tr.RecordSuccess("gemini", 100*time.Millisecond)
	tr.RecordFailure("gemini", 50*time.Millisecond, errors.New("rate limited"))
	tr.RecordSuccess("gemini", 150*time.Millisecond)

	s := tr.For("gemini")
	assert.Equal(t, int64(3), s.Requests)
	assert.Equal(t, s.Requests, s.Successes+s.Failures)
	assert.Equal(t, int64(2), s.Successes)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, "rate limited", s.LastError)
	assert.Equal(t, 100*time.Millisecond, s.AverageLatency())
	assert.False(t, s.LastSuccessAt.IsZero())
}

func TestStatsTrackerUnknownBackendIsZero(t *testing.T) {
	tr := NewStatsTracker()
	s := tr.For("never-seen")
	assert.Zero(t, s.Requests)
	assert.Zero(t, s.AverageLatency())
}

func TestStatsTrackerSnapshotIsACopy(t *testing.T) {
	tr := NewStatsTracker()
	tr.RecordSuccess("gemini", time.Millisecond)

	snap := tr.Snapshot()
	entry := snap["gemini"]
	entry.Successes = 99
	snap["gemini"] = entry

	assert.Equal(t, int64(1), tr.For("gemini").Successes)
}

func TestStatsTrackerConcurrentRecording(t *testing.T) {
	tr := NewStatsTracker()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tr.RecordSuccess("gemini", time.Millisecond)
			} else {
				tr.RecordFailure("gemini", time.Millisecond, errors.New("x"))
			}
		}(i)
	}
	wg.Wait()

	s := tr.For("gemini")
	assert.Equal(t, int64(100), s.Requests)
	assert.Equal(t, s.Requests, s.Successes+s.Failures)
}
