package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingSleeper stands in for time-based waits in tests. It returns
// immediately and records every requested duration.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingSleeper struct {
	mu        sync.Mutex
	durations []time.Duration
}

// NewRecordingSleeper creates a sleeper with no recorded waits.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d. It fails only when ctx is already done.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, d)
	return nil
}

// Durations returns a copy of the recorded waits in call order.
func (s *RecordingSleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.durations))
	copy(out, s.durations)
	return out
}

// Count returns how many waits were requested.
func (s *RecordingSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.durations)
}

// Reset forgets all recorded waits.
func (s *RecordingSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = nil
}
