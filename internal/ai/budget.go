package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BudgetChecker checks and records token usage per learner session.
type BudgetChecker interface {
	// Check returns true if the session has budget remaining.
	Check(sessionID string) (bool, error)
	// Record adds token usage for a session.
	Record(sessionID string, tokens int) error
	// Usage returns current usage and the limit (0 means unlimited).
	Usage(sessionID string) (used int64, limit int64, err error)
}

type budgetEntry struct {
	used    int64
	touched time.Time
}

// InMemoryBudget applies one token limit to every session.
type InMemoryBudget struct {
	mu    sync.RWMutex
	limit int64                  // 0 means unlimited
	usage map[string]budgetEntry // session ID -> tokens used
	now   func() time.Time
}

// NewInMemoryBudget creates a tracker with the given per-session limit.
func NewInMemoryBudget(limit int64) *InMemoryBudget {
	return &InMemoryBudget{
		limit: limit,
		usage: make(map[string]budgetEntry),
		now:   time.Now,
	}
}

// SetClock replaces the time source.
func (b *InMemoryBudget) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *InMemoryBudget) Check(sessionID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.limit <= 0 {
		return true, nil
	}
	return b.usage[sessionID].used < b.limit, nil
}

func (b *InMemoryBudget) Record(sessionID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.usage[sessionID]
	e.used += int64(tokens)
	e.touched = b.now()
	b.usage[sessionID] = e
	return nil
}

func (b *InMemoryBudget) Usage(sessionID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[sessionID].used, b.limit, nil
}

// Forget drops the usage counter of a discarded session.
func (b *InMemoryBudget) Forget(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.usage, sessionID)
}

// Prune drops counters not recorded to within idle, so sessions that expire
// in their store do not pin memory here. It returns how many were removed.
func (b *InMemoryBudget) Prune(idle time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-idle)
	removed := 0
	for id, e := range b.usage {
		if !e.touched.After(cutoff) {
			delete(b.usage, id)
			removed++
		}
	}
	return removed
}

// RunPruner calls Prune every interval until ctx is done.
func (b *InMemoryBudget) RunPruner(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Prune(idle)
		}
	}
}

// Len returns the number of tracked sessions.
func (b *InMemoryBudget) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.usage)
}
