// Package store provides TimelineStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/zeus-health/account-processor/enrollment"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	timelines map[enrollment.AccountID]*enrollment.Timeline
}

func NewMemory() *Memory {
	return &Memory{timelines: make(map[enrollment.AccountID]*enrollment.Timeline)}
}

// Timeline returns a deep copy of the account's timeline so callers can
// hand it to the engine without racing the store.
func (m *Memory) Timeline(_ context.Context, accountID enrollment.AccountID) (*enrollment.Timeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tl, ok := m.timelines[accountID]
	if !ok {
		return enrollment.NewTimeline(accountID), nil
	}
	return tl.Clone(), nil
}

// Apply upserts the mutation set. The in-memory map swap is atomic under
// the lock; a mutation set is either fully visible or not at all.
func (m *Memory) Apply(_ context.Context, accountID enrollment.AccountID, muts *enrollment.Mutations) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tl, ok := m.timelines[accountID]
	if !ok {
		tl = enrollment.NewTimeline(accountID)
		m.timelines[accountID] = tl
	}

	for _, s := range muts.NewSpans {
		span := *s
		tl.AddSpan(&span)
	}
	for _, s := range muts.UpdatedSpans {
		span := *s
		tl.AddSpan(&span)
	}
	for _, p := range muts.NewPremiums {
		premium := *p
		tl.AddPremium(&premium)
	}
	for _, p := range muts.UpdatedPremiums {
		premium := *p
		tl.AddPremium(&premium)
	}
	return nil
}
