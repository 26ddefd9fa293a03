// Package shopping tracks which member, if any, is currently shopping for
// each household. At most one session exists per household.
package shopping

import (
	"context"
	"sync"

	"github.com/dukerupert/smartcart/internal/model"
)

// Tracker holds the per-household shopping session.
type Tracker interface {
	// Start begins a session. It reports false without changing anything if
	// the household already has an active shopper.
	Start(ctx context.Context, householdID int64, shopper model.Shopper) (bool, error)
	// Current returns the active shopper or nil.
	Current(ctx context.Context, householdID int64) (*model.Shopper, error)
	// Finish ends the session only if userID is the active shopper.
	Finish(ctx context.Context, householdID, userID int64) (bool, error)
	// Clear drops any session for the household.
	Clear(ctx context.Context, householdID int64) error
}

// MemoryTracker is a process-local Tracker.
type MemoryTracker struct {
	mu       sync.Mutex
	sessions map[int64]model.Shopper
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{sessions: make(map[int64]model.Shopper)}
}

func (t *MemoryTracker) Start(_ context.Context, householdID int64, shopper model.Shopper) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[householdID]; ok {
		return false, nil
	}
	t.sessions[householdID] = shopper
	return true, nil
}

func (t *MemoryTracker) Current(_ context.Context, householdID int64) (*model.Shopper, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[householdID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *MemoryTracker) Finish(_ context.Context, householdID, userID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[householdID]
	if !ok || s.UserID != userID {
		return false, nil
	}
	delete(t.sessions, householdID)
	return true, nil
}

func (t *MemoryTracker) Clear(_ context.Context, householdID int64) error {
	t.mu.Lock()
	delete(t.sessions, householdID)
	t.mu.Unlock()
	return nil
}
