// Package store provides farm.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/orchardops/farm-engine/farm"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (default, testing/dev)
// =============================================================================

// Memory keeps a private copy of the state. Nothing survives a restart.
type Memory struct {
	mu      sync.RWMutex
	state   *farm.State
	applied int
}

func NewMemory() *Memory {
	return &Memory{state: farm.NewState()}
}

// NewMemoryFrom starts from an existing state, e.g. a fixture.
func NewMemoryFrom(s *farm.State) *Memory {
	return &Memory{state: s.Clone()}
}

// Load returns a copy so the engine never shares maps with the store.
func (m *Memory) Load(_ context.Context) (*farm.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone(), nil
}

// Apply writes the whole changeset under one lock.
func (m *Memory) Apply(ctx context.Context, cs farm.Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Apply(cs)
	m.applied++
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = farm.NewState()
	return nil
}

// Applied counts accepted changesets.
func (m *Memory) Applied() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied
}
