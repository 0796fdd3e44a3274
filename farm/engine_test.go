package farm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/orchardops/farm-engine/farm"
	"github.com/orchardops/farm-engine/farm/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReset_ClearsStoreToo(t *testing.T) {
	// GIVEN: An engine with catalog and stock
	f := newFixture(t)
	g := f.grade("80-85mm")
	f.batch(g, "100", "2024-11-01")
	require.NoError(t, f.engine.SetAlertThreshold(f.ctx, 3))

	// WHEN: It is reset
	require.NoError(t, f.engine.Reset(f.ctx))

	// THEN: Nothing comes back on the next open
	reopened := f.reopen()
	assert.Empty(t, reopened.ListGrades())
	assert.Empty(t, reopened.ListBatches(true))
	assert.Equal(t, farm.DefaultAlertThreshold, reopened.AlertThreshold())
}

var errResetFailed = errors.New("reset failed")

// stuckStore refuses to reset.
type stuckStore struct {
	*store.Memory
}

func (s *stuckStore) Reset(context.Context) error { return errResetFailed }

func TestReset_StoreFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	ss := &stuckStore{Memory: f.store}
	engine, err := farm.Open(f.ctx, ss, farm.WithClock(f.clock))
	require.NoError(t, err)
	_, err = engine.CreateGrade(f.ctx, farm.GradeInput{Name: "80-85mm"})
	require.NoError(t, err)

	err = engine.Reset(f.ctx)

	require.ErrorIs(t, err, errResetFailed)
	assert.Len(t, engine.ListGrades(), 1)
}
