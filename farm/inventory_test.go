package farm_test

import (
	"testing"
	"time"

	"github.com/orchardops/farm-engine/farm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BATCHES
// =============================================================================

func TestDaysInStock_ComputedOnRead(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	b := f.batch(g, "100", "2024-11-05")
	assert.Equal(t, 5, b.DaysInStock)

	f.clock.Advance(24 * time.Hour)

	got, err := f.engine.GetBatch(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.DaysInStock)
}

func TestDaysInStock_UsesEngineLocation(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	// 2024-11-10 09:00 UTC is 2024-11-10 17:00 in Shanghai
	east := newFixture(t, farm.WithLocation(shanghai))
	assert.Equal(t, "2024-11-10", east.engine.Today().String())

	// 2024-11-10 05:00 UTC is still 2024-11-09 21:00 in Los Angeles
	west := newFixture(t, farm.WithLocation(la))
	west.clock.At = time.Date(2024, time.November, 10, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-11-09", west.engine.Today().String())

	b := west.batch(west.grade("80-85mm"), "10", "2024-11-01")
	assert.Equal(t, 8, b.DaysInStock)

	// The same instant counted in UTC is one day later
	utc := newFixture(t)
	utc.clock.At = west.clock.At
	assert.Equal(t, 9, utc.batch(utc.grade("80-85mm"), "10", "2024-11-01").DaysInStock)
}

func TestCreateBatch_Rejections(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")

	_, err := f.engine.CreateBatch(f.ctx, farm.BatchInput{GradeID: g.ID, Quantity: dec("0")})
	assert.ErrorIs(t, err, farm.ErrValidation)

	_, err = f.engine.CreateBatch(f.ctx, farm.BatchInput{GradeID: "unknown", Quantity: dec("10")})
	assert.ErrorIs(t, err, farm.ErrValidation)

	_, err = f.engine.CreateBatch(f.ctx, farm.BatchInput{GradeID: g.ID, Quantity: dec("10"), PickingRecordID: "missing"})
	assert.ErrorIs(t, err, farm.ErrValidation)

	assert.Empty(t, f.engine.ListBatches(true))
}

func TestReduceBatch_ClampsAtZero(t *testing.T) {
	// GIVEN: A batch of 100
	f := newFixture(t)
	g := f.grade("80-85mm")
	b := f.batch(g, "100", "2024-11-01")

	// WHEN: 150 are removed
	got, err := f.engine.ReduceBatch(f.ctx, b.ID, dec("150"))
	require.NoError(t, err)

	// THEN: The batch sits at zero, is depleted and leaves the summary
	requireDecimal(t, "0", got.Quantity)
	assert.True(t, got.Depleted())
	assert.Empty(t, f.engine.Summarize())
	assert.Empty(t, f.engine.ListBatches(false))
	assert.Len(t, f.engine.ListBatches(true), 1)
}

func TestReduceBatch_Partial(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	b := f.batch(g, "100", "2024-11-01")

	got, err := f.engine.ReduceBatch(f.ctx, b.ID, dec("30.5"))
	require.NoError(t, err)
	requireDecimal(t, "69.5", got.Quantity)
}

func TestReduceBatch_Rejections(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	b := f.batch(g, "100", "2024-11-01")

	_, err := f.engine.ReduceBatch(f.ctx, b.ID, dec("0"))
	assert.ErrorIs(t, err, farm.ErrValidation)
	_, err = f.engine.ReduceBatch(f.ctx, b.ID, dec("-3"))
	assert.ErrorIs(t, err, farm.ErrValidation)
	_, err = f.engine.ReduceBatch(f.ctx, "missing", dec("3"))
	assert.ErrorIs(t, err, farm.ErrNotFound)

	requireDecimal(t, "100", f.quantity(b.ID))
}

func TestQuantities_NeverNegative(t *testing.T) {
	// Any mix of reductions and shipments leaves every batch >= 0
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	a := f.batch(g, "100", "2024-11-01")
	b := f.batch(g, "40", "2024-11-02")

	_, err := f.engine.ReduceBatch(f.ctx, a.ID, dec("70"))
	require.NoError(t, err)
	o := f.order(c, lineOf(g, "40", "1"))
	_, err = f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)
	_, err = f.engine.ReduceBatch(f.ctx, b.ID, dec("1000"))
	require.NoError(t, err)

	for _, v := range f.engine.ListBatches(true) {
		assert.False(t, v.Quantity.IsNegative(), "batch %s went negative: %s", v.BatchNo, v.Quantity)
	}
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummarize_GroupsActiveBatchesByGrade(t *testing.T) {
	f := newFixture(t)
	premium := f.grade("85mm+")
	standard := f.grade("80-85mm")

	// Created out of grade order on purpose
	f.batch(standard, "2000", "2024-11-05")
	f.batch(premium, "1000", "2024-11-05")
	f.batch(standard, "1500", "2024-11-02")
	empty := f.batch(premium, "10", "2024-11-01")
	_, err := f.engine.ReduceBatch(f.ctx, empty.ID, dec("10"))
	require.NoError(t, err)

	summary := f.engine.Summarize()
	require.Len(t, summary, 2)

	assert.Equal(t, premium.ID, summary[0].GradeID)
	requireDecimal(t, "1000", summary[0].TotalQuantity)
	assert.Len(t, summary[0].Batches, 1)

	assert.Equal(t, standard.ID, summary[1].GradeID)
	requireDecimal(t, "3500", summary[1].TotalQuantity)
	require.Len(t, summary[1].Batches, 2)
	assert.Equal(t, "2024-11-02", summary[1].Batches[0].InStockDate.String(), "oldest batch first")
}

func TestSummarize_UsesCurrentGradeName(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	b := f.batch(g, "10", "2024-11-05")

	name := "80-85mm export"
	_, err := f.engine.UpdateGrade(f.ctx, g.ID, farm.GradeUpdate{Name: &name})
	require.NoError(t, err)

	summary := f.engine.Summarize()
	require.Len(t, summary, 1)
	assert.Equal(t, "80-85mm export", summary[0].GradeName)

	// The batch keeps the name it was created with
	got, err := f.engine.GetBatch(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "80-85mm", got.GradeName)
}

// =============================================================================
// ALERTS
// =============================================================================

func TestAlerts_ThresholdBoundary(t *testing.T) {
	// GIVEN: Batches 6 and 7 days old
	f := newFixture(t)
	g := f.grade("80-85mm")
	f.batch(g, "100", "2024-11-04") // 6 days
	seven := f.batch(g, "100", "2024-11-03")

	// WHEN: Alerts are listed at threshold 7
	alerts := f.engine.ListAlerts(7)

	// THEN: Only the 7 day batch alerts
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, seven.ID, a.BatchID)
	assert.Equal(t, seven.BatchNo, a.BatchNo)
	assert.Equal(t, 7, a.DaysInStock)
	assert.Equal(t, farm.AlertAge, a.Type)
	assert.Equal(t, "alert-"+string(seven.ID), a.ID)
	assert.Equal(t, "80-85mm batch "+seven.BatchNo+" has been in stock for 7 days, check for spoilage", a.Message)

	// AND: At threshold 6 both alert
	assert.Len(t, f.engine.ListAlerts(6), 2)
}

func TestAlerts_SkipDepletedBatches(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	old := f.batch(g, "100", "2024-10-01")
	_, err := f.engine.ReduceBatch(f.ctx, old.ID, dec("100"))
	require.NoError(t, err)

	assert.Empty(t, f.engine.ListAlerts(1))
}

func TestAlerts_AppearAsTimePasses(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	f.batch(g, "100", "2024-11-04")
	assert.Empty(t, f.engine.ListInventoryAlerts())

	f.clock.Advance(24 * time.Hour)

	assert.Len(t, f.engine.ListInventoryAlerts(), 1)
}

func TestSetAlertThreshold(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	f.batch(g, "100", "2024-11-06") // 4 days

	assert.Equal(t, farm.DefaultAlertThreshold, f.engine.AlertThreshold())
	assert.Empty(t, f.engine.ListInventoryAlerts())

	err := f.engine.SetAlertThreshold(f.ctx, 0)
	assert.ErrorIs(t, err, farm.ErrValidation)

	require.NoError(t, f.engine.SetAlertThreshold(f.ctx, 4))
	assert.Equal(t, 4, f.engine.AlertThreshold())
	assert.Len(t, f.engine.ListInventoryAlerts(), 1)

	// Persisted across restarts, overriding the configured default
	reopened := f.reopen(farm.WithDefaultAlertThreshold(10))
	assert.Equal(t, 4, reopened.AlertThreshold())
}

func TestDefaultAlertThreshold_Option(t *testing.T) {
	f := newFixture(t, farm.WithDefaultAlertThreshold(3))
	assert.Equal(t, 3, f.engine.AlertThreshold())

	_, err := farm.Open(f.ctx, f.store, farm.WithDefaultAlertThreshold(0))
	assert.Error(t, err)
}
