package farm_test

import (
	"sync"
	"testing"
	"time"

	"github.com/orchardops/farm-engine/farm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CREATE
// =============================================================================

func TestCreateOrder_ChecksAvailabilityAcrossOrders(t *testing.T) {
	// GIVEN: 3000 of 80-85mm in stock
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "3000", "2024-11-05")

	// WHEN: An order takes 1000 at 5.5
	o := f.order(c, lineOf(g, "1000", "5.5"))

	// THEN: It is confirmed and unpaid with the exact total
	assert.Equal(t, farm.StatusConfirmed, o.Status)
	assert.Equal(t, farm.PaymentUnpaid, o.PaymentStatus)
	requireDecimal(t, "5500", o.TotalAmount)
	requireDecimal(t, "0", o.PaidAmount)
	requireDecimal(t, "5500", o.Profit)
	assert.Regexp(t, `^ORD-20241110-[0-9A-Z]{4}$`, o.OrderNo)
	assert.Empty(t, o.Items[0].BatchID)

	// AND: Batches are untouched until shipment
	requireDecimal(t, "3000", f.engine.Summarize()[0].TotalQuantity)

	// AND: A second order sees only 2000 left
	available, err := f.engine.Available(g.ID)
	require.NoError(t, err)
	requireDecimal(t, "2000", available)

	_, err = f.engine.CreateOrder(f.ctx, farm.OrderInput{CustomerID: c.ID, Items: []farm.OrderLineInput{lineOf(g, "2500", "5.5")}})
	var short *farm.InsufficientInventoryError
	require.ErrorAs(t, err, &short)
	requireDecimal(t, "2500", short.Requested)
	requireDecimal(t, "2000", short.Available)
	requireDecimal(t, "500", short.Shortfall())

	f.order(c, lineOf(g, "2000", "5.5"))
	assert.Len(t, f.engine.ListOrders(""), 2)
}

func TestCreateOrder_OnHandAvailability(t *testing.T) {
	f := newFixture(t, farm.WithAvailability(farm.AvailabilityOnHand))
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "3000", "2024-11-05")

	f.order(c, lineOf(g, "1000", "5.5"))
	f.order(c, lineOf(g, "2500", "5.5"))

	available, err := f.engine.Available(g.ID)
	require.NoError(t, err)
	requireDecimal(t, "3000", available)
}

func TestCreateOrder_SumsLinesOfTheSameGrade(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-05")

	_, err := f.engine.CreateOrder(f.ctx, farm.OrderInput{
		CustomerID: c.ID,
		Items:      []farm.OrderLineInput{lineOf(g, "60", "1"), lineOf(g, "60", "1")},
	})
	assert.ErrorIs(t, err, farm.ErrInsufficientInventory)
	assert.Empty(t, f.engine.ListOrders(""))
}

func TestCreateOrder_CancelledOrdersReleaseAvailability(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-05")

	o := f.order(c, lineOf(g, "100", "1"))
	_, err := f.engine.CancelOrder(f.ctx, o.ID)
	require.NoError(t, err)

	f.order(c, lineOf(g, "100", "1"))
}

func TestCreateOrder_Rejections(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-05")

	tests := []struct {
		name string
		in   farm.OrderInput
		want error
	}{
		{"unknown customer", farm.OrderInput{CustomerID: "nobody", Items: []farm.OrderLineInput{lineOf(g, "1", "1")}}, farm.ErrValidation},
		{"no items", farm.OrderInput{CustomerID: c.ID}, farm.ErrValidation},
		{"unknown grade", farm.OrderInput{CustomerID: c.ID, Items: []farm.OrderLineInput{{GradeID: "x", Quantity: dec("1"), UnitPrice: dec("1")}}}, farm.ErrValidation},
		{"zero quantity", farm.OrderInput{CustomerID: c.ID, Items: []farm.OrderLineInput{lineOf(g, "0", "1")}}, farm.ErrValidation},
		{"negative price", farm.OrderInput{CustomerID: c.ID, Items: []farm.OrderLineInput{lineOf(g, "1", "-1")}}, farm.ErrValidation},
		{"too much", farm.OrderInput{CustomerID: c.ID, Items: []farm.OrderLineInput{lineOf(g, "101", "1")}}, farm.ErrInsufficientInventory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateOrder(f.ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, farm.IsClientError(err))
		})
	}
	assert.Empty(t, f.engine.ListOrders(""))
}

func TestCreateOrder_ConcurrentCreatorsNeverOversell(t *testing.T) {
	// GIVEN: 1000 in stock and 20 creators asking for 100 each
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "1000", "2024-11-05")

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CreateOrder(f.ctx, farm.OrderInput{CustomerID: c.ID, Items: []farm.OrderLineInput{lineOf(g, "100", "1")}})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// THEN: Exactly the stock is committed
	assert.Equal(t, 10, accepted)
}

// =============================================================================
// SHIP (FIFO)
// =============================================================================

func TestShipOrder_FIFOWholeBatch(t *testing.T) {
	// GIVEN: A (Nov 1, 100) and B (Nov 5, 100)
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	a := f.batch(g, "100", "2024-11-01")
	b := f.batch(g, "100", "2024-11-05")

	// WHEN: Lines of 50 and 80 ship
	o := f.order(c, lineOf(g, "50", "1"), lineOf(g, "80", "1"))
	shipped, err := f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)

	// THEN: 50 comes from A, 80 from B since A cannot cover it after the first line
	assert.Equal(t, a.ID, shipped.Items[0].BatchID)
	assert.Equal(t, b.ID, shipped.Items[1].BatchID)
	requireDecimal(t, "50", f.quantity(a.ID))
	requireDecimal(t, "20", f.quantity(b.ID))
}

func TestShipOrder_OldestCoveringBatchWins(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	small := f.batch(g, "30", "2024-11-01")
	mid := f.batch(g, "100", "2024-11-03")
	f.batch(g, "100", "2024-11-02") // same size, older than mid, created later
	newer := f.batch(g, "100", "2024-11-03")

	o := f.order(c, lineOf(g, "60", "1"))
	shipped, err := f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)

	assert.NotEqual(t, small.ID, shipped.Items[0].BatchID, "too small")
	assert.NotEqual(t, mid.ID, shipped.Items[0].BatchID)
	assert.NotEqual(t, newer.ID, shipped.Items[0].BatchID)
	got, err := f.engine.GetBatch(shipped.Items[0].BatchID)
	require.NoError(t, err)
	assert.Equal(t, "2024-11-02", got.InStockDate.String())
}

func TestShipOrder_SameDayTieBrokenByCreation(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	first := f.batch(g, "100", "2024-11-03")
	f.batch(g, "100", "2024-11-03")

	o := f.order(c, lineOf(g, "10", "1"))
	shipped, err := f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, shipped.Items[0].BatchID)
}

func TestShipOrder_AllOrNothing(t *testing.T) {
	// GIVEN: A (100) and B (100); the order needs 50, 80 and 60
	f := newFixture(t, farm.WithAvailability(farm.AvailabilityOnHand))
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	a := f.batch(g, "100", "2024-11-01")
	b := f.batch(g, "100", "2024-11-05")
	o := f.order(c, lineOf(g, "50", "1"), lineOf(g, "80", "1"), lineOf(g, "60", "1"))

	// WHEN: Shipping
	_, err := f.engine.ShipOrder(f.ctx, o.ID, nil)

	// THEN: The third line fails and nothing changed
	var short *farm.InsufficientInventoryError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, o.Items[2].ID, short.ItemID)
	requireDecimal(t, "50", short.Available, "largest batch remainder in the plan")
	requireDecimal(t, "100", f.quantity(a.ID))
	requireDecimal(t, "100", f.quantity(b.ID))

	got, err := f.engine.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, farm.StatusConfirmed, got.Status)
	for _, it := range got.Items {
		assert.Empty(t, it.BatchID)
	}
}

func TestShipOrder_NoLineSplitting(t *testing.T) {
	// 60 + 60 on hand, but no single batch covers 100
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "60", "2024-11-01")
	f.batch(g, "60", "2024-11-02")
	o := f.order(c, lineOf(g, "100", "1"))

	_, err := f.engine.ShipOrder(f.ctx, o.ID, nil)
	assert.ErrorIs(t, err, farm.ErrInsufficientInventory)
}

func TestShipOrder_StoreFailureChangesNothing(t *testing.T) {
	f, fs := newFlakyFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	a := f.batch(g, "100", "2024-11-01")
	o := f.order(c, lineOf(g, "40", "1"))

	fs.setFail(true)
	_, err := f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.ErrorIs(t, err, errDiskFull)

	requireDecimal(t, "100", f.quantity(a.ID))
	got, err := f.engine.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, farm.StatusConfirmed, got.Status)

	// Recovers once the store does
	fs.setFail(false)
	_, err = f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)
	requireDecimal(t, "60", f.quantity(a.ID))
}

func TestShipOrder_ExplicitMapping(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	other := f.grade("75-80mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-01")
	newer := f.batch(g, "100", "2024-11-05")
	wrongGrade := f.batch(other, "100", "2024-11-01")

	o := f.order(c, lineOf(g, "50", "1"))
	item := o.Items[0].ID

	// Wrong grade
	_, err := f.engine.ShipOrder(f.ctx, o.ID, map[farm.OrderItemID]farm.BatchID{item: wrongGrade.ID})
	assert.ErrorIs(t, err, farm.ErrValidation)

	// Unknown batch
	_, err = f.engine.ShipOrder(f.ctx, o.ID, map[farm.OrderItemID]farm.BatchID{item: "missing"})
	assert.ErrorIs(t, err, farm.ErrNotFound)

	// Unknown item
	_, err = f.engine.ShipOrder(f.ctx, o.ID, map[farm.OrderItemID]farm.BatchID{"ghost": newer.ID})
	assert.ErrorIs(t, err, farm.ErrValidation)

	// Pinned to the newer batch instead of the FIFO choice
	shipped, err := f.engine.ShipOrder(f.ctx, o.ID, map[farm.OrderItemID]farm.BatchID{item: newer.ID})
	require.NoError(t, err)
	assert.Equal(t, newer.ID, shipped.Items[0].BatchID)
	requireDecimal(t, "50", f.quantity(newer.ID))
}

func TestShipOrder_ExplicitMappingMustCover(t *testing.T) {
	f := newFixture(t, farm.WithAvailability(farm.AvailabilityOnHand))
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	small := f.batch(g, "30", "2024-11-01")
	f.batch(g, "100", "2024-11-02")
	o := f.order(c, lineOf(g, "50", "1"))

	_, err := f.engine.ShipOrder(f.ctx, o.ID, map[farm.OrderItemID]farm.BatchID{o.Items[0].ID: small.ID})
	assert.ErrorIs(t, err, farm.ErrInsufficientInventory)
	requireDecimal(t, "30", f.quantity(small.ID))
}

func TestShipOrder_OnlyFromConfirmed(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-01")
	o := f.order(c, lineOf(g, "10", "1"))

	_, err := f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.ShipOrder(f.ctx, o.ID, nil)
	var te *farm.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, farm.StatusShipped, te.From)

	_, err = f.engine.ShipOrder(f.ctx, "missing", nil)
	assert.ErrorIs(t, err, farm.ErrNotFound)
}

// =============================================================================
// LIFECYCLE, PAYMENT, COST
// =============================================================================

func TestOrderLifecycle(t *testing.T) {
	// GIVEN: A confirmed order for 1000 x 5.5 over a 3000 batch
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	b := f.batch(g, "3000", "2024-11-05")
	o := f.order(c, lineOf(g, "1000", "5.5"))

	// WHEN: Shipped
	f.clock.Advance(2 * time.Hour)
	shipped, err := f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)

	// THEN: The batch lost 1000 and the line is bound to it
	assert.Equal(t, farm.StatusShipped, shipped.Status)
	assert.Equal(t, b.ID, shipped.Items[0].BatchID)
	require.NotNil(t, shipped.ShippedAt)
	assert.Equal(t, f.clock.At, *shipped.ShippedAt)
	requireDecimal(t, "2000", f.quantity(b.ID))

	// WHEN: Cost is set to 200
	withCost, err := f.engine.UpdateCost(f.ctx, o.ID, dec("200"))
	require.NoError(t, err)
	requireDecimal(t, "5300", withCost.Profit)

	// WHEN: Marked paid
	paid, err := f.engine.UpdatePayment(f.ctx, o.ID, farm.PaymentPaid, nil)
	require.NoError(t, err)
	requireDecimal(t, "5500", paid.PaidAmount)

	// WHEN: Completed
	done, err := f.engine.CompleteOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, farm.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	// THEN: Profit still holds and nothing else can happen
	requireDecimal(t, "5300", done.Profit)
	_, err = f.engine.CancelOrder(f.ctx, o.ID)
	assert.ErrorIs(t, err, farm.ErrInvalidTransition)
	_, err = f.engine.CompleteOrder(f.ctx, o.ID)
	assert.ErrorIs(t, err, farm.ErrInvalidTransition)
}

func TestCompleteOrder_RequiresShipped(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-01")
	o := f.order(c, lineOf(g, "10", "1"))

	_, err := f.engine.CompleteOrder(f.ctx, o.ID)
	assert.ErrorIs(t, err, farm.ErrInvalidTransition)
}

func TestCompleteOrder_IgnoresPayment(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-01")
	o := f.order(c, lineOf(g, "10", "1"))
	_, err := f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)

	done, err := f.engine.CompleteOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, farm.PaymentUnpaid, done.PaymentStatus)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	b := f.batch(g, "100", "2024-11-01")

	// Confirmed orders cancel freely
	o := f.order(c, lineOf(g, "10", "1"))
	cancelled, err := f.engine.CancelOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, farm.StatusCancelled, cancelled.Status)
	_, err = f.engine.CancelOrder(f.ctx, o.ID)
	assert.ErrorIs(t, err, farm.ErrInvalidTransition)

	// Shipped orders cancel but the stock stays consumed
	o = f.order(c, lineOf(g, "40", "1"))
	_, err = f.engine.ShipOrder(f.ctx, o.ID, nil)
	require.NoError(t, err)
	_, err = f.engine.CancelOrder(f.ctx, o.ID)
	require.NoError(t, err)
	requireDecimal(t, "60", f.quantity(b.ID))
}

func TestUpdatePayment(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "2000", "2024-11-01")
	o := f.order(c, lineOf(g, "1500", "5.8"))
	requireDecimal(t, "8700", o.TotalAmount)

	amount := dec("5000")
	partial, err := f.engine.UpdatePayment(f.ctx, o.ID, farm.PaymentPartial, &amount)
	require.NoError(t, err)
	assert.Equal(t, farm.PaymentPartial, partial.PaymentStatus)
	requireDecimal(t, "5000", partial.PaidAmount)
	requireDecimal(t, "3700", partial.Outstanding())

	unpaid, err := f.engine.UpdatePayment(f.ctx, o.ID, farm.PaymentUnpaid, nil)
	require.NoError(t, err)
	requireDecimal(t, "0", unpaid.PaidAmount)

	// Rejections leave the order alone
	over := dec("8700.01")
	negative := dec("-1")
	_, err = f.engine.UpdatePayment(f.ctx, o.ID, farm.PaymentPartial, &over)
	assert.ErrorIs(t, err, farm.ErrValidation)
	_, err = f.engine.UpdatePayment(f.ctx, o.ID, farm.PaymentPartial, &negative)
	assert.ErrorIs(t, err, farm.ErrValidation)
	_, err = f.engine.UpdatePayment(f.ctx, o.ID, farm.PaymentPartial, nil)
	assert.ErrorIs(t, err, farm.ErrValidation)
	_, err = f.engine.UpdatePayment(f.ctx, o.ID, "refunded", nil)
	assert.ErrorIs(t, err, farm.ErrValidation)
	_, err = f.engine.UpdatePayment(f.ctx, "missing", farm.PaymentPaid, nil)
	assert.ErrorIs(t, err, farm.ErrNotFound)

	got, err := f.engine.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, farm.PaymentUnpaid, got.PaymentStatus)
}

func TestUpdateCost_RecomputesProfit(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-01")
	o := f.order(c, lineOf(g, "10", "3.3"))

	for _, cost := range []string{"0", "12.75", "40"} {
		got, err := f.engine.UpdateCost(f.ctx, o.ID, dec(cost))
		require.NoError(t, err)
		assert.True(t, got.Profit.Equal(got.TotalAmount.Sub(got.Cost)), "profit must equal total - cost")
	}

	_, err := f.engine.UpdateCost(f.ctx, o.ID, dec("-1"))
	assert.ErrorIs(t, err, farm.ErrValidation)
}

func TestGetOrder_ReturnsCopies(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-01")
	o := f.order(c, lineOf(g, "10", "1"))

	got, err := f.engine.GetOrder(o.ID)
	require.NoError(t, err)
	got.Items[0].Quantity = decimal.NewFromInt(99)

	again, err := f.engine.GetOrder(o.ID)
	require.NoError(t, err)
	requireDecimal(t, "10", again.Items[0].Quantity)
}

func TestListOrders_FilterByStatus(t *testing.T) {
	f := newFixture(t)
	g := f.grade("80-85mm")
	c := f.customer("Zhang San")
	f.batch(g, "100", "2024-11-01")
	first := f.order(c, lineOf(g, "10", "1"))
	f.order(c, lineOf(g, "10", "1"))
	_, err := f.engine.ShipOrder(f.ctx, first.ID, nil)
	require.NoError(t, err)

	all := f.engine.ListOrders("")
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID, "oldest first")
	assert.Len(t, f.engine.ListOrders(farm.StatusShipped), 1)
	assert.Len(t, f.engine.ListOrders(farm.StatusConfirmed), 1)
}

func TestAvailable_UnknownGrade(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Available("nope")
	assert.ErrorIs(t, err, farm.ErrNotFound)
}
