/*
order.go - Order ledger and lifecycle

PURPOSE:
  Creates orders against the catalog and inventory, ships them through
  FIFO allocation, and keeps payment, cost and profit consistent.

STATES:
  pending -> confirmed -> shipped -> completed
  cancelled is terminal and reachable from any state before completed.
  CreateOrder starts orders at confirmed.

  Payment is orthogonal: unpaid | partial | paid, settable at any time.

AVAILABILITY AT CREATION:
  Checked, not reserved. No batch changes until shipment. In committed
  mode the quantities of other open orders of the same grade are
  subtracted from on-hand stock first, under the same lock as the
  decision, so serialized creators cannot both pass for the same units.

PROFIT:
  profit = totalAmount - cost, re-derived by every mutation touching either.

SEE ALSO:
  - allocate.go: FIFO plan used by ShipOrder
  - reports.go: Projections over orders
*/
package farm

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUTS
// =============================================================================

type OrderLineInput struct {
	GradeID   GradeID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

type OrderInput struct {
	CustomerID CustomerID
	Items      []OrderLineInput
	Note       string
}

// =============================================================================
// CREATE
// =============================================================================

func (e *Engine) CreateOrder(ctx context.Context, in OrderInput) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	customer, ok := e.state.Customers[in.CustomerID]
	if !ok {
		return Order{}, e.reject("create order", invalid("customer_id", "unknown customer "+string(in.CustomerID)))
	}
	if len(in.Items) == 0 {
		return Order{}, e.reject("create order", invalid("items", "at least one item is required"))
	}

	// 1. Validate lines
	requested := make(map[GradeID]decimal.Decimal)
	var gradeOrder []GradeID
	items := make([]OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		grade, ok := e.state.Grades[line.GradeID]
		if !ok {
			return Order{}, e.reject("create order", invalid("items.grade_id", "unknown grade "+string(line.GradeID)))
		}
		if !line.Quantity.IsPositive() {
			return Order{}, e.reject("create order", invalid("items.quantity", "must be greater than 0"))
		}
		if line.UnitPrice.IsNegative() {
			return Order{}, e.reject("create order", invalid("items.unit_price", "must not be negative"))
		}
		if _, seen := requested[grade.ID]; !seen {
			gradeOrder = append(gradeOrder, grade.ID)
		}
		requested[grade.ID] = requested[grade.ID].Add(line.Quantity)
		items = append(items, OrderItem{
			ID:        OrderItemID(e.ids.NewID()),
			GradeID:   grade.ID,
			GradeName: grade.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	// 2. Availability per grade
	for _, id := range gradeOrder {
		available := e.available(id)
		if requested[id].GreaterThan(available) {
			return Order{}, e.reject("create order", &InsufficientInventoryError{
				GradeID:   id,
				GradeName: e.state.Grades[id].Name,
				Requested: requested[id],
				Available: available,
			})
		}
	}

	// 3. Totals and numbering
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount())
	}
	no, err := uniqueNumber(orderNo, e.today(), e.ids, e.orderNoTaken)
	if err != nil {
		return Order{}, e.reject("create order", err)
	}

	o := Order{
		ID:            OrderID(e.ids.NewID()),
		OrderNo:       no,
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		Items:         items,
		TotalAmount:   total,
		Status:        StatusConfirmed,
		PaymentStatus: PaymentUnpaid,
		PaidAmount:    decimal.Zero,
		Note:          in.Note,
		CreatedAt:     e.now(),
		Seq:           e.sequence()(),
	}
	o.withCost(decimal.Zero)

	if err := e.commit(ctx, "create order", Changeset{Orders: []Order{o}}); err != nil {
		return Order{}, err
	}
	e.logger.Info("order created",
		"order_id", o.ID, "order_no", o.OrderNo, "customer", o.CustomerName,
		"items", len(o.Items), "total", o.TotalAmount.String())
	return o.clone(), nil
}

// available is what a new order may request of a grade. Caller holds the lock.
func (e *Engine) available(grade GradeID) decimal.Decimal {
	onHand := decimal.Zero
	for _, b := range e.state.Batches {
		if b.GradeID == grade && !b.Depleted() {
			onHand = onHand.Add(b.Quantity)
		}
	}
	if e.availability == AvailabilityOnHand {
		return onHand
	}
	for _, o := range e.state.Orders {
		if !o.Status.Open() {
			continue
		}
		for _, it := range o.Items {
			if it.GradeID == grade {
				onHand = onHand.Sub(it.Quantity)
			}
		}
	}
	if onHand.IsNegative() {
		return decimal.Zero
	}
	return onHand
}

func (e *Engine) orderNoTaken(n string) bool {
	for _, o := range e.state.Orders {
		if o.OrderNo == n {
			return true
		}
	}
	return false
}

// =============================================================================
// SHIP
// =============================================================================

// ShipOrder binds every line to a batch and decrements those batches, or
// fails without changing anything. pinned may be nil.
func (e *Engine) ShipOrder(ctx context.Context, id OrderID, pinned map[OrderItemID]BatchID) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(id)
	if err != nil {
		return Order{}, e.reject("ship order", err)
	}
	if o.Status != StatusConfirmed {
		return Order{}, e.reject("ship order", &TransitionError{OrderID: o.ID, From: o.Status, Action: "ship"})
	}
	for itemID := range pinned {
		if !o.hasItem(itemID) {
			return Order{}, e.reject("ship order", invalid("batch_mapping", "order has no item "+string(itemID)))
		}
	}

	// 1. Plan every line first
	plan, err := e.planAllocation(o, pinned)
	if err != nil {
		return Order{}, e.reject("ship order", err)
	}

	// 2. Build the changeset
	for _, a := range plan.allocations {
		o.Items[a.itemIndex].BatchID = a.batchID
	}
	var batches []Batch
	for batchID, left := range plan.remaining {
		b := e.state.Batches[batchID]
		b.Quantity = left
		batches = append(batches, b)
	}
	shippedAt := e.now()
	o.Status = StatusShipped
	o.ShippedAt = &shippedAt

	if err := e.commit(ctx, "ship order", Changeset{Orders: []Order{o}, Batches: batches}); err != nil {
		return Order{}, err
	}
	for _, it := range o.Items {
		e.logger.Info("order line allocated",
			"order_no", o.OrderNo, "item_id", it.ID, "batch_id", it.BatchID,
			"quantity", it.Quantity.String())
	}
	e.logger.Info("order shipped", "order_id", o.ID, "order_no", o.OrderNo)
	return o.clone(), nil
}

// =============================================================================
// PAYMENT, COST, LIFECYCLE
// =============================================================================

// UpdatePayment sets the payment sub-state. amount is required for partial
// and must lie within [0, totalAmount]; it is ignored otherwise.
func (e *Engine) UpdatePayment(ctx context.Context, id OrderID, status PaymentStatus, amount *decimal.Decimal) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(id)
	if err != nil {
		return Order{}, e.reject("update payment", err)
	}
	switch status {
	case PaymentUnpaid:
		o.PaidAmount = decimal.Zero
	case PaymentPaid:
		o.PaidAmount = o.TotalAmount
	case PaymentPartial:
		if amount == nil {
			return Order{}, e.reject("update payment", invalid("amount", "required for partial payment"))
		}
		if amount.IsNegative() || amount.GreaterThan(o.TotalAmount) {
			return Order{}, e.reject("update payment", invalid("amount", "must be between 0 and "+o.TotalAmount.String()))
		}
		o.PaidAmount = *amount
	default:
		return Order{}, e.reject("update payment", invalid("payment_status", "must be unpaid, partial or paid"))
	}
	o.PaymentStatus = status

	if err := e.commit(ctx, "update payment", Changeset{Orders: []Order{o}}); err != nil {
		return Order{}, err
	}
	e.logger.Info("payment updated",
		"order_no", o.OrderNo, "payment_status", string(o.PaymentStatus), "paid", o.PaidAmount.String())
	return o.clone(), nil
}

// UpdateCost sets logistics/packaging cost and re-derives profit.
func (e *Engine) UpdateCost(ctx context.Context, id OrderID, cost decimal.Decimal) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cost.IsNegative() {
		return Order{}, e.reject("update cost", invalid("cost", "must not be negative"))
	}
	o, err := e.order(id)
	if err != nil {
		return Order{}, e.reject("update cost", err)
	}
	o.withCost(cost)

	if err := e.commit(ctx, "update cost", Changeset{Orders: []Order{o}}); err != nil {
		return Order{}, err
	}
	e.logger.Info("cost updated", "order_no", o.OrderNo, "cost", o.Cost.String(), "profit", o.Profit.String())
	return o.clone(), nil
}

// CompleteOrder closes a shipped order. Payment state is not checked.
func (e *Engine) CompleteOrder(ctx context.Context, id OrderID) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(id)
	if err != nil {
		return Order{}, e.reject("complete order", err)
	}
	if o.Status != StatusShipped {
		return Order{}, e.reject("complete order", &TransitionError{OrderID: o.ID, From: o.Status, Action: "complete"})
	}
	completedAt := e.now()
	o.Status = StatusCompleted
	o.CompletedAt = &completedAt

	if err := e.commit(ctx, "complete order", Changeset{Orders: []Order{o}}); err != nil {
		return Order{}, err
	}
	e.logger.Info("order completed", "order_no", o.OrderNo, "payment_status", string(o.PaymentStatus))
	return o.clone(), nil
}

// CancelOrder moves an order to cancelled. Shipped quantities stay consumed.
func (e *Engine) CancelOrder(ctx context.Context, id OrderID) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.order(id)
	if err != nil {
		return Order{}, e.reject("cancel order", err)
	}
	if o.Status == StatusCompleted || o.Status == StatusCancelled {
		return Order{}, e.reject("cancel order", &TransitionError{OrderID: o.ID, From: o.Status, Action: "cancel"})
	}
	o.Status = StatusCancelled

	if err := e.commit(ctx, "cancel order", Changeset{Orders: []Order{o}}); err != nil {
		return Order{}, err
	}
	e.logger.Info("order cancelled", "order_no", o.OrderNo)
	return o.clone(), nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (e *Engine) GetOrder(id OrderID) (Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.order(id)
}

// ListOrders returns orders oldest first. Empty status lists all.
func (e *Engine) ListOrders(status OrderStatus) []Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders := bySeq(e.state.Orders,
		func(o Order) int64 { return o.Seq },
		func(o Order) bool { return status == "" || o.Status == status },
	)
	for i := range orders {
		orders[i] = orders[i].clone()
	}
	return orders
}

// Available reports what a new order could request of a grade right now.
func (e *Engine) Available(grade GradeID) (decimal.Decimal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.state.Grades[grade]; !ok {
		return decimal.Zero, notFound("grade", grade)
	}
	return e.available(grade), nil
}

// order returns a private copy safe to modify. Caller holds the lock.
func (e *Engine) order(id OrderID) (Order, error) {
	o, ok := e.state.Orders[id]
	if !ok {
		return Order{}, notFound("order", id)
	}
	return o.clone(), nil
}

func (o Order) hasItem(id OrderItemID) bool {
	for _, it := range o.Items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// createdOn reports whether the order was created on day in loc.
func (o Order) createdOn(day Day, loc *time.Location) bool {
	return DayOf(o.CreatedAt, loc).Equal(day)
}
