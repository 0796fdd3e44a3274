package farm

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORTING PROJECTIONS
// =============================================================================
// Pure read-side aggregations recomputed on every call. Cancelled orders
// never count toward money figures.

type Receivable struct {
	CustomerID   CustomerID
	CustomerName string
	TotalUnpaid  decimal.Decimal
	Orders       []Order
}

type FinanceSummary struct {
	TotalSales  decimal.Decimal
	TotalCost   decimal.Decimal
	TotalProfit decimal.Decimal
	Received    decimal.Decimal
	Receivables decimal.Decimal
}

// Dashboard is the set of headline figures shown together.
type Dashboard struct {
	TodaySales             decimal.Decimal
	PendingShipmentCount   int
	PendingPickingQuantity decimal.Decimal
	AlertCount             int
}

// TodaySales sums totalAmount of today's orders that are not cancelled.
func (e *Engine) TodaySales() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.todaySales()
}

func (e *Engine) todaySales() decimal.Decimal {
	today := e.today()
	total := decimal.Zero
	for _, o := range e.state.Orders {
		if o.Status != StatusCancelled && o.createdOn(today, e.loc) {
			total = total.Add(o.TotalAmount)
		}
	}
	return total
}

// PendingShipmentCount counts confirmed orders.
func (e *Engine) PendingShipmentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pendingShipments()
}

func (e *Engine) pendingShipments() int {
	n := 0
	for _, o := range e.state.Orders {
		if o.Status == StatusConfirmed {
			n++
		}
	}
	return n
}

// ReceivablesByCustomer groups unpaid, non-cancelled orders by customer.
// Customers whose net unpaid amount is zero are left out. Largest first.
func (e *Engine) ReceivablesByCustomer() []Receivable {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byCustomer := make(map[CustomerID]*Receivable)
	for _, o := range bySeq(e.state.Orders, func(o Order) int64 { return o.Seq }, nil) {
		if o.PaymentStatus == PaymentPaid || o.Status == StatusCancelled {
			continue
		}
		r, ok := byCustomer[o.CustomerID]
		if !ok {
			r = &Receivable{CustomerID: o.CustomerID, CustomerName: o.CustomerName, TotalUnpaid: decimal.Zero}
			byCustomer[o.CustomerID] = r
		}
		r.TotalUnpaid = r.TotalUnpaid.Add(o.Outstanding())
		r.Orders = append(r.Orders, o.clone())
	}

	out := make([]Receivable, 0, len(byCustomer))
	for _, r := range byCustomer {
		if r.TotalUnpaid.IsZero() {
			continue
		}
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b Receivable) int {
		if c := b.TotalUnpaid.Cmp(a.TotalUnpaid); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	return out
}

// FinanceSummary totals money figures over non-cancelled orders.
func (e *Engine) FinanceSummary() FinanceSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := FinanceSummary{
		TotalSales:  decimal.Zero,
		TotalCost:   decimal.Zero,
		Received:    decimal.Zero,
		Receivables: decimal.Zero,
	}
	for _, o := range e.state.Orders {
		if o.Status == StatusCancelled {
			continue
		}
		s.TotalSales = s.TotalSales.Add(o.TotalAmount)
		s.TotalCost = s.TotalCost.Add(o.Cost)
		s.Received = s.Received.Add(o.PaidAmount)
		if o.PaymentStatus != PaymentPaid {
			s.Receivables = s.Receivables.Add(o.Outstanding())
		}
	}
	s.TotalProfit = s.TotalSales.Sub(s.TotalCost)
	return s
}

// Dashboard gathers the headline figures under one read lock.
func (e *Engine) Dashboard() Dashboard {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pending := decimal.Zero
	for _, p := range e.state.Picking {
		if p.Status == PickingPending {
			pending = pending.Add(p.Quantity)
		}
	}
	return Dashboard{
		TodaySales:             e.todaySales(),
		PendingShipmentCount:   e.pendingShipments(),
		PendingPickingQuantity: pending,
		AlertCount:             len(e.alerts(e.alertThreshold())),
	}
}
