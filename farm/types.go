/*
Package farm provides the inventory and order fulfillment engine.

PURPOSE:
  This package holds the business rules of the farm operations system:
  how raw harvested produce becomes graded, batch-tracked inventory, how
  that inventory ages and raises alerts, how orders check and consume it
  through FIFO allocation, and how order lifecycle changes keep payment,
  cost and profit figures consistent.

KEY CONCEPTS IN THIS FILE (types.go):
  - Catalog entities: Grade, Orchard, Customer
  - Harvest: PickingRecord with pending/processed status
  - Inventory: Batch (graded, dated, remaining quantity)
  - Orders: Order and OrderItem with status and payment sub-state
  - Derived views: BatchView, InventorySummary, InventoryAlert

DESIGN PRINCIPLES:
  1. Snapshot names: GradeName, OrchardName, CustomerName are copied at
     creation and never follow later renames
  2. Precision: quantities and money use decimal.Decimal
  3. Derived values are computed on read (DaysInStock, summaries, alerts)
  4. Type safety: one id type per entity

SEE ALSO:
  - engine.go: The single-writer service exposing all operations
  - errors.go: Error taxonomy
  - day.go: Calendar day arithmetic
*/
package farm

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GradeID string
type OrchardID string
type CustomerID string
type PickingID string
type BatchID string
type OrderID string
type OrderItemID string

// =============================================================================
// CATALOG
// =============================================================================

// Grade is a size/quality classification applied to sorted produce.
type Grade struct {
	ID   GradeID
	Name string // e.g. "80-85mm"
	Code string // e.g. "80-85"
	Seq  int64
}

// Orchard is a plot produce is picked from.
type Orchard struct {
	ID          OrchardID
	Name        string
	Description string
	Seq         int64
}

type Customer struct {
	ID      CustomerID
	Name    string
	Phone   string
	Address string
	Note    string
	Seq     int64
}

// =============================================================================
// HARVEST
// =============================================================================

type PickingUnit string

const (
	UnitJin    PickingUnit = "jin"
	UnitBasket PickingUnit = "basket"
)

func (u PickingUnit) Valid() bool { return u == UnitJin || u == UnitBasket }

type PickingStatus string

const (
	PickingPending   PickingStatus = "pending"
	PickingProcessed PickingStatus = "processed"
)

// PickingRecord is a raw harvest event before sorting.
// Status moves pending -> processed exactly once and never reverses.
type PickingRecord struct {
	ID          PickingID
	OrchardID   OrchardID
	OrchardName string // snapshot at creation
	Quantity    decimal.Decimal
	Unit        PickingUnit
	Date        Day
	PickerID    string
	Status      PickingStatus
	Seq         int64
}

// =============================================================================
// INVENTORY
// =============================================================================

// Batch is a dated, graded quantity of inventory. Quantity is the remaining
// amount; it never increases after creation and a batch is never deleted.
type Batch struct {
	ID              BatchID
	BatchNo         string // BATCH-YYYYMMDD-XXXX
	GradeID         GradeID
	GradeName       string // snapshot at creation
	Quantity        decimal.Decimal
	InStockDate     Day
	PickingRecordID PickingID // empty when not linked
	CreatedAt       time.Time
	Seq             int64
}

// Depleted reports whether nothing remains in the batch.
func (b Batch) Depleted() bool { return !b.Quantity.IsPositive() }

// BatchView is a batch plus its age as of the engine clock.
type BatchView struct {
	Batch
	DaysInStock int
}

// InventorySummary aggregates active batches of one grade.
type InventorySummary struct {
	GradeID       GradeID
	GradeName     string
	TotalQuantity decimal.Decimal
	Batches       []BatchView
}

type AlertType string

const (
	AlertAge AlertType = "age"
)

// InventoryAlert is emitted for an active batch whose age reached the threshold.
type InventoryAlert struct {
	ID          string
	BatchID     BatchID
	BatchNo     string
	GradeName   string
	Message     string
	Type        AlertType
	DaysInStock int
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Open reports whether the order still waits for shipment.
func (s OrderStatus) Open() bool { return s == StatusPending || s == StatusConfirmed }

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentUnpaid || p == PaymentPartial || p == PaymentPaid
}

type OrderItem struct {
	ID        OrderItemID
	GradeID   GradeID
	GradeName string // snapshot at creation
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	BatchID   BatchID // bound at shipment
}

// Amount returns quantity x unit price.
func (i OrderItem) Amount() decimal.Decimal { return i.Quantity.Mul(i.UnitPrice) }

type Order struct {
	ID            OrderID
	OrderNo       string // ORD-YYYYMMDD-XXXX
	CustomerID    CustomerID
	CustomerName  string // snapshot at creation
	Items         []OrderItem
	TotalAmount   decimal.Decimal
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaidAmount    decimal.Decimal
	Cost          decimal.Decimal
	Profit        decimal.Decimal // always TotalAmount - Cost
	Note          string
	CreatedAt     time.Time
	ShippedAt     *time.Time
	CompletedAt   *time.Time
	Seq           int64
}

// Outstanding is the unpaid portion of the order.
func (o Order) Outstanding() decimal.Decimal { return o.TotalAmount.Sub(o.PaidAmount) }

func (o Order) clone() Order {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.ShippedAt != nil {
		t := *o.ShippedAt
		c.ShippedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// withCost sets cost and re-derives profit. Profit is never set directly.
func (o *Order) withCost(cost decimal.Decimal) {
	o.Cost = cost
	o.Profit = o.TotalAmount.Sub(o.Cost)
}

// =============================================================================
// SETTINGS
// =============================================================================

// DefaultAlertThreshold is the aging alert threshold in days.
const DefaultAlertThreshold = 7

type Settings struct {
	AlertThresholdDays int
}
