/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the farm domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

NUMBERS:
  Quantities and money go out as JSON numbers carrying the exact decimal
  text (json.Number), so 5.5 * 1000 is 5500 and never 5499.999.
  Requests take plain numbers.

VALIDATION:
  Request types carry go-playground/validator tags checked by decode().
  Rules that need engine state (known grade, enough stock) are left to
  the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - farm/types.go: Domain model
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/orchardops/farm-engine/farm"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOG
// =============================================================================

type GradeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type GradeRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"max=20"`
}

// UpdateGradeRequest only changes the fields present.
type UpdateGradeRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
	Code *string `json:"code" validate:"omitempty,max=20"`
}

type OrchardDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type OrchardRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type UpdateOrchardRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type CustomerDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Note    string `json:"note,omitempty"`
}

type CustomerRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"max=30"`
	Address string `json:"address" validate:"max=300"`
	Note    string `json:"note" validate:"max=500"`
}

type UpdateCustomerRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Address *string `json:"address" validate:"omitempty,max=300"`
	Note    *string `json:"note" validate:"omitempty,max=500"`
}

// =============================================================================
// HARVEST
// =============================================================================

type PickingRecordDTO struct {
	ID          string      `json:"id"`
	OrchardID   string      `json:"orchard_id"`
	OrchardName string      `json:"orchard_name"`
	Quantity    json.Number `json:"quantity"`
	Unit        string      `json:"unit"`
	Date        string      `json:"date"`
	PickerID    string      `json:"picker_id,omitempty"`
	Status      string      `json:"status"`
}

type LogPickingRequest struct {
	OrchardID string  `json:"orchard_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	Unit      string  `json:"unit" validate:"omitempty,oneof=jin basket"`
	Date      string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	PickerID  string  `json:"picker_id"`
}

type SortLineRequest struct {
	GradeID  string  `json:"grade_id" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
}

type SortPickingRequest struct {
	Consumed    float64           `json:"consumed" validate:"gt=0"`
	InStockDate string            `json:"in_stock_date" validate:"omitempty,datetime=2006-01-02"`
	Lines       []SortLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type SortResultDTO struct {
	Record  PickingRecordDTO `json:"record"`
	Batches []BatchDTO       `json:"batches"`
}

// =============================================================================
// INVENTORY
// =============================================================================

type BatchDTO struct {
	ID              string      `json:"id"`
	BatchNo         string      `json:"batch_no"`
	GradeID         string      `json:"grade_id"`
	GradeName       string      `json:"grade_name"`
	Quantity        json.Number `json:"quantity"`
	InStockDate     string      `json:"in_stock_date"`
	DaysInStock     int         `json:"days_in_stock"`
	PickingRecordID string      `json:"picking_record_id,omitempty"`
	CreatedAt       string      `json:"created_at"`
}

type CreateBatchRequest struct {
	GradeID         string  `json:"grade_id" validate:"required"`
	Quantity        float64 `json:"quantity" validate:"gt=0"`
	InStockDate     string  `json:"in_stock_date" validate:"omitempty,datetime=2006-01-02"`
	PickingRecordID string  `json:"picking_record_id"`
}

type ReduceBatchRequest struct {
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

type InventorySummaryDTO struct {
	GradeID       string      `json:"grade_id"`
	GradeName     string      `json:"grade_name"`
	TotalQuantity json.Number `json:"total_quantity"`
	Batches       []BatchDTO  `json:"batches"`
}

type AlertDTO struct {
	ID          string `json:"id"`
	BatchID     string `json:"batch_id"`
	BatchNo     string `json:"batch_no"`
	GradeName   string `json:"grade_name"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	DaysInStock int    `json:"days_in_stock"`
}

type AvailabilityDTO struct {
	GradeID   string      `json:"grade_id"`
	Available json.Number `json:"available"`
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderItemDTO struct {
	ID        string      `json:"id"`
	GradeID   string      `json:"grade_id"`
	GradeName string      `json:"grade_name"`
	Quantity  json.Number `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
	Amount    json.Number `json:"amount"`
	BatchID   string      `json:"batch_id,omitempty"`
}

type OrderDTO struct {
	ID            string         `json:"id"`
	OrderNo       string         `json:"order_no"`
	CustomerID    string         `json:"customer_id"`
	CustomerName  string         `json:"customer_name"`
	Items         []OrderItemDTO `json:"items"`
	TotalAmount   json.Number    `json:"total_amount"`
	Status        string         `json:"status"`
	PaymentStatus string         `json:"payment_status"`
	PaidAmount    json.Number    `json:"paid_amount"`
	Cost          json.Number    `json:"cost"`
	Profit        json.Number    `json:"profit"`
	Note          string         `json:"note,omitempty"`
	CreatedAt     string         `json:"created_at"`
	ShippedAt     string         `json:"shipped_at,omitempty"`
	CompletedAt   string         `json:"completed_at,omitempty"`
}

type OrderLineRequest struct {
	GradeID   string  `json:"grade_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type CreateOrderRequest struct {
	CustomerID string             `json:"customer_id" validate:"required"`
	Items      []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
	Note       string             `json:"note" validate:"max=500"`
}

// ShipOrderRequest optionally pins order items to batches.
type ShipOrderRequest struct {
	BatchMapping map[string]string `json:"batch_mapping"`
}

type UpdatePaymentRequest struct {
	PaymentStatus string   `json:"payment_status" validate:"required,oneof=unpaid partial paid"`
	Amount        *float64 `json:"amount" validate:"omitempty,gte=0"`
}

type UpdateCostRequest struct {
	Cost float64 `json:"cost" validate:"gte=0"`
}

// =============================================================================
// REPORTS & SETTINGS
// =============================================================================

type DashboardDTO struct {
	TodaySales             json.Number `json:"today_sales"`
	PendingShipmentCount   int         `json:"pending_shipment_count"`
	PendingPickingQuantity json.Number `json:"pending_picking_quantity"`
	AlertCount             int         `json:"alert_count"`
}

type ReceivableDTO struct {
	CustomerID   string      `json:"customer_id"`
	CustomerName string      `json:"customer_name"`
	TotalUnpaid  json.Number `json:"total_unpaid"`
	Orders       []OrderDTO  `json:"orders"`
}

type FinanceSummaryDTO struct {
	TotalSales  json.Number `json:"total_sales"`
	TotalCost   json.Number `json:"total_cost"`
	TotalProfit json.Number `json:"total_profit"`
	Received    json.Number `json:"received"`
	Receivables json.Number `json:"receivables"`
}

type SettingsDTO struct {
	AlertThresholdDays int    `json:"alert_threshold_days"`
	Availability       string `json:"availability,omitempty"`
}

type UpdateSettingsRequest struct {
	AlertThresholdDays int `json:"alert_threshold_days" validate:"required,gt=0"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func num(d decimal.Decimal) json.Number { return json.Number(d.String()) }

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func toGradeDTO(g farm.Grade) GradeDTO {
	return GradeDTO{ID: string(g.ID), Name: g.Name, Code: g.Code}
}

func toOrchardDTO(o farm.Orchard) OrchardDTO {
	return OrchardDTO{ID: string(o.ID), Name: o.Name, Description: o.Description}
}

func toCustomerDTO(c farm.Customer) CustomerDTO {
	return CustomerDTO{ID: string(c.ID), Name: c.Name, Phone: c.Phone, Address: c.Address, Note: c.Note}
}

func toPickingDTO(p farm.PickingRecord) PickingRecordDTO {
	return PickingRecordDTO{
		ID:          string(p.ID),
		OrchardID:   string(p.OrchardID),
		OrchardName: p.OrchardName,
		Quantity:    num(p.Quantity),
		Unit:        string(p.Unit),
		Date:        p.Date.String(),
		PickerID:    p.PickerID,
		Status:      string(p.Status),
	}
}

func toBatchDTO(b farm.BatchView) BatchDTO {
	return BatchDTO{
		ID:              string(b.ID),
		BatchNo:         b.BatchNo,
		GradeID:         string(b.GradeID),
		GradeName:       b.GradeName,
		Quantity:        num(b.Quantity),
		InStockDate:     b.InStockDate.String(),
		DaysInStock:     b.DaysInStock,
		PickingRecordID: string(b.PickingRecordID),
		CreatedAt:       timestamp(b.CreatedAt),
	}
}

func toBatchDTOs(bs []farm.BatchView) []BatchDTO {
	out := make([]BatchDTO, len(bs))
	for i, b := range bs {
		out[i] = toBatchDTO(b)
	}
	return out
}

func toAlertDTO(a farm.InventoryAlert) AlertDTO {
	return AlertDTO{
		ID:          a.ID,
		BatchID:     string(a.BatchID),
		BatchNo:     a.BatchNo,
		GradeName:   a.GradeName,
		Message:     a.Message,
		Type:        string(a.Type),
		DaysInStock: a.DaysInStock,
	}
}

func toOrderDTO(o farm.Order) OrderDTO {
	items := make([]OrderItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemDTO{
			ID:        string(it.ID),
			GradeID:   string(it.GradeID),
			GradeName: it.GradeName,
			Quantity:  num(it.Quantity),
			UnitPrice: num(it.UnitPrice),
			Amount:    num(it.Amount()),
			BatchID:   string(it.BatchID),
		}
	}
	dto := OrderDTO{
		ID:            string(o.ID),
		OrderNo:       o.OrderNo,
		CustomerID:    string(o.CustomerID),
		CustomerName:  o.CustomerName,
		Items:         items,
		TotalAmount:   num(o.TotalAmount),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaidAmount:    num(o.PaidAmount),
		Cost:          num(o.Cost),
		Profit:        num(o.Profit),
		Note:          o.Note,
		CreatedAt:     timestamp(o.CreatedAt),
	}
	if o.ShippedAt != nil {
		dto.ShippedAt = timestamp(*o.ShippedAt)
	}
	if o.CompletedAt != nil {
		dto.CompletedAt = timestamp(*o.CompletedAt)
	}
	return dto
}

func toOrderDTOs(orders []farm.Order) []OrderDTO {
	out := make([]OrderDTO, len(orders))
	for i, o := range orders {
		out[i] = toOrderDTO(o)
	}
	return out
}
