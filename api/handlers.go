/*
handlers.go - HTTP API handlers for the farm engine

PURPOSE:
  Exposes farm.Engine via REST API. Handles HTTP request/response, JSON
  serialization and request validation, and delegates to the engine.

ENDPOINTS:
  Catalog:
    GET/POST   /api/grades, /api/orchards, /api/customers
    GET/PUT/DELETE /api/{grades|orchards|customers}/{id}
    GET        /api/grades/{id}/available    Quantity a new order may request

  Harvest:
    GET/POST   /api/picking-records?status=
    POST       /api/picking-records/{id}/process
    POST       /api/picking-records/{id}/sort

  Inventory:
    GET/POST   /api/inventory/batches?include_depleted=
    GET        /api/inventory/batches/{id}
    POST       /api/inventory/batches/{id}/reduce
    GET        /api/inventory/summary
    GET        /api/inventory/alerts?threshold=

  Orders:
    GET/POST   /api/orders?status=
    GET        /api/orders/{id}
    POST       /api/orders/{id}/ship | complete | cancel
    PUT        /api/orders/{id}/payment | cost

  Reports & settings:
    GET        /api/reports/dashboard | receivables | finance
    GET/PUT    /api/settings

REQUEST FLOW:
  1. Decode JSON body
  2. Validate struct tags (go-playground/validator)
  3. Convert to engine input (decimal.Decimal, farm.Day)
  4. Call the engine
  5. Serialize response DTO

ERROR HANDLING:
  Engine errors map to HTTP status by sentinel:
  - 400: farm.ErrValidation, malformed body or query
  - 404: farm.ErrNotFound
  - 409: farm.ErrInsufficientInventory, ErrInvalidTransition, ErrReferenced
  - 500: Everything else (store failures)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/orchardops/farm-engine/farm"
	"github.com/shopspring/decimal"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *farm.Engine
	Logger *slog.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler around the engine.
func NewHandler(engine *farm.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation errors
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Engine: engine, Logger: logger, validate: v}
}

// =============================================================================
// GRADE HANDLERS
// =============================================================================

// ListGrades returns all grades in creation order.
func (h *Handler) ListGrades(w http.ResponseWriter, r *http.Request) {
	grades := h.Engine.ListGrades()
	dtos := make([]GradeDTO, len(grades))
	for i, g := range grades {
		dtos[i] = toGradeDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateGrade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	g, err := h.Engine.CreateGrade(r.Context(), farm.GradeInput{Name: req.Name, Code: req.Code})
	if err != nil {
		writeDomainError(w, "Failed to create grade", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGradeDTO(g))
}

func (h *Handler) GetGrade(w http.ResponseWriter, r *http.Request) {
	g, err := h.Engine.GetGrade(farm.GradeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get grade", err)
		return
	}
	writeJSON(w, http.StatusOK, toGradeDTO(g))
}

func (h *Handler) UpdateGrade(w http.ResponseWriter, r *http.Request) {
	var req UpdateGradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := farm.GradeID(chi.URLParam(r, "id"))
	g, err := h.Engine.UpdateGrade(r.Context(), id, farm.GradeUpdate{Name: req.Name, Code: req.Code})
	if err != nil {
		writeDomainError(w, "Failed to update grade", err)
		return
	}
	writeJSON(w, http.StatusOK, toGradeDTO(g))
}

// DeleteGrade refuses with 409 while batches or open orders use the grade.
func (h *Handler) DeleteGrade(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteGrade(r.Context(), farm.GradeID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete grade", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAvailability returns what a new order may request of the grade.
// GET /api/grades/{id}/available
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := farm.GradeID(chi.URLParam(r, "id"))
	available, err := h.Engine.Available(id)
	if err != nil {
		writeDomainError(w, "Failed to get availability", err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{GradeID: string(id), Available: num(available)})
}

// =============================================================================
// ORCHARD HANDLERS
// =============================================================================

func (h *Handler) ListOrchards(w http.ResponseWriter, r *http.Request) {
	orchards := h.Engine.ListOrchards()
	dtos := make([]OrchardDTO, len(orchards))
	for i, o := range orchards {
		dtos[i] = toOrchardDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateOrchard(w http.ResponseWriter, r *http.Request) {
	var req OrchardRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.Engine.CreateOrchard(r.Context(), farm.OrchardInput{Name: req.Name, Description: req.Description})
	if err != nil {
		writeDomainError(w, "Failed to create orchard", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrchardDTO(o))
}

func (h *Handler) GetOrchard(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.GetOrchard(farm.OrchardID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get orchard", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrchardDTO(o))
}

func (h *Handler) UpdateOrchard(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrchardRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := farm.OrchardID(chi.URLParam(r, "id"))
	o, err := h.Engine.UpdateOrchard(r.Context(), id, farm.OrchardUpdate{Name: req.Name, Description: req.Description})
	if err != nil {
		writeDomainError(w, "Failed to update orchard", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrchardDTO(o))
}

func (h *Handler) DeleteOrchard(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteOrchard(r.Context(), farm.OrchardID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete orchard", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers := h.Engine.ListCustomers()
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Engine.CreateCustomer(r.Context(), farm.CustomerInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		Note:    req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Engine.GetCustomer(farm.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req UpdateCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := farm.CustomerID(chi.URLParam(r, "id"))
	c, err := h.Engine.UpdateCustomer(r.Context(), id, farm.CustomerUpdate{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		Note:    req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteCustomer(r.Context(), farm.CustomerID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HARVEST HANDLERS
// =============================================================================

// ListPickingRecords returns picking records, optionally filtered by status.
// GET /api/picking-records?status=pending
func (h *Handler) ListPickingRecords(w http.ResponseWriter, r *http.Request) {
	status := farm.PickingStatus(r.URL.Query().Get("status"))
	if status != "" && status != farm.PickingPending && status != farm.PickingProcessed {
		writeError(w, http.StatusBadRequest, "Invalid status filter", "validation", "status must be pending or processed")
		return
	}
	records := h.Engine.ListPickingRecords(status)
	dtos := make([]PickingRecordDTO, len(records))
	for i, p := range records {
		dtos[i] = toPickingDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LogPicking records a harvest event.
// POST /api/picking-records
func (h *Handler) LogPicking(w http.ResponseWriter, r *http.Request) {
	var req LogPickingRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := parseOptionalDay(w, "date", req.Date)
	if !ok {
		return
	}
	rec, err := h.Engine.LogPicking(r.Context(), farm.PickingInput{
		OrchardID: farm.OrchardID(req.OrchardID),
		Quantity:  decimal.NewFromFloat(req.Quantity),
		Unit:      farm.PickingUnit(req.Unit),
		Date:      date,
		PickerID:  req.PickerID,
	})
	if err != nil {
		writeDomainError(w, "Failed to log picking", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPickingDTO(rec))
}

// MarkProcessed is idempotent.
// POST /api/picking-records/{id}/process
func (h *Handler) MarkProcessed(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Engine.MarkProcessed(r.Context(), farm.PickingID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to mark picking processed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPickingDTO(rec))
}

// SortPicking turns (part of) a picking record into graded batches.
// POST /api/picking-records/{id}/sort
func (h *Handler) SortPicking(w http.ResponseWriter, r *http.Request) {
	var req SortPickingRequest
	if !h.decode(w, r, &req) {
		return
	}
	inStock, ok := parseOptionalDay(w, "in_stock_date", req.InStockDate)
	if !ok {
		return
	}
	lines := make([]farm.SortLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = farm.SortLine{GradeID: farm.GradeID(l.GradeID), Quantity: decimal.NewFromFloat(l.Quantity)}
	}
	res, err := h.Engine.SortPicking(r.Context(), farm.SortInput{
		PickingID:   farm.PickingID(chi.URLParam(r, "id")),
		Consumed:    decimal.NewFromFloat(req.Consumed),
		InStockDate: inStock,
		Lines:       lines,
	})
	if err != nil {
		writeDomainError(w, "Failed to sort picking", err)
		return
	}
	writeJSON(w, http.StatusCreated, SortResultDTO{Record: toPickingDTO(res.Record), Batches: toBatchDTOs(res.Batches)})
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// ListBatches returns batches oldest first.
// GET /api/inventory/batches?include_depleted=true
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	includeDepleted := false
	if v := r.URL.Query().Get("include_depleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid include_depleted", "validation", err.Error())
			return
		}
		includeDepleted = b
	}
	writeJSON(w, http.StatusOK, toBatchDTOs(h.Engine.ListBatches(includeDepleted)))
}

func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	inStock, ok := parseOptionalDay(w, "in_stock_date", req.InStockDate)
	if !ok {
		return
	}
	b, err := h.Engine.CreateBatch(r.Context(), farm.BatchInput{
		GradeID:         farm.GradeID(req.GradeID),
		Quantity:        decimal.NewFromFloat(req.Quantity),
		InStockDate:     inStock,
		PickingRecordID: farm.PickingID(req.PickingRecordID),
	})
	if err != nil {
		writeDomainError(w, "Failed to create batch", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(b))
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.Engine.GetBatch(farm.BatchID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get batch", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(b))
}

// ReduceBatch decrements a batch, clamping at zero.
// POST /api/inventory/batches/{id}/reduce
func (h *Handler) ReduceBatch(w http.ResponseWriter, r *http.Request) {
	var req ReduceBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.Engine.ReduceBatch(r.Context(), farm.BatchID(chi.URLParam(r, "id")), decimal.NewFromFloat(req.Quantity))
	if err != nil {
		writeDomainError(w, "Failed to reduce batch", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(b))
}

func (h *Handler) GetInventorySummary(w http.ResponseWriter, r *http.Request) {
	summary := h.Engine.Summarize()
	dtos := make([]InventorySummaryDTO, len(summary))
	for i, s := range summary {
		dtos[i] = InventorySummaryDTO{
			GradeID:       string(s.GradeID),
			GradeName:     s.GradeName,
			TotalQuantity: num(s.TotalQuantity),
			Batches:       toBatchDTOs(s.Batches),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAlerts returns aging alerts. Without ?threshold= the configured
// threshold applies.
// GET /api/inventory/alerts?threshold=7
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	var alerts []farm.InventoryAlert
	if v := r.URL.Query().Get("threshold"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid threshold", "validation", "threshold must be a positive number of days")
			return
		}
		alerts = h.Engine.ListAlerts(days)
	} else {
		alerts = h.Engine.ListInventoryAlerts()
	}
	dtos := make([]AlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = toAlertDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns orders oldest first, optionally filtered by status.
// GET /api/orders?status=confirmed
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := farm.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status filter", "validation", "unknown order status "+string(status))
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTOs(h.Engine.ListOrders(status)))
}

// CreateOrder checks availability and records a confirmed, unpaid order.
// POST /api/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	lines := make([]farm.OrderLineInput, len(req.Items))
	for i, it := range req.Items {
		lines[i] = farm.OrderLineInput{
			GradeID:   farm.GradeID(it.GradeID),
			Quantity:  decimal.NewFromFloat(it.Quantity),
			UnitPrice: decimal.NewFromFloat(it.UnitPrice),
		}
	}
	o, err := h.Engine.CreateOrder(r.Context(), farm.OrderInput{
		CustomerID: farm.CustomerID(req.CustomerID),
		Items:      lines,
		Note:       req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(o))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.GetOrder(farm.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// ShipOrder allocates batches FIFO (or per batch_mapping) and ships.
// The body is optional.
// POST /api/orders/{id}/ship
func (h *Handler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	var req ShipOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err.Error())
		return
	}
	var pinned map[farm.OrderItemID]farm.BatchID
	if len(req.BatchMapping) > 0 {
		pinned = make(map[farm.OrderItemID]farm.BatchID, len(req.BatchMapping))
		for item, batch := range req.BatchMapping {
			pinned[farm.OrderItemID(item)] = farm.BatchID(batch)
		}
	}
	o, err := h.Engine.ShipOrder(r.Context(), farm.OrderID(chi.URLParam(r, "id")), pinned)
	if err != nil {
		writeDomainError(w, "Failed to ship order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.CompleteOrder(r.Context(), farm.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to complete order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.CancelOrder(r.Context(), farm.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// UpdatePayment sets the payment status. amount is used for partial only.
// PUT /api/orders/{id}/payment
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req UpdatePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	var amount *decimal.Decimal
	if req.Amount != nil {
		d := decimal.NewFromFloat(*req.Amount)
		amount = &d
	}
	o, err := h.Engine.UpdatePayment(r.Context(), farm.OrderID(chi.URLParam(r, "id")), farm.PaymentStatus(req.PaymentStatus), amount)
	if err != nil {
		writeDomainError(w, "Failed to update payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// UpdateCost sets the order cost and re-derives profit.
// PUT /api/orders/{id}/cost
func (h *Handler) UpdateCost(w http.ResponseWriter, r *http.Request) {
	var req UpdateCostRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.Engine.UpdateCost(r.Context(), farm.OrderID(chi.URLParam(r, "id")), decimal.NewFromFloat(req.Cost))
	if err != nil {
		writeDomainError(w, "Failed to update cost", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// =============================================================================
// REPORT & SETTINGS HANDLERS
// =============================================================================

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d := h.Engine.Dashboard()
	writeJSON(w, http.StatusOK, DashboardDTO{
		TodaySales:             num(d.TodaySales),
		PendingShipmentCount:   d.PendingShipmentCount,
		PendingPickingQuantity: num(d.PendingPickingQuantity),
		AlertCount:             d.AlertCount,
	})
}

// ListReceivables returns unpaid amounts per customer, largest first.
func (h *Handler) ListReceivables(w http.ResponseWriter, r *http.Request) {
	receivables := h.Engine.ReceivablesByCustomer()
	dtos := make([]ReceivableDTO, len(receivables))
	for i, rc := range receivables {
		dtos[i] = ReceivableDTO{
			CustomerID:   string(rc.CustomerID),
			CustomerName: rc.CustomerName,
			TotalUnpaid:  num(rc.TotalUnpaid),
			Orders:       toOrderDTOs(rc.Orders),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetFinanceSummary(w http.ResponseWriter, r *http.Request) {
	s := h.Engine.FinanceSummary()
	writeJSON(w, http.StatusOK, FinanceSummaryDTO{
		TotalSales:  num(s.TotalSales),
		TotalCost:   num(s.TotalCost),
		TotalProfit: num(s.TotalProfit),
		Received:    num(s.Received),
		Receivables: num(s.Receivables),
	})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SettingsDTO{
		AlertThresholdDays: h.Engine.AlertThreshold(),
		Availability:       string(h.Engine.Availability()),
	})
}

// UpdateSettings changes the aging alert threshold at runtime.
// PUT /api/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Engine.SetAlertThreshold(r.Context(), req.AlertThresholdDays); err != nil {
		writeDomainError(w, "Failed to update settings", err)
		return
	}
	h.GetSettings(w, r)
}

// =============================================================================
// HELPERS
// =============================================================================

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// decode reads and validates a JSON body. It writes the error response and
// returns false when the request cannot be used.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]fieldError, len(verrs))
			for i, fe := range verrs {
				details[i] = fieldError{Field: fieldPath(fe), Rule: fe.Tag(), Param: fe.Param()}
			}
			writeError(w, http.StatusBadRequest, "Validation failed", "validation", details)
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", "validation", err.Error())
		return false
	}
	return true
}

// fieldPath drops the request type from the namespace: "lines[0].grade_id".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

// parseOptionalDay parses a YYYY-MM-DD field. Empty means zero (today).
func parseOptionalDay(w http.ResponseWriter, field, s string) (farm.Day, bool) {
	if s == "" {
		return farm.Day{}, true
	}
	d, err := farm.ParseDay(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field, "validation", err.Error())
		return farm.Day{}, false
	}
	return d, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var insufficient *farm.InsufficientInventoryError
	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, message, "insufficient_inventory", map[string]any{
			"grade_id":   string(insufficient.GradeID),
			"grade_name": insufficient.GradeName,
			"item_id":    string(insufficient.ItemID),
			"requested":  num(insufficient.Requested),
			"available":  num(insufficient.Available),
			"message":    insufficient.Error(),
		})
	case errors.Is(err, farm.ErrValidation):
		writeError(w, http.StatusBadRequest, message, "validation", err.Error())
	case errors.Is(err, farm.ErrNotFound):
		writeError(w, http.StatusNotFound, message, "not_found", err.Error())
	case errors.Is(err, farm.ErrInvalidTransition):
		writeError(w, http.StatusConflict, message, "invalid_transition", err.Error())
	case errors.Is(err, farm.ErrReferenced):
		writeError(w, http.StatusConflict, message, "referenced", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, message, "internal", err.Error())
	}
}
