/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the engine with realistic
	data for demos. Every scenario goes through the public engine
	operations, so the data obeys the same rules as live input.

AVAILABLE SCENARIOS:

	harvest-season: Catalog, three sorted harvests, one pending harvest and
	                orders in completed, shipped and confirmed states
	aging-stock:    Batches 3, 6, 7 and 12 days old around the 7 day alert
	fresh-farm:     Catalog only, nothing picked or sold yet

HOW SCENARIOS WORK:
 1. Reset the engine (clear all data)
 2. Create grades, orchards, customers
 3. Log picking records dated in the past and sort them into batches
 4. Create orders and move them through their lifecycle

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "harvest-season"}

NOTE:

	Scenarios reset all data. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Request handlers
  - farm/engine.go: Operations used by the loaders
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/orchardops/farm-engine/farm"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "harvest-season",
		Name:        "Harvest Season",
		Description: "Sorted harvests in stock and orders in every stage from confirmed to completed",
		Category:    "full",
	},
	{
		ID:          "aging-stock",
		Name:        "Aging Stock",
		Description: "Batches just below and above the aging alert threshold",
		Category:    "inventory",
	},
	{
		ID:          "fresh-farm",
		Name:        "Fresh Farm",
		Description: "Grades, orchards and customers with no stock or orders",
		Category:    "catalog",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets all data and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "harvest-season":
		load = h.loadHarvestSeasonScenario
	case "aging-stock":
		load = h.loadAgingStockScenario
	case "fresh-farm":
		load = func(ctx context.Context) error {
			_, err := h.seedCatalog(ctx)
			return err
		}
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", "validation", req.ScenarioID)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Engine.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset data", "internal", err.Error())
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), "internal", err.Error())
		return
	}
	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetData clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Engine.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset data", "internal", err.Error())
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// catalog holds the ids created by seedCatalog, keyed by grade code or name.
type catalog struct {
	grades    map[string]farm.GradeID
	orchards  map[string]farm.OrchardID
	customers map[string]farm.CustomerID
}

func (h *Handler) seedCatalog(ctx context.Context) (*catalog, error) {
	c := &catalog{
		grades:    make(map[string]farm.GradeID),
		orchards:  make(map[string]farm.OrchardID),
		customers: make(map[string]farm.CustomerID),
	}

	grades := []farm.GradeInput{
		{Name: "85mm+ premium", Code: "85+"},
		{Name: "80-85mm", Code: "80-85"},
		{Name: "75-80mm", Code: "75-80"},
		{Name: "70-75mm", Code: "70-75"},
		{Name: "Seconds", Code: "C"},
	}
	for _, in := range grades {
		g, err := h.Engine.CreateGrade(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("grade %s: %w", in.Name, err)
		}
		c.grades[in.Code] = g.ID
	}

	orchards := []farm.OrchardInput{
		{Name: "East Hill", Description: "East hillside slope"},
		{Name: "Block A", Description: "Block A flatland"},
		{Name: "Block B", Description: "Block B upland"},
		{Name: "West Slope", Description: "West slope"},
	}
	for _, in := range orchards {
		o, err := h.Engine.CreateOrchard(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("orchard %s: %w", in.Name, err)
		}
		c.orchards[in.Name] = o.ID
	}

	customers := []farm.CustomerInput{
		{Name: "Zhang San", Phone: "13800138001", Address: "Chaoyang, Beijing"},
		{Name: "Li Si", Phone: "13800138002", Address: "Pudong, Shanghai"},
		{Name: "Wang Wu", Phone: "13800138003", Address: "Tianhe, Guangzhou"},
		{Name: "Zhao Liu", Phone: "13800138004", Address: "Nanshan, Shenzhen"},
	}
	for _, in := range customers {
		cu, err := h.Engine.CreateCustomer(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("customer %s: %w", in.Name, err)
		}
		c.customers[in.Name] = cu.ID
	}
	return c, nil
}

// harvest logs a picking record daysAgo days back and, when lines are
// given, sorts the whole record into batches in stock since that day.
func (h *Handler) harvest(ctx context.Context, orchard farm.OrchardID, qty int64, daysAgo int, lines ...farm.SortLine) error {
	day := h.Engine.Today().AddDays(-daysAgo)
	rec, err := h.Engine.LogPicking(ctx, farm.PickingInput{
		OrchardID: orchard,
		Quantity:  decimal.NewFromInt(qty),
		Unit:      farm.UnitJin,
		Date:      day,
	})
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	_, err = h.Engine.SortPicking(ctx, farm.SortInput{
		PickingID:   rec.ID,
		Consumed:    rec.Quantity,
		InStockDate: day,
		Lines:       lines,
	})
	return err
}

func line(grade farm.GradeID, qty int64) farm.SortLine {
	return farm.SortLine{GradeID: grade, Quantity: decimal.NewFromInt(qty)}
}

// loadHarvestSeasonScenario:
//
//	East Hill 5000 jin, 10 days ago -> 80-85mm 2000, 75-80mm 1800
//	Block A   3000 jin,  8 days ago -> 80-85mm 1500
//	East Hill 4000 jin,  5 days ago -> 85mm+ 1000, 80-85mm 2000
//	Block B   2000 jin,  2 days ago -> pending
//
//	Zhang San 1000 x 5.5 80-85mm  completed, paid, cost 200
//	Li Si     1500 x 5.8 80-85mm  shipped, 5000 paid, cost 300
//	Wang Wu    800 x 7.0 85mm+    confirmed, unpaid
func (h *Handler) loadHarvestSeasonScenario(ctx context.Context) error {
	c, err := h.seedCatalog(ctx)
	if err != nil {
		return err
	}

	harvests := []func() error{
		func() error {
			return h.harvest(ctx, c.orchards["East Hill"], 5000, 10,
				line(c.grades["80-85"], 2000), line(c.grades["75-80"], 1800))
		},
		func() error {
			return h.harvest(ctx, c.orchards["Block A"], 3000, 8, line(c.grades["80-85"], 1500))
		},
		func() error {
			return h.harvest(ctx, c.orchards["East Hill"], 4000, 5,
				line(c.grades["85+"], 1000), line(c.grades["80-85"], 2000))
		},
		func() error { return h.harvest(ctx, c.orchards["Block B"], 2000, 2) },
	}
	for i, run := range harvests {
		if err := run(); err != nil {
			return fmt.Errorf("harvest %d: %w", i+1, err)
		}
	}

	// Completed and paid
	o1, err := h.order(ctx, c.customers["Zhang San"], c.grades["80-85"], 1000, "5.5")
	if err != nil {
		return err
	}
	if _, err := h.Engine.ShipOrder(ctx, o1.ID, nil); err != nil {
		return err
	}
	if _, err := h.Engine.UpdateCost(ctx, o1.ID, decimal.NewFromInt(200)); err != nil {
		return err
	}
	if _, err := h.Engine.UpdatePayment(ctx, o1.ID, farm.PaymentPaid, nil); err != nil {
		return err
	}
	if _, err := h.Engine.CompleteOrder(ctx, o1.ID); err != nil {
		return err
	}

	// Shipped and partially paid
	o2, err := h.order(ctx, c.customers["Li Si"], c.grades["80-85"], 1500, "5.8")
	if err != nil {
		return err
	}
	if _, err := h.Engine.ShipOrder(ctx, o2.ID, nil); err != nil {
		return err
	}
	if _, err := h.Engine.UpdateCost(ctx, o2.ID, decimal.NewFromInt(300)); err != nil {
		return err
	}
	paid := decimal.NewFromInt(5000)
	if _, err := h.Engine.UpdatePayment(ctx, o2.ID, farm.PaymentPartial, &paid); err != nil {
		return err
	}

	// Confirmed, waiting for shipment
	_, err = h.order(ctx, c.customers["Wang Wu"], c.grades["85+"], 800, "7.0")
	return err
}

// loadAgingStockScenario creates one batch per age around the threshold.
func (h *Handler) loadAgingStockScenario(ctx context.Context) error {
	c, err := h.seedCatalog(ctx)
	if err != nil {
		return err
	}
	ages := []struct {
		orchard string
		grade   string
		qty     int64
		days    int
	}{
		{"East Hill", "80-85", 1200, 3},
		{"Block A", "75-80", 900, 6},
		{"Block B", "85+", 600, 7},
		{"West Slope", "C", 400, 12},
	}
	for _, a := range ages {
		if err := h.harvest(ctx, c.orchards[a.orchard], a.qty, a.days, line(c.grades[a.grade], a.qty)); err != nil {
			return fmt.Errorf("harvest %d days ago: %w", a.days, err)
		}
	}
	return nil
}

func (h *Handler) order(ctx context.Context, customer farm.CustomerID, grade farm.GradeID, qty int64, price string) (farm.Order, error) {
	return h.Engine.CreateOrder(ctx, farm.OrderInput{
		CustomerID: customer,
		Items: []farm.OrderLineInput{{
			GradeID:   grade,
			Quantity:  decimal.NewFromInt(qty),
			UnitPrice: decimal.RequireFromString(price),
		}},
	})
}
