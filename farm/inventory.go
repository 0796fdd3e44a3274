/*
inventory.go - Graded batch ledger, summaries and aging alerts

PURPOSE:
  Holds graded, dated batches with their remaining quantity and derives
  the per-grade summary and age-based alerts from them.

BATCH LIFECYCLE:
  - Created by sorting (or CreateBatch) with quantity > 0
  - Decremented by shipment or ReduceBatch, floored at 0
  - Never deleted. A batch at 0 is depleted: excluded from summaries,
    alerts and allocation but kept for traceability

AGE:
  daysInStock = floor((today - inStockDate) / 1 day) on calendar days in
  the engine location. Computed on every read, never stored.

ALERTS:
  One alert per active batch with daysInStock >= threshold. Recomputed on
  every call; there is no acknowledgement state.

SEE ALSO:
  - harvest.go: SortPicking creates batches
  - allocate.go: FIFO selection over batches
*/
package farm

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

type BatchInput struct {
	GradeID         GradeID
	Quantity        decimal.Decimal
	InStockDate     Day // zero means today
	PickingRecordID PickingID
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateBatch adds a batch outside the sorting flow.
func (e *Engine) CreateBatch(ctx context.Context, in BatchInput) (BatchView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !in.Quantity.IsPositive() {
		return BatchView{}, e.reject("create batch", invalid("quantity", "must be greater than 0"))
	}
	grade, ok := e.state.Grades[in.GradeID]
	if !ok {
		return BatchView{}, e.reject("create batch", invalid("grade_id", "unknown grade "+string(in.GradeID)))
	}
	if in.PickingRecordID != "" {
		if _, ok := e.state.Picking[in.PickingRecordID]; !ok {
			return BatchView{}, e.reject("create batch", invalid("picking_record_id", "unknown picking record "+string(in.PickingRecordID)))
		}
	}
	inStock := in.InStockDate
	if inStock.IsZero() {
		inStock = e.today()
	}

	b, err := e.newBatch(grade, in.Quantity, inStock, in.PickingRecordID, e.sequence()(), nil)
	if err != nil {
		return BatchView{}, e.reject("create batch", err)
	}
	if err := e.commit(ctx, "create batch", Changeset{Batches: []Batch{b}}); err != nil {
		return BatchView{}, err
	}
	e.logger.Info("batch created",
		"batch_id", b.ID, "batch_no", b.BatchNo, "grade", b.GradeName,
		"quantity", b.Quantity.String(), "in_stock_date", b.InStockDate.String())
	return e.view(b), nil
}

// ReduceBatch decrements a batch. Over-reduction clamps at 0 instead of failing.
func (e *Engine) ReduceBatch(ctx context.Context, id BatchID, quantity decimal.Decimal) (BatchView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !quantity.IsPositive() {
		return BatchView{}, e.reject("reduce batch", invalid("quantity", "must be greater than 0"))
	}
	b, ok := e.state.Batches[id]
	if !ok {
		return BatchView{}, e.reject("reduce batch", notFound("batch", id))
	}
	before := b.Quantity
	b.Quantity = reduced(b.Quantity, quantity)
	if err := e.commit(ctx, "reduce batch", Changeset{Batches: []Batch{b}}); err != nil {
		return BatchView{}, err
	}
	if quantity.GreaterThan(before) {
		e.logger.Warn("batch reduction clamped at zero",
			"batch_id", b.ID, "requested", quantity.String(), "available", before.String())
	}
	e.logger.Info("batch reduced", "batch_id", b.ID, "remaining", b.Quantity.String())
	return e.view(b), nil
}

// SetAlertThreshold sets the aging alert threshold in days.
func (e *Engine) SetAlertThreshold(ctx context.Context, days int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if days <= 0 {
		return e.reject("set alert threshold", invalid("alert_threshold_days", "must be a positive number of days"))
	}
	if err := e.commit(ctx, "set alert threshold", Changeset{Settings: &Settings{AlertThresholdDays: days}}); err != nil {
		return err
	}
	e.logger.Info("alert threshold set", "days", days)
	return nil
}

func (e *Engine) AlertThreshold() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alertThreshold()
}

// =============================================================================
// QUERIES
// =============================================================================

func (e *Engine) GetBatch(id BatchID) (BatchView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.state.Batches[id]
	if !ok {
		return BatchView{}, notFound("batch", id)
	}
	return e.view(b), nil
}

// ListBatches returns batches oldest first. Depleted batches only on request.
func (e *Engine) ListBatches(includeDepleted bool) []BatchView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	batches := e.fifoBatches(func(b Batch) bool { return includeDepleted || !b.Depleted() })
	views := make([]BatchView, len(batches))
	for i, b := range batches {
		views[i] = e.view(b)
	}
	return views
}

// Summarize aggregates active batches per grade, in grade order.
// Batches whose grade was deleted still appear under their snapshot name.
func (e *Engine) Summarize() []InventorySummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.summarize()
}

func (e *Engine) summarize() []InventorySummary {
	byGrade := make(map[GradeID]*InventorySummary)
	var order []GradeID
	for _, b := range e.fifoBatches(func(b Batch) bool { return !b.Depleted() }) {
		s, ok := byGrade[b.GradeID]
		if !ok {
			name := b.GradeName
			if g, known := e.state.Grades[b.GradeID]; known {
				name = g.Name
			}
			s = &InventorySummary{GradeID: b.GradeID, GradeName: name, TotalQuantity: decimal.Zero}
			byGrade[b.GradeID] = s
			order = append(order, b.GradeID)
		}
		s.TotalQuantity = s.TotalQuantity.Add(b.Quantity)
		s.Batches = append(s.Batches, e.view(b))
	}

	gradeSeq := func(id GradeID) int64 {
		if g, ok := e.state.Grades[id]; ok {
			return g.Seq
		}
		return 1 << 62 // orphaned grades last
	}
	slices.SortStableFunc(order, func(a, b GradeID) int { return cmp.Compare(gradeSeq(a), gradeSeq(b)) })

	out := make([]InventorySummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byGrade[id])
	}
	return out
}

// ListAlerts returns aging alerts for the given threshold in days.
func (e *Engine) ListAlerts(thresholdDays int) []InventoryAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alerts(thresholdDays)
}

// ListInventoryAlerts uses the configured threshold.
func (e *Engine) ListInventoryAlerts() []InventoryAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alerts(e.alertThreshold())
}

func (e *Engine) alerts(threshold int) []InventoryAlert {
	var out []InventoryAlert
	for _, b := range e.fifoBatches(func(b Batch) bool { return !b.Depleted() }) {
		days := e.daysInStock(b)
		if days < threshold {
			continue
		}
		out = append(out, InventoryAlert{
			ID:          "alert-" + string(b.ID),
			BatchID:     b.ID,
			BatchNo:     b.BatchNo,
			GradeName:   b.GradeName,
			Message:     fmt.Sprintf("%s batch %s has been in stock for %d days, check for spoilage", b.GradeName, b.BatchNo, days),
			Type:        AlertAge,
			DaysInStock: days,
		})
	}
	return out
}

// =============================================================================
// INTERNALS
// =============================================================================

// newBatch builds a batch with a batch number unused by the ledger and by extra.
func (e *Engine) newBatch(grade Grade, qty decimal.Decimal, inStock Day, picking PickingID, seq int64, extra map[string]bool) (Batch, error) {
	no, err := uniqueNumber(batchNo, e.today(), e.ids, func(n string) bool {
		return extra[n] || e.batchNoTaken(n)
	})
	if err != nil {
		return Batch{}, err
	}
	return Batch{
		ID:              BatchID(e.ids.NewID()),
		BatchNo:         no,
		GradeID:         grade.ID,
		GradeName:       grade.Name,
		Quantity:        qty,
		InStockDate:     inStock,
		PickingRecordID: picking,
		CreatedAt:       e.now(),
		Seq:             seq,
	}, nil
}

func (e *Engine) batchNoTaken(n string) bool {
	for _, b := range e.state.Batches {
		if b.BatchNo == n {
			return true
		}
	}
	return false
}

// fifoBatches orders batches by in-stock date, then insertion.
func (e *Engine) fifoBatches(keep func(Batch) bool) []Batch {
	out := bySeq(e.state.Batches, func(b Batch) int64 { return b.Seq }, keep)
	slices.SortStableFunc(out, func(a, b Batch) int { return a.InStockDate.Time.Compare(b.InStockDate.Time) })
	return out
}

func reduced(have, take decimal.Decimal) decimal.Decimal {
	left := have.Sub(take)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}
