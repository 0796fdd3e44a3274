/*
harvest.go - Picking records and the sorting operation

PURPOSE:
  Records raw picked quantities per plot and turns them into graded
  inventory. A record is pending until the operator signals that its
  full quantity has been consumed by sorting; then it flips to processed
  exactly once and never goes back.

SORTING RULE:
  SortPicking takes the quantity of raw produce consumed by this sorting
  run plus the graded output lines. Each positive line becomes a batch
  linked to the record. The record is marked processed when
  consumed >= record quantity, as reported by the caller for this run.
  It is not recomputed from batch linkage.

  Record: East Hill, 5000 jin
  Sort #1: consumed 3000 -> 80-85mm 3000     record stays pending
  Sort #2: consumed 5000 -> 75-80mm 2000     record becomes processed

SEE ALSO:
  - inventory.go: Batch creation rules
*/
package farm

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUTS
// =============================================================================

type PickingInput struct {
	OrchardID OrchardID
	Quantity  decimal.Decimal
	Unit      PickingUnit
	Date      Day // zero means today
	PickerID  string
}

type SortLine struct {
	GradeID  GradeID
	Quantity decimal.Decimal
}

type SortInput struct {
	PickingID   PickingID
	Consumed    decimal.Decimal
	InStockDate Day // zero means today
	Lines       []SortLine
}

type SortResult struct {
	Record  PickingRecord
	Batches []BatchView
}

// =============================================================================
// OPERATIONS
// =============================================================================

// LogPicking creates a pending picking record.
func (e *Engine) LogPicking(ctx context.Context, in PickingInput) (PickingRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !in.Quantity.IsPositive() {
		return PickingRecord{}, e.reject("log picking", invalid("quantity", "must be greater than 0"))
	}
	if in.Unit == "" {
		in.Unit = UnitJin
	}
	if !in.Unit.Valid() {
		return PickingRecord{}, e.reject("log picking", invalid("unit", "must be jin or basket"))
	}
	orchard, ok := e.state.Orchards[in.OrchardID]
	if !ok {
		return PickingRecord{}, e.reject("log picking", invalid("orchard_id", "unknown orchard "+string(in.OrchardID)))
	}
	date := in.Date
	if date.IsZero() {
		date = e.today()
	}

	rec := PickingRecord{
		ID:          PickingID(e.ids.NewID()),
		OrchardID:   orchard.ID,
		OrchardName: orchard.Name,
		Quantity:    in.Quantity,
		Unit:        in.Unit,
		Date:        date,
		PickerID:    in.PickerID,
		Status:      PickingPending,
		Seq:         e.sequence()(),
	}
	if err := e.commit(ctx, "log picking", Changeset{Picking: []PickingRecord{rec}}); err != nil {
		return PickingRecord{}, err
	}
	e.logger.Info("picking logged",
		"picking_id", rec.ID, "orchard", rec.OrchardName,
		"quantity", rec.Quantity.String(), "unit", string(rec.Unit))
	return rec, nil
}

// MarkProcessed flips a record to processed. Calling it again is a no-op.
func (e *Engine) MarkProcessed(ctx context.Context, id PickingID) (PickingRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.state.Picking[id]
	if !ok {
		return PickingRecord{}, e.reject("mark processed", notFound("picking record", id))
	}
	if rec.Status == PickingProcessed {
		return rec, nil
	}
	rec.Status = PickingProcessed
	if err := e.commit(ctx, "mark processed", Changeset{Picking: []PickingRecord{rec}}); err != nil {
		return PickingRecord{}, err
	}
	e.logger.Info("picking processed", "picking_id", rec.ID)
	return rec, nil
}

// SortPicking grades (part of) a pending record into new batches.
func (e *Engine) SortPicking(ctx context.Context, in SortInput) (SortResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.state.Picking[in.PickingID]
	if !ok {
		return SortResult{}, e.reject("sort picking", notFound("picking record", in.PickingID))
	}
	if rec.Status != PickingPending {
		return SortResult{}, e.reject("sort picking", invalid("picking_id", "record already processed"))
	}
	if !in.Consumed.IsPositive() {
		return SortResult{}, e.reject("sort picking", invalid("consumed", "must be greater than 0"))
	}
	if in.Consumed.GreaterThan(rec.Quantity) {
		return SortResult{}, e.reject("sort picking", invalid("consumed", "cannot exceed picking quantity "+rec.Quantity.String()))
	}

	inStock := in.InStockDate
	if inStock.IsZero() {
		inStock = e.today()
	}

	seq := e.sequence()
	taken := make(map[string]bool)
	var batches []Batch
	for _, line := range in.Lines {
		if line.Quantity.IsNegative() {
			return SortResult{}, e.reject("sort picking", invalid("lines.quantity", "must not be negative"))
		}
		if !line.Quantity.IsPositive() {
			continue
		}
		grade, ok := e.state.Grades[line.GradeID]
		if !ok {
			return SortResult{}, e.reject("sort picking", invalid("lines.grade_id", "unknown grade "+string(line.GradeID)))
		}
		b, err := e.newBatch(grade, line.Quantity, inStock, rec.ID, seq(), taken)
		if err != nil {
			return SortResult{}, e.reject("sort picking", err)
		}
		taken[b.BatchNo] = true
		batches = append(batches, b)
	}
	if len(batches) == 0 {
		return SortResult{}, e.reject("sort picking", invalid("lines", "at least one graded line with quantity > 0 is required"))
	}

	if in.Consumed.GreaterThanOrEqual(rec.Quantity) {
		rec.Status = PickingProcessed
	}

	cs := Changeset{Batches: batches, Picking: []PickingRecord{rec}}
	if err := e.commit(ctx, "sort picking", cs); err != nil {
		return SortResult{}, err
	}

	views := make([]BatchView, len(batches))
	for i, b := range batches {
		views[i] = e.view(b)
	}
	e.logger.Info("picking sorted",
		"picking_id", rec.ID, "consumed", in.Consumed.String(),
		"batches", len(batches), "status", string(rec.Status))
	return SortResult{Record: rec, Batches: views}, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (e *Engine) GetPickingRecord(id PickingID) (PickingRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.state.Picking[id]
	if !ok {
		return PickingRecord{}, notFound("picking record", id)
	}
	return rec, nil
}

// ListPickingRecords returns records in insertion order. Empty status lists all.
func (e *Engine) ListPickingRecords(status PickingStatus) []PickingRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return bySeq(e.state.Picking,
		func(p PickingRecord) int64 { return p.Seq },
		func(p PickingRecord) bool { return status == "" || p.Status == status },
	)
}

// PendingPickingQuantity sums the quantities of all pending records.
func (e *Engine) PendingPickingQuantity() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := decimal.Zero
	for _, p := range e.state.Picking {
		if p.Status == PickingPending {
			total = total.Add(p.Quantity)
		}
	}
	return total
}
