/*
allocate.go - FIFO allocation of order lines to batches

PURPOSE:
  Decides, for every line of an order being shipped, which single batch
  covers it. The whole plan is computed before anything is mutated so a
  shipment is all-or-nothing.

POLICY (whole batch covers the line):
  Among batches of the line's grade whose remaining quantity >= the line
  quantity, pick the earliest inStockDate (insertion order breaks ties).
  A line is never split across batches. Remaining quantities are tracked
  inside the plan, so two lines of the same grade cannot both draw on the
  same units.

  Batches (grade 80-85mm):
    A  2024-01-01  100
    B  2024-01-05  100
  Line 50  -> A (A left 50 in plan)
  Line 80  -> B (A cannot cover 80)
  Line 60  -> fails, nothing changes

EXPLICIT MAPPING:
  A caller may pin lines to batches. A pinned batch must exist, carry the
  line's grade and cover the line.
*/
package farm

import "github.com/shopspring/decimal"

type allocation struct {
	itemIndex int
	batchID   BatchID
}

type allocationPlan struct {
	allocations []allocation
	remaining   map[BatchID]decimal.Decimal // batches touched, after the plan
}

// planAllocation computes the batch for every line of o. Caller holds the lock.
func (e *Engine) planAllocation(o Order, pinned map[OrderItemID]BatchID) (*allocationPlan, error) {
	plan := &allocationPlan{remaining: make(map[BatchID]decimal.Decimal)}
	left := func(b Batch) decimal.Decimal {
		if q, ok := plan.remaining[b.ID]; ok {
			return q
		}
		return b.Quantity
	}

	candidates := e.fifoBatches(func(b Batch) bool { return !b.Depleted() })

	for i, item := range o.Items {
		var chosen *Batch

		if id, ok := pinned[item.ID]; ok && id != "" {
			b, exists := e.state.Batches[id]
			if !exists {
				return nil, notFound("batch", id)
			}
			if b.GradeID != item.GradeID {
				return nil, invalid("batch_mapping", "batch "+b.BatchNo+" is not grade "+item.GradeName)
			}
			if left(b).LessThan(item.Quantity) {
				return nil, &InsufficientInventoryError{
					GradeID: item.GradeID, GradeName: item.GradeName, ItemID: item.ID,
					Requested: item.Quantity, Available: left(b),
				}
			}
			chosen = &b
		} else {
			for j := range candidates {
				b := candidates[j]
				if b.GradeID == item.GradeID && left(b).GreaterThanOrEqual(item.Quantity) {
					chosen = &b
					break
				}
			}
			if chosen == nil {
				return nil, &InsufficientInventoryError{
					GradeID: item.GradeID, GradeName: item.GradeName, ItemID: item.ID,
					Requested: item.Quantity, Available: e.largestBatch(item.GradeID, left),
				}
			}
		}

		plan.remaining[chosen.ID] = left(*chosen).Sub(item.Quantity)
		plan.allocations = append(plan.allocations, allocation{itemIndex: i, batchID: chosen.ID})
	}
	return plan, nil
}

// largestBatch is the most a single batch of the grade could still cover.
func (e *Engine) largestBatch(grade GradeID, left func(Batch) decimal.Decimal) decimal.Decimal {
	best := decimal.Zero
	for _, b := range e.state.Batches {
		if b.GradeID == grade && left(b).GreaterThan(best) {
			best = left(b)
		}
	}
	return best
}
