/*
engine.go - The single-writer service holding every ledger

PURPOSE:
  Engine is the one serialization boundary of the system. Catalog,
  harvest, inventory and order ledgers live in a single State guarded by
  one RWMutex, because shipping an order touches inventory and orders
  together and availability checks must run atomically with the decision
  they guard.

MUTATION FLOW:
  1. Take the write lock
  2. Validate input against current state
  3. Build a Changeset (new copies of every touched entity)
  4. Store.Apply(changeset)  - on error nothing changes
  5. State.Apply(changeset)  - in-memory swap
  6. Log the committed mutation

READS:
  Queries take the read lock and return copies. Derived values
  (DaysInStock, summaries, alerts, projections) are computed on every call
  from the clock and current state. Nothing derived is cached.

EXAMPLE:
  engine, err := farm.Open(ctx, store.NewMemory(),
      farm.WithLogger(logger),
      farm.WithAvailability(farm.AvailabilityCommitted),
  )
  rec, _ := engine.LogPicking(ctx, farm.PickingInput{...})

SEE ALSO:
  - harvest.go, inventory.go, order.go, reports.go: Operations
  - store.go: Store interface and State
*/
package farm

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// AvailabilityMode decides what createOrder compares requests against.
type AvailabilityMode string

const (
	// AvailabilityCommitted subtracts quantities of other open orders from
	// on-hand stock. Batches are still only decremented at shipment.
	AvailabilityCommitted AvailabilityMode = "committed"

	// AvailabilityOnHand compares against the plain inventory summary.
	AvailabilityOnHand AvailabilityMode = "on_hand"
)

func (m AvailabilityMode) Valid() bool {
	return m == AvailabilityCommitted || m == AvailabilityOnHand
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	mu    sync.RWMutex
	state *State
	store Store

	clock            Clock
	ids              IDSource
	loc              *time.Location
	availability     AvailabilityMode
	defaultThreshold int
	logger           *slog.Logger
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithIDSource(ids IDSource) Option { return func(e *Engine) { e.ids = ids } }

// WithLocation sets the time zone calendar days are counted in.
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

func WithAvailability(m AvailabilityMode) Option { return func(e *Engine) { e.availability = m } }

// WithDefaultAlertThreshold is used until a threshold is set at runtime.
func WithDefaultAlertThreshold(days int) Option {
	return func(e *Engine) { e.defaultThreshold = days }
}

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// Open loads state from the store and returns a ready engine.
func Open(ctx context.Context, store Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:            store,
		clock:            SystemClock{},
		ids:              randomIDs{},
		loc:              time.UTC,
		availability:     AvailabilityCommitted,
		defaultThreshold: DefaultAlertThreshold,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.availability.Valid() {
		return nil, fmt.Errorf("unknown availability mode %q", e.availability)
	}
	if e.defaultThreshold <= 0 {
		return nil, fmt.Errorf("alert threshold must be positive, got %d", e.defaultThreshold)
	}

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	e.state = state
	e.logger.Info("engine opened",
		"grades", len(state.Grades),
		"batches", len(state.Batches),
		"orders", len(state.Orders),
		"availability", string(e.availability),
	)
	return e, nil
}

func (e *Engine) Availability() AvailabilityMode { return e.availability }

// Location is the time zone calendar days are counted in.
func (e *Engine) Location() *time.Location { return e.loc }

// Today is the current calendar day in the engine location.
func (e *Engine) Today() Day { return e.today() }

// Reset replaces all state with an empty one, persisting the deletions.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	e.state = NewState()
	e.logger.Info("engine reset")
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// commit persists cs and then applies it. Caller holds the write lock.
func (e *Engine) commit(ctx context.Context, op string, cs Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.store.Apply(ctx, cs); err != nil {
		e.logger.Error("persist failed", "op", op, "error", err)
		return fmt.Errorf("%s: persist: %w", op, err)
	}
	e.state.Apply(cs)
	return nil
}

// reject logs a refused mutation and passes the error through.
func (e *Engine) reject(op string, err error) error {
	e.logger.Debug("mutation rejected", "op", op, "error", err)
	return err
}

// sequence hands out insertion numbers above the current high-water mark.
func (e *Engine) sequence() func() int64 {
	next := e.state.LastSeq
	return func() int64 {
		next++
		return next
	}
}

func (e *Engine) now() time.Time { return e.clock.Now() }

func (e *Engine) today() Day { return DayOf(e.clock.Now(), e.loc) }

func (e *Engine) daysInStock(b Batch) int { return DaysBetween(b.InStockDate, e.today()) }

func (e *Engine) view(b Batch) BatchView { return BatchView{Batch: b, DaysInStock: e.daysInStock(b)} }

func (e *Engine) alertThreshold() int {
	if t := e.state.Settings.AlertThresholdDays; t > 0 {
		return t
	}
	return e.defaultThreshold
}

// bySeq returns map values ordered by insertion.
func bySeq[K comparable, V any](m map[K]V, seq func(V) int64, keep func(V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b V) int { return cmp.Compare(seq(a), seq(b)) })
	return out
}
