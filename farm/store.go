/*
store.go - Persistence interface and the engine's state aggregate

PURPOSE:
  The engine keeps every ledger in one State value. A Store receives each
  committed mutation as a Changeset and can hand the whole State back on
  startup. The engine swaps its in-memory state only after the Store
  accepted the changeset, so a failing store leaves everything unchanged.

ATOMIC CHANGESETS:
  Shipping an order touches the order and several batches. They travel
  in one Changeset and Apply() must persist all of it or none of it.

IMPLEMENTATIONS:
  - farm/store/memory.go: In-memory (default, tests)
  - store/sqlite/sqlite.go: SQLite
*/
package farm

import "context"

// =============================================================================
// STORE - Interface for state persistence
// =============================================================================

type Store interface {
	// Load returns the persisted state. An empty store returns NewState().
	Load(ctx context.Context) (*State, error)

	// Apply persists a changeset atomically.
	Apply(ctx context.Context, cs Changeset) error

	// Reset deletes everything persisted.
	Reset(ctx context.Context) error
}

// Changeset lists the entities written (full replacement by id) or deleted
// by one mutation.
type Changeset struct {
	Grades           []Grade
	DeletedGrades    []GradeID
	Orchards         []Orchard
	DeletedOrchards  []OrchardID
	Customers        []Customer
	DeletedCustomers []CustomerID
	Picking          []PickingRecord
	Batches          []Batch
	Orders           []Order
	Settings         *Settings
}

func (cs Changeset) Empty() bool {
	return len(cs.Grades) == 0 && len(cs.DeletedGrades) == 0 &&
		len(cs.Orchards) == 0 && len(cs.DeletedOrchards) == 0 &&
		len(cs.Customers) == 0 && len(cs.DeletedCustomers) == 0 &&
		len(cs.Picking) == 0 && len(cs.Batches) == 0 && len(cs.Orders) == 0 &&
		cs.Settings == nil
}

// =============================================================================
// STATE - All ledgers
// =============================================================================

type State struct {
	Grades    map[GradeID]Grade
	Orchards  map[OrchardID]Orchard
	Customers map[CustomerID]Customer
	Picking   map[PickingID]PickingRecord
	Batches   map[BatchID]Batch
	Orders    map[OrderID]Order
	Settings  Settings // zero threshold means "not set", engine default applies

	// LastSeq is the highest Seq seen on any entity.
	LastSeq int64
}

func NewState() *State {
	return &State{
		Grades:    make(map[GradeID]Grade),
		Orchards:  make(map[OrchardID]Orchard),
		Customers: make(map[CustomerID]Customer),
		Picking:   make(map[PickingID]PickingRecord),
		Batches:   make(map[BatchID]Batch),
		Orders:    make(map[OrderID]Order),
	}
}

// Apply writes a changeset into the state.
func (s *State) Apply(cs Changeset) {
	for _, g := range cs.Grades {
		s.Grades[g.ID] = g
		s.seen(g.Seq)
	}
	for _, id := range cs.DeletedGrades {
		delete(s.Grades, id)
	}
	for _, o := range cs.Orchards {
		s.Orchards[o.ID] = o
		s.seen(o.Seq)
	}
	for _, id := range cs.DeletedOrchards {
		delete(s.Orchards, id)
	}
	for _, c := range cs.Customers {
		s.Customers[c.ID] = c
		s.seen(c.Seq)
	}
	for _, id := range cs.DeletedCustomers {
		delete(s.Customers, id)
	}
	for _, p := range cs.Picking {
		s.Picking[p.ID] = p
		s.seen(p.Seq)
	}
	for _, b := range cs.Batches {
		s.Batches[b.ID] = b
		s.seen(b.Seq)
	}
	for _, o := range cs.Orders {
		s.Orders[o.ID] = o.clone()
		s.seen(o.Seq)
	}
	if cs.Settings != nil {
		s.Settings = *cs.Settings
	}
}

func (s *State) seen(seq int64) {
	if seq > s.LastSeq {
		s.LastSeq = seq
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := NewState()
	c.Apply(s.Changeset())
	c.Settings = s.Settings
	c.LastSeq = s.LastSeq
	return c
}

// Changeset returns the whole state as one changeset.
func (s *State) Changeset() Changeset {
	cs := Changeset{Settings: &Settings{AlertThresholdDays: s.Settings.AlertThresholdDays}}
	for _, g := range s.Grades {
		cs.Grades = append(cs.Grades, g)
	}
	for _, o := range s.Orchards {
		cs.Orchards = append(cs.Orchards, o)
	}
	for _, c := range s.Customers {
		cs.Customers = append(cs.Customers, c)
	}
	for _, p := range s.Picking {
		cs.Picking = append(cs.Picking, p)
	}
	for _, b := range s.Batches {
		cs.Batches = append(cs.Batches, b)
	}
	for _, o := range s.Orders {
		cs.Orders = append(cs.Orders, o.clone())
	}
	return cs
}
