package farm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orchardops/farm-engine/farm"
	"github.com/orchardops/farm-engine/farm/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// 2024-11-10 09:00 UTC
var testNow = time.Date(2024, time.November, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	clock  *farm.FixedClock
	store  *store.Memory
	engine *farm.Engine
}

func newFixture(t *testing.T, opts ...farm.Option) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		clock: &farm.FixedClock{At: testNow},
		store: store.NewMemory(),
	}
	all := append([]farm.Option{farm.WithClock(f.clock)}, opts...)
	engine, err := farm.Open(f.ctx, f.store, all...)
	require.NoError(t, err)
	f.engine = engine
	return f
}

// reopen builds a second engine over the same store.
func (f *fixture) reopen(opts ...farm.Option) *farm.Engine {
	f.t.Helper()
	all := append([]farm.Option{farm.WithClock(f.clock)}, opts...)
	engine, err := farm.Open(f.ctx, f.store, all...)
	require.NoError(f.t, err)
	return engine
}

func (f *fixture) grade(name string) farm.Grade {
	f.t.Helper()
	g, err := f.engine.CreateGrade(f.ctx, farm.GradeInput{Name: name})
	require.NoError(f.t, err)
	return g
}

func (f *fixture) orchard(name string) farm.Orchard {
	f.t.Helper()
	o, err := f.engine.CreateOrchard(f.ctx, farm.OrchardInput{Name: name})
	require.NoError(f.t, err)
	return o
}

func (f *fixture) customer(name string) farm.Customer {
	f.t.Helper()
	c, err := f.engine.CreateCustomer(f.ctx, farm.CustomerInput{Name: name})
	require.NoError(f.t, err)
	return c
}

// batch adds a batch in stock since inStock (YYYY-MM-DD).
func (f *fixture) batch(grade farm.Grade, qty string, inStock string) farm.BatchView {
	f.t.Helper()
	b, err := f.engine.CreateBatch(f.ctx, farm.BatchInput{
		GradeID:     grade.ID,
		Quantity:    dec(qty),
		InStockDate: farm.MustParseDay(inStock),
	})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) order(customer farm.Customer, lines ...farm.OrderLineInput) farm.Order {
	f.t.Helper()
	o, err := f.engine.CreateOrder(f.ctx, farm.OrderInput{CustomerID: customer.ID, Items: lines})
	require.NoError(f.t, err)
	return o
}

func (f *fixture) quantity(id farm.BatchID) decimal.Decimal {
	f.t.Helper()
	b, err := f.engine.GetBatch(id)
	require.NoError(f.t, err)
	return b.Quantity
}

func lineOf(grade farm.Grade, qty, price string) farm.OrderLineInput {
	return farm.OrderLineInput{GradeID: grade.ID, Quantity: dec(qty), UnitPrice: dec(price)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// requireDecimal compares decimals by value, so 5500 equals 5500.0.
func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

// =============================================================================
// FAILING STORE
// =============================================================================

var errDiskFull = errors.New("disk full")

// flakyStore wraps a memory store and fails Apply while fail is set.
type flakyStore struct {
	*store.Memory
	mu   sync.Mutex
	fail bool
}

func (s *flakyStore) Apply(ctx context.Context, cs farm.Changeset) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return s.Memory.Apply(ctx, cs)
}

// newFlakyFixture is a fixture whose store can be made to fail.
func newFlakyFixture(t *testing.T) (*fixture, *flakyStore) {
	t.Helper()
	fs := &flakyStore{Memory: store.NewMemory()}
	f := &fixture{t: t, ctx: context.Background(), clock: &farm.FixedClock{At: testNow}, store: fs.Memory}
	engine, err := farm.Open(f.ctx, fs, farm.WithClock(f.clock))
	require.NoError(t, err)
	f.engine = engine
	return f, fs
}

func (s *flakyStore) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

// fixedSuffix always hands out the same number suffix.
type fixedSuffix struct {
	n int
}

func (s *fixedSuffix) NewID() string {
	s.n++
	return "id-" + decimal.NewFromInt(int64(s.n)).String()
}

func (s *fixedSuffix) Suffix() string { return "AAAA" }
