/*
Package sqlite provides a SQLite-backed implementation of farm.Store.

PURPOSE:
  Persists the engine state so grades, harvests, batches and orders
  survive restarts. The engine still serves every read from memory; this
  store is written once per committed mutation and read once on startup.

ATOMICITY:
  Apply() runs the whole changeset in one SQL transaction. Shipping an
  order writes the order, its items and every decremented batch together
  or not at all.

KEY TABLES:
  grades, orchards, customers:  Catalog
  picking_records:              Harvest ledger
  batches:                      Inventory ledger (never deleted)
  orders, order_items:          Order ledger
  settings:                     Single-row runtime settings

ENCODING:
  Decimals are stored as TEXT to keep exact values. Calendar days are
  TEXT YYYY-MM-DD, timestamps TEXT RFC3339 with nanoseconds.

WAL MODE:
  Opened with WAL journal. A single connection is used, which also keeps
  ":memory:" databases alive across calls.

USAGE:
  store, err := sqlite.New("./data/farm.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine, err := farm.Open(ctx, store)

SEE ALSO:
  - farm/store.go: Interface and Changeset
  - farm/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/orchardops/farm-engine/farm"
	"github.com/shopspring/decimal"
)

// Store implements farm.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grades (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT,
		seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orchards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		note TEXT,
		seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS picking_records (
		id TEXT PRIMARY KEY,
		orchard_id TEXT NOT NULL,
		orchard_name TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit TEXT NOT NULL,
		date TEXT NOT NULL,
		picker_id TEXT,
		status TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_picking_status
		ON picking_records(status);

	-- Batches are never deleted; depleted rows stay for traceability
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		batch_no TEXT NOT NULL UNIQUE,
		grade_id TEXT NOT NULL,
		grade_name TEXT NOT NULL,
		quantity TEXT NOT NULL,
		in_stock_date TEXT NOT NULL,
		picking_record_id TEXT,
		created_at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	-- FIFO scans by grade and intake date
	CREATE INDEX IF NOT EXISTS idx_batches_grade_date
		ON batches(grade_id, in_stock_date);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		order_no TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		cost TEXT NOT NULL,
		profit TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL,
		shipped_at TEXT,
		completed_at TEXT,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status
		ON orders(status);

	CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		grade_id TEXT NOT NULL,
		grade_name TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		batch_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order
		ON order_items(order_id, position);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		alert_threshold_days INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// farm.Store IMPLEMENTATION
// =============================================================================

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Apply persists a changeset in one transaction.
func (s *Store) Apply(ctx context.Context, cs farm.Changeset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := applyChangeset(ctx, tx, cs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func applyChangeset(ctx context.Context, db execer, cs farm.Changeset) error {
	for _, g := range cs.Grades {
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO grades (id, name, code, seq) VALUES (?, ?, ?, ?)`,
			string(g.ID), g.Name, nullString(g.Code), g.Seq,
		); err != nil {
			return fmt.Errorf("failed to save grade %s: %w", g.ID, err)
		}
	}
	for _, id := range cs.DeletedGrades {
		if _, err := db.ExecContext(ctx, `DELETE FROM grades WHERE id = ?`, string(id)); err != nil {
			return fmt.Errorf("failed to delete grade %s: %w", id, err)
		}
	}

	for _, o := range cs.Orchards {
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO orchards (id, name, description, seq) VALUES (?, ?, ?, ?)`,
			string(o.ID), o.Name, nullString(o.Description), o.Seq,
		); err != nil {
			return fmt.Errorf("failed to save orchard %s: %w", o.ID, err)
		}
	}
	for _, id := range cs.DeletedOrchards {
		if _, err := db.ExecContext(ctx, `DELETE FROM orchards WHERE id = ?`, string(id)); err != nil {
			return fmt.Errorf("failed to delete orchard %s: %w", id, err)
		}
	}

	for _, c := range cs.Customers {
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO customers (id, name, phone, address, note, seq) VALUES (?, ?, ?, ?, ?, ?)`,
			string(c.ID), c.Name, nullString(c.Phone), nullString(c.Address), nullString(c.Note), c.Seq,
		); err != nil {
			return fmt.Errorf("failed to save customer %s: %w", c.ID, err)
		}
	}
	for _, id := range cs.DeletedCustomers {
		if _, err := db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, string(id)); err != nil {
			return fmt.Errorf("failed to delete customer %s: %w", id, err)
		}
	}

	for _, p := range cs.Picking {
		if _, err := db.ExecContext(ctx, `
			INSERT OR REPLACE INTO picking_records
				(id, orchard_id, orchard_name, quantity, unit, date, picker_id, status, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(p.ID), string(p.OrchardID), p.OrchardName, p.Quantity.String(),
			string(p.Unit), p.Date.String(), nullString(p.PickerID), string(p.Status), p.Seq,
		); err != nil {
			return fmt.Errorf("failed to save picking record %s: %w", p.ID, err)
		}
	}

	for _, b := range cs.Batches {
		if _, err := db.ExecContext(ctx, `
			INSERT OR REPLACE INTO batches
				(id, batch_no, grade_id, grade_name, quantity, in_stock_date, picking_record_id, created_at, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(b.ID), b.BatchNo, string(b.GradeID), b.GradeName, b.Quantity.String(),
			b.InStockDate.String(), nullString(string(b.PickingRecordID)), formatTime(b.CreatedAt), b.Seq,
		); err != nil {
			return fmt.Errorf("failed to save batch %s: %w", b.BatchNo, err)
		}
	}

	for _, o := range cs.Orders {
		if err := saveOrder(ctx, db, o); err != nil {
			return err
		}
	}

	if cs.Settings != nil {
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO settings (id, alert_threshold_days) VALUES (1, ?)`,
			cs.Settings.AlertThresholdDays,
		); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
	}
	return nil
}

func saveOrder(ctx context.Context, db execer, o farm.Order) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO orders
			(id, order_no, customer_id, customer_name, total_amount, status, payment_status,
			 paid_amount, cost, profit, note, created_at, shipped_at, completed_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(o.ID), o.OrderNo, string(o.CustomerID), o.CustomerName, o.TotalAmount.String(),
		string(o.Status), string(o.PaymentStatus), o.PaidAmount.String(), o.Cost.String(),
		o.Profit.String(), nullString(o.Note), formatTime(o.CreatedAt),
		nullTime(o.ShippedAt), nullTime(o.CompletedAt), o.Seq,
	)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", o.OrderNo, err)
	}

	// Items are rewritten as a unit
	if _, err := db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, string(o.ID)); err != nil {
		return fmt.Errorf("failed to clear items of order %s: %w", o.OrderNo, err)
	}
	for i, it := range o.Items {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, grade_id, grade_name, quantity, unit_price, batch_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(it.ID), string(o.ID), i, string(it.GradeID), it.GradeName,
			it.Quantity.String(), it.UnitPrice.String(), nullString(string(it.BatchID)),
		); err != nil {
			return fmt.Errorf("failed to save item %s of order %s: %w", it.ID, o.OrderNo, err)
		}
	}
	return nil
}

// Load reads the whole state.
func (s *Store) Load(ctx context.Context) (*farm.State, error) {
	var cs farm.Changeset

	if err := s.each(ctx, `SELECT id, name, code, seq FROM grades`, func(rows *sql.Rows) error {
		var g farm.Grade
		var code sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &code, &g.Seq); err != nil {
			return err
		}
		g.Code = code.String
		cs.Grades = append(cs.Grades, g)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load grades: %w", err)
	}

	if err := s.each(ctx, `SELECT id, name, description, seq FROM orchards`, func(rows *sql.Rows) error {
		var o farm.Orchard
		var desc sql.NullString
		if err := rows.Scan(&o.ID, &o.Name, &desc, &o.Seq); err != nil {
			return err
		}
		o.Description = desc.String
		cs.Orchards = append(cs.Orchards, o)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load orchards: %w", err)
	}

	if err := s.each(ctx, `SELECT id, name, phone, address, note, seq FROM customers`, func(rows *sql.Rows) error {
		var c farm.Customer
		var phone, address, note sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &phone, &address, &note, &c.Seq); err != nil {
			return err
		}
		c.Phone, c.Address, c.Note = phone.String, address.String, note.String
		cs.Customers = append(cs.Customers, c)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	if err := s.each(ctx, `
		SELECT id, orchard_id, orchard_name, quantity, unit, date, picker_id, status, seq
		FROM picking_records`, func(rows *sql.Rows) error {
		var p farm.PickingRecord
		var qty, date string
		var picker sql.NullString
		if err := rows.Scan(&p.ID, &p.OrchardID, &p.OrchardName, &qty, &p.Unit, &date, &picker, &p.Status, &p.Seq); err != nil {
			return err
		}
		var err error
		if p.Quantity, err = decimal.NewFromString(qty); err != nil {
			return err
		}
		if p.Date, err = farm.ParseDay(date); err != nil {
			return err
		}
		p.PickerID = picker.String
		cs.Picking = append(cs.Picking, p)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load picking records: %w", err)
	}

	if err := s.each(ctx, `
		SELECT id, batch_no, grade_id, grade_name, quantity, in_stock_date, picking_record_id, created_at, seq
		FROM batches`, func(rows *sql.Rows) error {
		var b farm.Batch
		var qty, inStock, createdAt string
		var picking sql.NullString
		if err := rows.Scan(&b.ID, &b.BatchNo, &b.GradeID, &b.GradeName, &qty, &inStock, &picking, &createdAt, &b.Seq); err != nil {
			return err
		}
		var err error
		if b.Quantity, err = decimal.NewFromString(qty); err != nil {
			return err
		}
		if b.InStockDate, err = farm.ParseDay(inStock); err != nil {
			return err
		}
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		b.PickingRecordID = farm.PickingID(picking.String)
		cs.Batches = append(cs.Batches, b)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load batches: %w", err)
	}

	orders, err := s.loadOrders(ctx)
	if err != nil {
		return nil, err
	}
	cs.Orders = orders

	var threshold sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT alert_threshold_days FROM settings WHERE id = 1`).Scan(&threshold)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	cs.Settings = &farm.Settings{AlertThresholdDays: int(threshold.Int64)}

	state := farm.NewState()
	state.Apply(cs)
	return state, nil
}

func (s *Store) loadOrders(ctx context.Context) ([]farm.Order, error) {
	byID := make(map[farm.OrderID]*farm.Order)
	var ids []farm.OrderID

	if err := s.each(ctx, `
		SELECT id, order_no, customer_id, customer_name, total_amount, status, payment_status,
		       paid_amount, cost, profit, note, created_at, shipped_at, completed_at, seq
		FROM orders`, func(rows *sql.Rows) error {
		var o farm.Order
		var total, paid, cost, profit, createdAt string
		var note, shippedAt, completedAt sql.NullString
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.CustomerID, &o.CustomerName, &total, &o.Status,
			&o.PaymentStatus, &paid, &cost, &profit, &note, &createdAt, &shippedAt, &completedAt, &o.Seq); err != nil {
			return err
		}
		var err error
		if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return err
		}
		if o.PaidAmount, err = decimal.NewFromString(paid); err != nil {
			return err
		}
		if o.Cost, err = decimal.NewFromString(cost); err != nil {
			return err
		}
		if o.Profit, err = decimal.NewFromString(profit); err != nil {
			return err
		}
		if o.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		if o.ShippedAt, err = parseNullTime(shippedAt); err != nil {
			return err
		}
		if o.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return err
		}
		o.Note = note.String
		byID[o.ID] = &o
		ids = append(ids, o.ID)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	if err := s.each(ctx, `
		SELECT id, order_id, grade_id, grade_name, quantity, unit_price, batch_id
		FROM order_items ORDER BY order_id, position`, func(rows *sql.Rows) error {
		var it farm.OrderItem
		var orderID farm.OrderID
		var qty, price string
		var batch sql.NullString
		if err := rows.Scan(&it.ID, &orderID, &it.GradeID, &it.GradeName, &qty, &price, &batch); err != nil {
			return err
		}
		var err error
		if it.Quantity, err = decimal.NewFromString(qty); err != nil {
			return err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return err
		}
		it.BatchID = farm.BatchID(batch.String)
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	orders := make([]farm.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, *byID[id])
	}
	return orders, nil
}

// Reset deletes all data (used by demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"order_items", "orders", "batches", "picking_records", "customers", "orchards", "grades", "settings"}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) each(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
