package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the reference Store and MethodRegistry implementation
// backed by SQLite. Deployments that embed the bridge into a platform with
// its own order database provide their own Store instead.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the order database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// WAL keeps concurrent webhook handling from tripping over writer locks
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("Order store initialized at: %s", dbPath)
	return store, nil
}

// initSchema creates the necessary tables
func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_token TEXT NOT NULL,
		code TEXT NOT NULL,
		state TEXT NOT NULL,
		currency_code TEXT NOT NULL DEFAULT 'IDR',
		total REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(channel_token, code)
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(id),
		method TEXT NOT NULL,
		amount REAL NOT NULL,
		transaction_id TEXT NOT NULL,
		state TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(order_id, transaction_id)
	);

	CREATE TABLE IF NOT EXISTS payment_methods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_token TEXT NOT NULL,
		code TEXT NOT NULL,
		handler_code TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		UNIQUE(channel_token, code)
	);

	CREATE INDEX IF NOT EXISTS idx_orders_channel_code ON orders(channel_token, code);
	CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// DB exposes the underlying connection so sibling components (e.g. the
// notification ledger) can share it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindByCode looks up an order by code within the tenant's channel
func (s *SQLiteStore) FindByCode(ctx context.Context, tctx TenantContext, code string) (*Order, error) {
	var o Order
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_token, code, state, currency_code, total FROM orders WHERE channel_token = ? AND code = ?`,
		tctx.ChannelToken, code,
	).Scan(&o.ID, &o.ChannelToken, &o.Code, &o.State, &o.CurrencyCode, &o.Total)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to query order %s: %w", code, err)
	}

	payments, err := s.loadPayments(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Payments = payments

	return &o, nil
}

func (s *SQLiteStore) loadPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, amount, transaction_id, state, COALESCE(metadata, ''), created_at FROM payments WHERE order_id = ? ORDER BY created_at`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		var metadata string
		if err := rows.Scan(&p.ID, &p.Method, &p.Amount, &p.TransactionID, &p.State, &metadata, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if metadata != "" {
			p.Metadata = []byte(metadata)
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// TransitionState moves an order to the target state, enforcing the
// lifecycle transition table
func (s *SQLiteStore) TransitionState(ctx context.Context, tctx TenantContext, orderID int64, target State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var code string
	var current State
	err = tx.QueryRowContext(ctx,
		`SELECT code, state FROM orders WHERE id = ? AND channel_token = ?`,
		orderID, tctx.ChannelToken,
	).Scan(&code, &current)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to query order %d: %w", orderID, err)
	}

	if !CanTransition(current, target) {
		return &TransitionError{OrderCode: code, From: current, To: target}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		target, orderID,
	); err != nil {
		return fmt.Errorf("failed to update order state: %w", err)
	}

	return tx.Commit()
}

// AddPayment records a payment against an order. The order must be in
// ArrangingPayment state; a repeated transaction id for the same order is
// rejected, which makes replayed settlement notifications harmless.
func (s *SQLiteStore) AddPayment(ctx context.Context, tctx TenantContext, orderID int64, input PaymentInput) (*Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var code string
	var state State
	err = tx.QueryRowContext(ctx,
		`SELECT code, state FROM orders WHERE id = ? AND channel_token = ?`,
		orderID, tctx.ChannelToken,
	).Scan(&code, &state)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to query order %d: %w", orderID, err)
	}

	if state != StateArrangingPayment {
		return nil, &DomainError{
			Code:    "ORDER_NOT_ACCEPTING_PAYMENTS",
			Message: fmt.Sprintf("order %s is in state %s", code, state),
		}
	}

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM payments WHERE order_id = ? AND transaction_id = ?`,
		orderID, input.TransactionID,
	).Scan(&existing); err != nil {
		return nil, fmt.Errorf("failed to check duplicate payment: %w", err)
	}
	if existing > 0 {
		return nil, &DomainError{
			Code:    "DUPLICATE_PAYMENT",
			Message: fmt.Sprintf("transaction %s already recorded for order %s", input.TransactionID, code),
		}
	}

	metadata := ""
	if len(input.Metadata) > 0 {
		if !json.Valid(input.Metadata) {
			return nil, &DomainError{
				Code:    "INVALID_METADATA",
				Message: "payment metadata must be valid JSON",
			}
		}
		metadata = string(input.Metadata)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, method, amount, transaction_id, state, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), orderID, input.Method, input.Amount, input.TransactionID, "Settled", metadata,
	); err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		StatePaymentSettled, orderID,
	); err != nil {
		return nil, fmt.Errorf("failed to settle order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	return s.FindByCode(ctx, tctx, code)
}

// ListConfigured returns the enabled payment methods for the channel
func (s *SQLiteStore) ListConfigured(ctx context.Context, tctx TenantContext) ([]PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, handler_code, enabled FROM payment_methods WHERE channel_token = ? AND enabled = 1`,
		tctx.ChannelToken,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	var methods []PaymentMethod
	for rows.Next() {
		var m PaymentMethod
		if err := rows.Scan(&m.ID, &m.Code, &m.HandlerCode, &m.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, m)
	}

	return methods, rows.Err()
}

// SeedOrder inserts an order, used by provisioning and tests
func (s *SQLiteStore) SeedOrder(ctx context.Context, o Order) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (channel_token, code, state, currency_code, total) VALUES (?, ?, ?, ?, ?)`,
		o.ChannelToken, o.Code, o.State, o.CurrencyCode, o.Total,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}
	return res.LastInsertId()
}

// SeedPaymentMethod inserts a payment method, used by provisioning and tests
func (s *SQLiteStore) SeedPaymentMethod(ctx context.Context, channelToken string, m PaymentMethod) error {
	enabled := 0
	if m.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_methods (channel_token, code, handler_code, enabled) VALUES (?, ?, ?, ?)`,
		channelToken, m.Code, m.HandlerCode, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment method: %w", err)
	}
	return nil
}
