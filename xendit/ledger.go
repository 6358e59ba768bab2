package xendit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Ledger records which notification ids have reached a final outcome so
// that provider retries of an acknowledged notification cannot
// double-record a payment. Ids are recorded only once processing has
// finished for good; a notification that failed retryably (order not yet
// visible, deployment misconfigured) is never recorded, so the provider's
// retry gets a full re-run. MarkProcessed returns true the first time an
// id is recorded and false on every replay.
type Ledger interface {
	MarkProcessed(ctx context.Context, notificationID string) (bool, error)
	Processed(ctx context.Context, notificationID string) (bool, error)
}

// MemoryLedger is an in-process Ledger for tests and single-instance
// deployments that accept losing dedup state across restarts.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		seen: make(map[string]struct{}),
	}
}

// MarkProcessed records the notification id, reporting whether it was new
func (l *MemoryLedger) MarkProcessed(_ context.Context, notificationID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[notificationID]; ok {
		return false, nil
	}
	l.seen[notificationID] = struct{}{}
	return true, nil
}

// Processed reports whether the notification id was already recorded
func (l *MemoryLedger) Processed(_ context.Context, notificationID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.seen[notificationID]
	return ok, nil
}

// SQLiteLedger is a durable Ledger sharing the order store's database
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger creates the ledger table if missing and returns a
// ledger bound to db
func NewSQLiteLedger(db *sql.DB) (*SQLiteLedger, error) {
	query := `
	CREATE TABLE IF NOT EXISTS processed_notifications (
		id TEXT PRIMARY KEY,
		processed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to initialize notification ledger: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// MarkProcessed inserts the notification id, reporting whether it was new
func (l *SQLiteLedger) MarkProcessed(ctx context.Context, notificationID string) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_notifications (id) VALUES (?)`,
		notificationID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record notification %s: %w", notificationID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check notification insert: %w", err)
	}

	return affected == 1, nil
}

// Processed reports whether the notification id was already recorded
func (l *SQLiteLedger) Processed(ctx context.Context, notificationID string) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processed_notifications WHERE id = ?`,
		notificationID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check notification %s: %w", notificationID, err)
	}
	return count > 0, nil
}
