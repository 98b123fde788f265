// Package storage provides the SQLite-backed transaction and recurrence
// state stores.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ricorrenze/internal/core"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendBatch inserts the batch inside one transaction so a duplicate id
// aborts the whole batch. Implements services.TransactionStore.
func (r *SQLiteRepository) AppendBatch(ctx context.Context, batch []core.Transaction) ([]core.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	for _, t := range batch {
		_, err := dbTx.ExecContext(ctx,
			`INSERT INTO transactions (trans_id, user_id, name, amount_cents, date)
			 VALUES (?, ?, ?, ?, ?)`,
			t.TransID, t.UserID, t.Name, t.Amount.Cents, t.Date.String())
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: %s", core.ErrDuplicateTransaction, t.TransID)
			}
			return nil, fmt.Errorf("insert transaction %s: %w", t.TransID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Transaction batch saved to SQLite",
		"count", len(batch))

	return batch, nil
}

// FetchAll returns every recorded transaction in chronological order.
func (r *SQLiteRepository) FetchAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT trans_id, user_id, name, amount_cents, date
		 FROM transactions ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var dateStr string
		if err := rows.Scan(&t.TransID, &t.UserID, &t.Name, &t.Amount.Cents, &dateStr); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date, err = core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", dateStr, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// GetByUser loads a user's recurrence state and its version for a later
// compare-and-swap. Implements services.StateStore.
func (r *SQLiteRepository) GetByUser(ctx context.Context, userID string) (core.UserRecurrenceState, int64, bool, error) {
	var (
		blob    []byte
		version int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT state, version FROM recurrence_states WHERE user_id = ?`,
		userID).Scan(&blob, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserRecurrenceState{}, 0, false, nil
	}
	if err != nil {
		return core.UserRecurrenceState{}, 0, false, fmt.Errorf("query recurrence state: %w", err)
	}

	var state core.UserRecurrenceState
	if err := json.Unmarshal(blob, &state); err != nil {
		return core.UserRecurrenceState{}, 0, false, fmt.Errorf("decode recurrence state: %w", err)
	}
	if state.Buckets == nil {
		state.Buckets = make(map[string]core.MerchantBucket)
	}
	return state, version, true, nil
}

// Create stores a first-time user's state at version 1.
func (r *SQLiteRepository) Create(ctx context.Context, state core.UserRecurrenceState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode recurrence state: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO recurrence_states (user_id, state, version, updated_at)
		 VALUES (?, ?, 1, ?)`,
		state.UserID, blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: state for %s already exists", core.ErrStateConflict, state.UserID)
		}
		return fmt.Errorf("insert recurrence state: %w", err)
	}
	return nil
}

// Replace swaps in a new state only if nobody wrote since the version was
// read; a concurrent writer surfaces as core.ErrStateConflict.
func (r *SQLiteRepository) Replace(ctx context.Context, userID string, state core.UserRecurrenceState, expectedVersion int64) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode recurrence state: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE recurrence_states
		 SET state = ?, version = version + 1, updated_at = ?
		 WHERE user_id = ? AND version = ?`,
		blob, time.Now().UTC().Format(time.RFC3339), userID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update recurrence state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: version %d for %s is stale", core.ErrStateConflict, expectedVersion, userID)
	}
	return nil
}

// ListUserIDs returns every user with a stored recurrence state. The export
// worker uses it for periodic full re-exports.
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM recurrence_states ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
