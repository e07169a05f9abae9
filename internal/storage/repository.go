package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ledgerq/internal/core"
	"ledgerq/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists month ledgers in one table keyed by month_key.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteStore(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under the book's
	// per-month locks.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.WithComponent(log.ComponentStorage).Info("SQLite ledger store ready", "path", dbPath)
	return &SQLiteStore{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const selectExpenses = `SELECT id, date, description, amount_cents, category, created_at
FROM expenses WHERE month_key = ? ORDER BY seq`

func (s *SQLiteStore) Load(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx, selectExpenses, month.String())
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e               core.Expense
			date, createdAt string
		)
		if err := rows.Scan(&e.ID, &date, &e.Description, &e.Amount.Cents, &e.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

const insertExpense = `INSERT INTO expenses (id, month_key, date, description, amount_cents, category, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, x execer, month core.MonthKey, e core.Expense) error {
	if e.Month() != month {
		return core.ErrMonthMismatch
	}
	_, err := x.ExecContext(ctx, insertExpense,
		e.ID, month.String(), e.Date.String(), e.Description, e.Amount.Cents, e.Category,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert expense %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, month core.MonthKey, e core.Expense) error {
	if err := insert(ctx, s.db, month, e); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, e.ID, log.FieldAmountCents, e.Amount.Cents, log.FieldMonth, month.String())
	return nil
}

// AppendBatch inserts every record in one transaction.
func (s *SQLiteStore) AppendBatch(ctx context.Context, month core.MonthKey, es []core.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range es {
		if err := insert(ctx, tx, month, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.logger.DebugContext(ctx, "Expense batch saved to SQLite", log.FieldMonth, month.String(), "count", len(es))
	return nil
}

func (s *SQLiteStore) DeleteByIDs(ctx context.Context, month core.MonthKey, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, month.String())
	for _, id := range ids {
		args = append(args, id)
	}
	query := `DELETE FROM expenses WHERE month_key = ? AND id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) IsArchived(ctx context.Context, month core.MonthKey) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_months WHERE month_key = ?`, month.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query archive flag: %w", err)
	}
	return n > 0, nil
}

// Archive freezes a month explicitly.
func (s *SQLiteStore) Archive(ctx context.Context, month core.MonthKey, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO archived_months (month_key, archived_at) VALUES (?, ?) ON CONFLICT (month_key) DO NOTHING`,
		month.String(), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("archive month %s: %w", month, err)
	}
	return nil
}

func (s *SQLiteStore) Months(ctx context.Context) ([]core.MonthKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT month_key FROM expenses ORDER BY month_key`)
	if err != nil {
		return nil, fmt.Errorf("query months: %w", err)
	}
	defer rows.Close()
	var out []core.MonthKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		m, err := core.ParseMonthKey(key)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
