// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc.org/sqlite driver. Rows are inserted
// through a prepared statement inside one transaction per batch; SQLite has no
// bulk-load API like Postgres COPY.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"linegroup/internal/ddl"
	"linegroup/internal/storage"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:groups.db?_pragma=busy_timeout(5000)"
	//   "groups.db"
	DSN string

	// Table is the target table name. Dotted names such as "main.groups" are
	// quoted segment by segment.
	Table string
}

// Dialect renders SQLite DDL.
var Dialect = ddl.Dialect{
	Name:        "sqlite ddl",
	QuoteIdent:  quoteIdent,
	IfNotExists: true,
}

// Types are the export table column types.
var Types = storage.ColumnTypes{Int: "INTEGER", BigInt: "INTEGER", Text: "TEXT"}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite database and returns a Repository plus a Close
// function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts rows into the configured table in a single transaction.
// len(row) must equal len(columns) for every row.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	inserted, err := r.insertTx(ctx, tx, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// ReplaceAll clears the configured table and refills it through fill inside
// one transaction.
func (r *Repository) ReplaceAll(ctx context.Context, fill func(copyFn storage.CopyFn) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+Dialect.QuoteFQN(r.cfg.Table)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: clear %s: %w", r.cfg.Table, err)
	}
	err = fill(func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		if len(columns) == 0 {
			return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
		}
		return r.insertTx(ctx, tx, columns, rows)
	})
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// insertTx inserts rows through a prepared statement on tx. The caller owns
// the transaction.
func (r *Repository) insertTx(ctx context.Context, tx *sql.Tx, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		Dialect.QuoteFQN(r.cfg.Table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("sqlite: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// Exec executes a single statement, typically DDL.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds Close to *Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("sqlite", func(table string) (string, error) {
		return ddl.BuildCreateTableSQL(storage.GroupTable(table, Types), Dialect)
	})
}
