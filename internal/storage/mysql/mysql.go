// Package mysql provides a MySQL-backed storage.Repository implementation.
// Batches are written as multi-row INSERT statements inside one transaction,
// chunked to stay under the server's placeholder limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"linegroup/internal/ddl"
	"linegroup/internal/storage"
)

// maxPlaceholders is the prepared statement parameter limit of MySQL.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // go-sql-driver DSN, e.g. "user:pw@tcp(localhost:3306)/db"
	Table string
}

// Dialect renders MySQL DDL.
var Dialect = ddl.Dialect{
	Name:        "mysql ddl",
	QuoteIdent:  myIdent,
	IfNotExists: true,
}

// Types are the export table column types.
var Types = storage.ColumnTypes{Int: "INT", BigInt: "BIGINT", Text: "LONGTEXT"}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts rows in chunks of multi-row INSERT statements. The whole
// batch commits or rolls back together.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	inserted, err := r.insertTx(ctx, tx, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ReplaceAll clears the configured table and refills it through fill inside
// one transaction. The table must use a transactional engine such as InnoDB.
func (r *Repository) ReplaceAll(ctx context.Context, fill func(copyFn storage.CopyFn) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+Dialect.QuoteFQN(r.cfg.Table)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear %s: %w", r.cfg.Table, err)
	}
	err = fill(func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		if len(columns) == 0 {
			return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
		}
		return r.insertTx(ctx, tx, columns, rows)
	})
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertTx runs the chunked INSERTs on tx. The caller owns the transaction.
func (r *Repository) insertTx(ctx context.Context, tx *sql.Tx, columns []string, rows [][]any) (int64, error) {
	perStmt := maxPlaceholders / len(columns)

	var inserted int64
	for start := 0; start < len(rows); start += perStmt {
		end := min(start+perStmt, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				return 0, fmt.Errorf("mysql: CopyFrom: row %d length %d != columns length %d", start+i, len(row), len(columns))
			}
			args = append(args, row...)
		}
		res, err := tx.ExecContext(ctx, buildInsertSQL(r.cfg.Table, columns, len(chunk)), args...)
		if err != nil {
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// buildInsertSQL renders INSERT INTO t (c1,c2) VALUES (?,?),(?,?) for n rows.
func buildInsertSQL(table string, columns []string, n int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = myIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(Dialect.QuoteFQN(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ","))
	sb.WriteString(") VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(tuple)
	}
	return sb.String()
}

// myIdent quotes a MySQL identifier with backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mysql", func(table string) (string, error) {
		return ddl.BuildCreateTableSQL(storage.GroupTable(table, Types), Dialect)
	})
}

// wrappedRepo adapts *mysql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
