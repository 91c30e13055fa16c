package storage

import (
	"context"
	"fmt"
	"sync"

	"linegroup/internal/ddl"
)

// Columns is the export table layout; every exported row is
// (group_no, member_no, row_index, line), with group_no and member_no 1-based
// in report order.
var Columns = []string{"group_no", "member_no", "row_index", "line"}

// ColumnTypes names the SQL types a backend uses for the export table.
type ColumnTypes struct {
	Int    string
	BigInt string
	Text   string
}

// GroupTable is the definition of the export table fqn.
func GroupTable(fqn string, types ColumnTypes) ddl.TableDef {
	return ddl.TableDef{
		FQN: fqn,
		Columns: []ddl.ColumnDef{
			{Name: Columns[0], SQLType: types.Int, PrimaryKey: true},
			{Name: Columns[1], SQLType: types.Int, PrimaryKey: true},
			{Name: Columns[2], SQLType: types.BigInt},
			{Name: Columns[3], SQLType: types.Text},
		},
	}
}

// DDLBuilder renders the CREATE TABLE statement for the export table in a
// backend's dialect.
type DDLBuilder func(table string) (string, error)

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBuilder{}
)

// RegisterDDL registers (or replaces) the DDLBuilder for kind.
func RegisterDDL(kind string, fn DDLBuilder) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable creates the export table through repo unless it already exists.
func EnsureTable(ctx context.Context, cfg Config, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL builder registered for storage.kind=%q", cfg.Kind)
	}
	stmt, err := fn(cfg.Table)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	return nil
}
