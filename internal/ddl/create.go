// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE TABLE statements from it. Storage backends supply a Dialect with
// their identifier quoting and existence guard.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement for t.
//
// Rules:
//
//   - t.FQN must be non-empty.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <quoted Name> <SQLType> [NOT NULL]
//
//     where NOT NULL is added when Nullable == false or the column is part of
//     the primary key.
//
//   - Columns with PrimaryKey == true form a PRIMARY KEY clause in declaration
//     order at the end of the column list.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s: column %s missing SQLType", d.Name, name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	quoted := d.QuoteFQN(fqn)
	create := "CREATE TABLE "
	if d.IfNotExists {
		create += "IF NOT EXISTS "
	}
	stmt := fmt.Sprintf("%s%s (\n  %s\n);", create, quoted, strings.Join(cols, ",\n  "))

	if d.Guard != nil {
		stmt = d.Guard(fqn, quoted, stmt)
	}
	return stmt, nil
}
