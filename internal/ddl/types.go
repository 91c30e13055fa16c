package ddl

// ColumnDef describes a single column of a TableDef.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, NVARCHAR(MAX))
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "schema.table") and is
// quoted segment by segment by the dialect.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect carries the per-database rendering rules.
type Dialect struct {
	// Name prefixes error messages, e.g. "postgres ddl".
	Name string

	// QuoteIdent quotes one identifier segment.
	QuoteIdent func(id string) string

	// IfNotExists renders CREATE TABLE IF NOT EXISTS.
	IfNotExists bool

	// Guard, when set, wraps the CREATE TABLE statement for databases without
	// IF NOT EXISTS. It receives the unquoted FQN, the quoted FQN and the
	// statement.
	Guard func(fqn, quoted, stmt string) string
}

// QuoteFQN quotes a possibly schema-qualified name like "public.groups"
// segment by segment. Empty segments are ignored.
func (d Dialect) QuoteFQN(fqn string) string {
	var out []byte
	start := 0
	for i := 0; i <= len(fqn); i++ {
		if i < len(fqn) && fqn[i] != '.' {
			continue
		}
		if seg := fqn[start:i]; seg != "" {
			if len(out) > 0 {
				out = append(out, '.')
			}
			out = append(out, d.QuoteIdent(seg)...)
		}
		start = i + 1
	}
	return string(out)
}
