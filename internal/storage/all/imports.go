// Package all wires all built-in storage backends into the storage factory.
//
// Importing it for side effects registers these storage kinds and their
// CREATE TABLE builders:
//
//   - "postgres" (linegroup/internal/storage/postgres)
//   - "mssql"    (linegroup/internal/storage/mssql)
//   - "mysql"    (linegroup/internal/storage/mysql)
//   - "sqlite"   (linegroup/internal/storage/sqlite)
//
// Typical usage:
//
//	import _ "linegroup/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: "groups.db", Table: "line_groups"})
//
// A binary that needs only a subset can import the backend packages directly.
package all

import (
	_ "linegroup/internal/storage/mssql"
	_ "linegroup/internal/storage/mysql"
	_ "linegroup/internal/storage/postgres"
	_ "linegroup/internal/storage/sqlite"
)
