// Package storage exports grouping results to a database. Callers stay
// backend-agnostic: concrete backends register a Factory under their kind in
// init(), and the CLI obtains a Repository through New. Importing
// linegroup/internal/storage/all wires every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the minimal surface the exporter needs from a backend.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns into the configured table
	// and returns the number of rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// ReplaceAll deletes every row of the configured table and calls fill
	// with a CopyFn bound to the same transaction. The table changes only if
	// fill returns nil and the commit succeeds.
	ReplaceAll(ctx context.Context, fill func(copyFn CopyFn) error) error
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for kind. It is typically
// called from backend packages' init() functions.
func Register(kind string, fn Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = fn
}

// New opens a Repository using the Factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	fn, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
