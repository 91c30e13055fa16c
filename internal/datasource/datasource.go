// Package datasource defines where grouping input comes from.
package datasource

import (
	"context"
	"io"
)

// File is an opened input. Sequential passes use Read; line resolution by
// stored offset uses ReadAt, which never moves the sequential cursor.
type File interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

// Source opens a fresh handle on the input for every pass.
type Source interface {
	Open(ctx context.Context) (File, error)
	// Name identifies the input in logs and error messages.
	Name() string
}
