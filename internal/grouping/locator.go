package grouping

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"

	"linegroup/internal/lineio"
)

// LocatorKind selects how relevant rows are recovered for the report.
type LocatorKind string

const (
	// LocatorOffset keeps one byte offset per relevant row and re-reads the
	// line from the input when materializing groups.
	LocatorOffset LocatorKind = "offset"
	// LocatorMemory keeps the text of every relevant row resident.
	LocatorMemory LocatorKind = "memory"
)

// ParseLocatorKind maps a config value to a LocatorKind; empty selects
// LocatorOffset.
func ParseLocatorKind(s string) (LocatorKind, error) {
	switch LocatorKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", LocatorOffset:
		return LocatorOffset, nil
	case LocatorMemory:
		return LocatorMemory, nil
	}
	return "", fmt.Errorf("unknown locator %q (want %q or %q)", s, LocatorOffset, LocatorMemory)
}

// ResolveFunc returns the text of a relevant row.
type ResolveFunc func(row int) (string, error)

// Locator records, in row-index order, enough about each relevant row to
// recover its text later. Entries are never modified once recorded.
type Locator interface {
	Record(line string, offset int64)
	Len() int
	// NeedsInput reports whether Resolver reads from the input.
	NeedsInput() bool
	// Resolver binds the locator to the input opened for the final pass.
	// ra may be nil when NeedsInput is false.
	Resolver(ra io.ReaderAt) ResolveFunc
}

// NewLocator returns an empty locator of the given kind.
func NewLocator(kind LocatorKind, enc encoding.Encoding) Locator {
	if kind == LocatorMemory {
		return &memoryLocator{}
	}
	return &offsetLocator{enc: enc}
}

type offsetLocator struct {
	offsets []int64
	enc     encoding.Encoding
}

func (l *offsetLocator) Record(_ string, offset int64) { l.offsets = append(l.offsets, offset) }
func (l *offsetLocator) Len() int                      { return len(l.offsets) }
func (l *offsetLocator) NeedsInput() bool              { return true }

func (l *offsetLocator) Resolver(ra io.ReaderAt) ResolveFunc {
	return func(row int) (string, error) {
		if row < 0 || row >= len(l.offsets) {
			return "", fmt.Errorf("row %d out of range [0,%d)", row, len(l.offsets))
		}
		return lineio.ReadLineAt(ra, l.offsets[row], l.enc)
	}
}

type memoryLocator struct {
	lines []string
}

func (l *memoryLocator) Record(line string, _ int64) { l.lines = append(l.lines, line) }
func (l *memoryLocator) Len() int                    { return len(l.lines) }
func (l *memoryLocator) NeedsInput() bool            { return false }

func (l *memoryLocator) Resolver(io.ReaderAt) ResolveFunc {
	return func(row int) (string, error) {
		if row < 0 || row >= len(l.lines) {
			return "", fmt.Errorf("row %d out of range [0,%d)", row, len(l.lines))
		}
		return l.lines[row], nil
	}
}
