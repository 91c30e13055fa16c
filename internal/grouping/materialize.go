package grouping

import (
	"context"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"
)

// Group is a connected set of rows with their resolved line text. Rows and
// Lines are parallel and ascending by row index.
type Group struct {
	Rows  []int
	Lines []string
}

// Len is the member count.
func (g Group) Len() int { return len(g.Lines) }

// Materialize resolves the components of at least two rows into Groups and
// orders them by descending size; equal sizes keep the order of their
// smallest row index. Components come from DisjointSet.Components, which
// already orders them by smallest row.
//
// With dedupe set, a line whose text already appears in the same group is
// dropped, and groups left with fewer than two distinct lines are discarded.
func Materialize(ctx context.Context, comps [][]int, resolve ResolveFunc, dedupe bool) ([]Group, error) {
	groups := make([]Group, 0, len(comps))
	for _, rows := range comps {
		if len(rows) < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g := Group{Rows: make([]int, 0, len(rows)), Lines: make([]string, 0, len(rows))}
		var seen lineSet
		if dedupe {
			seen = make(lineSet, len(rows))
		}
		for _, row := range rows {
			line, err := resolve(row)
			if err != nil {
				return nil, fmt.Errorf("resolve row %d: %w", row, err)
			}
			if dedupe && !seen.add(line) {
				continue
			}
			g.Rows = append(g.Rows, row)
			g.Lines = append(g.Lines, line)
		}
		if g.Len() < 2 {
			continue
		}
		groups = append(groups, g)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Len() > groups[j].Len()
	})
	return groups, nil
}

// lineSet tracks distinct lines by xxh3 hash. Colliding hashes keep every
// distinct text, so equality is always decided on the text itself.
type lineSet map[uint64][]string

// add reports whether line was not yet present.
func (s lineSet) add(line string) bool {
	h := xxh3.HashString(line)
	for _, prev := range s[h] {
		if prev == line {
			return false
		}
	}
	s[h] = append(s[h], line)
	return true
}
