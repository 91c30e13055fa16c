package grouping

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Buckets maps every relevant Key to the ascending row indices containing it.
type Buckets map[Key][]int

// add appends row to k's bucket. A new bucket stores a copy of the value so
// the map does not pin the line the value was sliced from.
func (b Buckets) add(k Key, row int) {
	if rows, ok := b[k]; ok {
		b[k] = append(rows, row)
		return
	}
	b[Key{Col: k.Col, Value: strings.Clone(k.Value)}] = []int{row}
}

// Collection is the result of the row collection pass.
type Collection struct {
	Buckets Buckets
	// Rows is the number of relevant rows; indices are dense in [0, Rows).
	Rows int
}

// CollectRows reads r a second time. Every parsable line holding at least one
// key that survived table.Filter becomes a row: it receives the next dense
// index, that index is appended to the bucket of each of its relevant keys,
// and loc records how to find the line again. Other lines get no index.
func (pc Pass) CollectRows(ctx context.Context, r io.Reader, table FrequencyTable, loc Locator) (*Collection, error) {
	c := &Collection{Buckets: make(Buckets)}
	_, err := pc.scan(ctx, r, func(line string, off int64, fields []string, ok bool) {
		if !ok {
			return
		}
		relevant := false
		for i, v := range fields {
			if v == "" {
				continue
			}
			k := Key{Col: i, Value: v}
			if !table.Relevant(k) {
				continue
			}
			c.Buckets.add(k, c.Rows)
			relevant = true
		}
		if relevant {
			loc.Record(line, off)
			c.Rows++
		}
	})
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return c, nil
}
