package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"linegroup/internal/grouping"
)

// DefaultBatchSize is used when Export is given a non-positive batch size.
const DefaultBatchSize = 5000

// CopyFn abstracts a backend's bulk insert capability; Repository.CopyFrom
// satisfies it.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// Export writes one row per group member, in report order, calling copyFn
// once per batch of batchSize rows. It returns the number of rows reported by
// copyFn and the first error encountered.
//
// Progress is logged on each successful flush.
func Export(ctx context.Context, groups []grouping.Group, batchSize int, copyFn CopyFn) (int64, error) {
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := copyFn(ctx, Columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Printf("export: copy failed after=%d total=%d err=%v", n, total, err)
			return err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Printf(
			"export batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
			batches, rps, n, total, now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total
		return nil
	}

	for gi, g := range groups {
		for mi, line := range g.Lines {
			row := int64(-1)
			if mi < len(g.Rows) {
				row = int64(g.Rows[mi])
			}
			batch = append(batch, []any{int64(gi + 1), int64(mi + 1), row, line})
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// Replace swaps the content of repo's table for groups in one transaction:
// afterwards the table holds either the complete new export or, on error, the
// previous one. Rows are written in batches of batchSize as in Export.
func Replace(ctx context.Context, repo Repository, groups []grouping.Group, batchSize int) (int64, error) {
	var n int64
	err := repo.ReplaceAll(ctx, func(copyFn CopyFn) error {
		var err error
		n, err = Export(ctx, groups, batchSize, copyFn)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
