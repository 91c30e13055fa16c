// Package report renders grouping results as the plain-text report:
//
//	Found groups with more than one element: 2
//
//	Group 1
//	"a";"x"
//	"b";"x"
//
//	Group 2
//	...
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"linegroup/internal/grouping"
)

// DefaultPath is the report file name used when none is configured.
const DefaultPath = "output.txt"

const bufSize = 64 * 1024

// Write renders groups to w in the order given.
func Write(w io.Writer, groups []grouping.Group) error {
	bw := bufio.NewWriterSize(w, bufSize)
	if _, err := fmt.Fprintf(bw, "Found groups with more than one element: %d\n\n", len(groups)); err != nil {
		return err
	}
	for i, g := range groups {
		if _, err := fmt.Fprintf(bw, "Group %d\n", i+1); err != nil {
			return err
		}
		for _, line := range g.Lines {
			if _, err := bw.WriteString(line); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the report to path through a temporary file in the same
// directory that is renamed over path once complete, so path holds either the
// previous content or the full new report.
func WriteFile(path string, groups []grouping.Group) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	if err := Write(tmp, groups); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
