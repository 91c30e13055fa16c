// Package grouping clusters the lines of a delimited, quoted text file into
// groups of lines that share at least one column value.
//
// Two lines are linked when they hold the same non-empty value in the same
// column; groups are the connected components of that relation. A run makes
// three sequential passes over the input:
//
//  1. count:   frequency of every (column, value) pair; pairs seen once are
//     dropped because they cannot link anything.
//  2. collect: lines holding a surviving pair become rows with dense indices,
//     indexed by pair into buckets; a Locator remembers where each row is.
//  3. materialize: after union-find over the buckets, rows of multi-member
//     components are resolved back to text, by default with positioned
//     reads at the offsets recorded in pass 2.
//
// Only one pass touches the input at a time and each opens and closes its own
// handle.
package grouping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"golang.org/x/text/encoding"

	"linegroup/internal/datasource"
	"linegroup/internal/lineio"
	"linegroup/internal/metrics"
	"linegroup/internal/parser"
	"linegroup/internal/parser/quoted"
)

// ErrNoSource is returned by Run when no input source is given.
var ErrNoSource = errors.New("grouping: no input source")

// Phase names used for logging and metrics.
const (
	PhaseCount       = "count"
	PhaseCollect     = "collect"
	PhaseLink        = "link"
	PhaseMaterialize = "materialize"
)

// Options configures a run. The zero value groups UTF-8 input with the strict
// quoted parser and the offset locator.
type Options struct {
	// Parser splits lines into fields; nil selects quoted.New(quoted.Options{}).
	Parser parser.Parser
	// Encoding decodes non-UTF-8 input; nil means UTF-8.
	Encoding encoding.Encoding
	// Locator selects how rows are recovered; empty means LocatorOffset.
	Locator LocatorKind
	// DedupeLines drops repeated identical lines inside a group.
	DedupeLines bool
	// Job labels metrics.
	Job string
	// Verbose logs per-phase progress.
	Verbose bool
}

// Stats summarizes a run.
type Stats struct {
	Lines        int // physical lines read in the count pass
	Malformed    int // lines rejected by the parser
	DistinctKeys int // distinct (column, value) pairs
	RelevantKeys int // pairs seen more than once
	RelevantRows int // lines holding at least one relevant pair
	Groups       int // emitted groups
	GroupedLines int // lines across emitted groups

	// MixedTerminators counts lines ending in "\n" in a "\r\n" file or the
	// other way round. They are read like any other line.
	MixedTerminators int
}

// Result is the outcome of a run.
type Result struct {
	Groups []Group
	Stats  Stats
}

// Run executes all phases against src and returns the groups ordered by
// descending size.
func Run(ctx context.Context, src datasource.Source, opt Options) (*Result, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if opt.Parser == nil {
		opt.Parser = quoted.New(quoted.Options{})
	}
	if opt.Locator == "" {
		opt.Locator = LocatorOffset
	}

	r := &runner{src: src, opt: opt}
	return r.run(ctx)
}

type runner struct {
	src  datasource.Source
	opt  Options
	pass Pass
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	res := &Result{}

	var table FrequencyTable
	err := r.phase(ctx, PhaseCount, func(f datasource.File) error {
		termLen, err := lineio.DetectTerminator(io.NewSectionReader(f, 0, math.MaxInt64))
		if err != nil {
			return err
		}
		r.pass = Pass{TermLen: termLen, Encoding: r.opt.Encoding, Parser: r.opt.Parser}

		var st Stats
		table, st, err = r.pass.CountFrequencies(ctx, f)
		if err != nil {
			return err
		}
		table.Filter()
		res.Stats = st
		res.Stats.RelevantKeys = len(table)
		r.logf("count: lines=%d malformed=%d keys=%d relevant_keys=%d terminator=%d",
			st.Lines, st.Malformed, st.DistinctKeys, len(table), termLen)
		if st.MixedTerminators > 0 {
			r.logf("count: %d lines end with a terminator other than the detected %d-byte one",
				st.MixedTerminators, termLen)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordLines(r.opt.Job, "read", int64(res.Stats.Lines))
	metrics.RecordLines(r.opt.Job, "malformed", int64(res.Stats.Malformed))

	loc := NewLocator(r.opt.Locator, r.pass.Encoding)
	var coll *Collection
	err = r.phase(ctx, PhaseCollect, func(f datasource.File) error {
		var err error
		coll, err = r.pass.CollectRows(ctx, f, table, loc)
		if err != nil {
			return err
		}
		r.logf("collect: rows=%d buckets=%d locator=%s", coll.Rows, len(coll.Buckets), r.opt.Locator)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// The frequency table is not needed past this point.
	table = nil
	res.Stats.RelevantRows = coll.Rows
	metrics.RecordLines(r.opt.Job, "relevant", int64(coll.Rows))

	start := time.Now()
	comps := Link(coll.Rows, coll.Buckets).Components(2)
	coll = nil
	metrics.RecordPhase(r.opt.Job, PhaseLink, nil, time.Since(start))
	r.logf("link: components=%d in %s", len(comps), time.Since(start).Truncate(time.Millisecond))

	materialize := func(f datasource.File) error {
		var ra io.ReaderAt
		if f != nil {
			ra = f
		}
		groups, err := Materialize(ctx, comps, loc.Resolver(ra), r.opt.DedupeLines)
		if err != nil {
			return err
		}
		res.Groups = groups
		return nil
	}
	if loc.NeedsInput() {
		err = r.phase(ctx, PhaseMaterialize, materialize)
	} else {
		err = r.timed(PhaseMaterialize, func() error { return materialize(nil) })
	}
	if err != nil {
		return nil, err
	}

	res.Stats.Groups = len(res.Groups)
	for _, g := range res.Groups {
		res.Stats.GroupedLines += g.Len()
	}
	metrics.RecordLines(r.opt.Job, "grouped", int64(res.Stats.GroupedLines))
	metrics.RecordGroups(r.opt.Job, int64(res.Stats.Groups))
	r.logf("materialize: groups=%d grouped_lines=%d", res.Stats.Groups, res.Stats.GroupedLines)
	return res, nil
}

// phase opens the input, runs fn, and closes the input before returning.
func (r *runner) phase(ctx context.Context, name string, fn func(f datasource.File) error) error {
	return r.timed(name, func() (err error) {
		f, err := r.src.Open(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close %s: %w", r.src.Name(), cerr)
			}
		}()
		return fn(f)
	})
}

// timed runs fn and records its duration and outcome under name.
func (r *runner) timed(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordPhase(r.opt.Job, name, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if r.opt.Verbose {
		log.Printf("phase %s done in %s", name, time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}

func (r *runner) logf(format string, args ...any) {
	if r.opt.Verbose {
		log.Printf(format, args...)
	}
}
