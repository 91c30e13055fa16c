package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"linegroup/internal/config"
	"linegroup/internal/datasource"
	"linegroup/internal/datasource/file"
	"linegroup/internal/grouping"
	"linegroup/internal/lineio"
	"linegroup/internal/parser/quoted"
	"linegroup/internal/report"
	"linegroup/internal/storage"
)

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = storage.New

	openSourceFn = func(cfg config.Config) datasource.Source {
		return file.NewLocal(cfg.Source.File.Path)
	}

	nowFn = time.Now
)

// run executes one grouping: read the input, write the report, and export
// the groups when a storage kind is configured. The console summary goes to
// stdout.
func run(ctx context.Context, cfg config.Config, verbose bool, stdout io.Writer) error {
	start := nowFn()

	opt, err := groupingOptions(cfg, verbose)
	if err != nil {
		return err
	}
	if verbose {
		log.Printf("linegroup: source=%s locator=%s encoding=%q storage=%q",
			cfg.Source.File.Path, opt.Locator, cfg.Grouping.Encoding, cfg.Storage.Kind)
	}

	res, err := grouping.Run(ctx, openSourceFn(cfg), opt)
	if err != nil {
		return err
	}

	outPath := cfg.Output.Path
	if outPath == "" {
		outPath = report.DefaultPath
	}
	if err := report.WriteFile(outPath, res.Groups); err != nil {
		return err
	}

	if cfg.Storage.Kind != "" {
		if err := exportGroups(ctx, cfg, res.Groups); err != nil {
			return err
		}
	}

	if verbose {
		logSummary(res.Stats)
	}

	abs, err := filepath.Abs(outPath)
	if err != nil {
		abs = outPath
	}
	fmt.Fprintf(stdout, "Groups with more than one element: %d\n", len(res.Groups))
	fmt.Fprintf(stdout, "Elapsed: %s\n", nowFn().Sub(start).Truncate(time.Millisecond))
	fmt.Fprintf(stdout, "Output: %s\n", abs)
	return nil
}

// groupingOptions translates the config into grouping.Options. Config
// values are expected to have passed config.Validate.
func groupingOptions(cfg config.Config, verbose bool) (grouping.Options, error) {
	loc, err := grouping.ParseLocatorKind(cfg.Grouping.Locator)
	if err != nil {
		return grouping.Options{}, err
	}
	enc, err := lineio.LookupEncoding(cfg.Grouping.Encoding)
	if err != nil {
		return grouping.Options{}, err
	}

	po := cfg.Parser.Options
	var qo quoted.Options
	if b, ok := po.Byte("delimiter", quoted.DefaultDelimiter); ok {
		qo.Delimiter = b
	}
	if b, ok := po.Byte("quote", quoted.DefaultQuote); ok {
		qo.Quote = b
	}
	qo.NormalizeUnicode = po.Bool("normalize_unicode", false)

	job := cfg.Job
	if job == "" {
		job = config.DefaultJob
	}
	return grouping.Options{
		Parser:      quoted.New(qo),
		Encoding:    enc,
		Locator:     loc,
		DedupeLines: cfg.Grouping.DedupeLines,
		Job:         job,
		Verbose:     verbose,
	}, nil
}

// exportGroups replaces the content of the configured table with every group
// member, creating the table first when auto_create_table is set.
func exportGroups(ctx context.Context, cfg config.Config, groups []grouping.Group) error {
	scfg := storage.Config{
		Kind:  cfg.Storage.Kind,
		DSN:   cfg.Storage.DB.DSN,
		Table: cfg.Storage.DB.Table,
	}
	repo, err := newRepositoryFn(ctx, scfg)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	if cfg.Storage.DB.AutoCreateTable {
		log.Printf("auto-create table enabled for %s", scfg.Table)
		if err := storage.EnsureTable(ctx, scfg, repo); err != nil {
			return err
		}
	}

	n, err := storage.Replace(ctx, repo, groups, cfg.Storage.DB.BatchSize)
	if err != nil {
		return fmt.Errorf("export groups: %w", err)
	}
	log.Printf("exported %d rows to %s (%s)", n, scfg.Table, scfg.Kind)
	return nil
}

func logSummary(s grouping.Stats) {
	log.Printf(
		"summary: lines=%d malformed=%d mixed_terminators=%d distinct_keys=%d relevant_keys=%d relevant_rows=%d groups=%d grouped_lines=%d",
		s.Lines,
		s.Malformed,
		s.MixedTerminators,
		s.DistinctKeys,
		s.RelevantKeys,
		s.RelevantRows,
		s.Groups,
		s.GroupedLines,
	)
}
