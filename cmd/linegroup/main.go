// Command linegroup groups the lines of a ';'-delimited, '"'-quoted file that
// share a value in the same column, directly or through other lines, and
// writes the groups to output.txt.
//
// Usage:
//
//	linegroup [flags] <input_file>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"linegroup/internal/config"
	"linegroup/internal/metrics"
	"linegroup/internal/metrics/datadog"
	"linegroup/internal/metrics/prompush"

	// register all backends with the storage factory; the config picks one.
	_ "linegroup/internal/storage/all"
)

// cliFlags holds the parsed command line. Empty strings mean "not set".
type cliFlags struct {
	configPath     string
	output         string
	locator        string
	encoding       string
	dedupe         bool
	metricsBackend string
	pushgatewayURL string
	dogstatsdAddr  string
	storageKind    string
	storageDSN     string
	storageTable   string
	validate       bool
	verbose        bool
}

func newFlagSet(f *cliFlags, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("linegroup", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintln(out, "usage: linegroup [flags] <input_file>")
		fs.PrintDefaults()
	}

	fs.StringVar(&f.configPath, "config", "", "optional config JSON path")
	fs.StringVar(&f.output, "output", "", "report path (default "+config.DefaultOutput+")")
	fs.StringVar(&f.locator, "locator", "", "row locator: offset or memory")
	fs.StringVar(&f.encoding, "encoding", "", "input encoding label, e.g. windows-1251 (default utf-8)")
	fs.BoolVar(&f.dedupe, "dedupe", false, "collapse identical lines inside a group")
	fs.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, datadog (overrides env METRICS_BACKEND)")
	fs.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.StringVar(&f.dogstatsdAddr, "dogstatsd-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	fs.StringVar(&f.storageKind, "storage-kind", "", "export groups to a database: postgres, mssql, mysql, sqlite")
	fs.StringVar(&f.storageDSN, "storage-dsn", "", "database DSN for -storage-kind")
	fs.StringVar(&f.storageTable, "storage-table", "", "export table (default "+config.DefaultTable+")")
	fs.BoolVar(&f.validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&f.verbose, "v", false, "enable verbose logs")
	return fs
}

// Test seam for the metrics backend.
var initMetricsFn = initMetrics

type cliAction int

const (
	actionRun cliAction = iota
	actionUsage
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// parseCommandLine turns args into flags and a config. It returns actionUsage
// after printing usage to stdout for -h, a bad flag, zero positional
// arguments without a configured input, or more than one positional argument.
func parseCommandLine(args []string, stdout io.Writer, getenv func(string) string) (cliFlags, config.Config, cliAction, error) {
	var f cliFlags
	fs := newFlagSet(&f, stdout)
	if err := fs.Parse(args); err != nil {
		// The flag package has already printed the error and usage.
		return f, config.Config{}, actionUsage, nil
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return f, cfg, actionRun, err
	}

	// The input path comes from the single positional argument, or from the
	// config file when no argument is given.
	switch rest := fs.Args(); {
	case len(rest) == 1:
		cfg.Source.File.Path = rest[0]
	case len(rest) > 1 || cfg.Source.File.Path == "":
		fs.Usage()
		return f, cfg, actionUsage, nil
	}
	applyFlags(&cfg, f, getenv)
	return f, cfg, actionRun, nil
}

// realMain loads the configuration, optionally initializes a metrics backend,
// runs the grouping, and returns the process exit code. Deferred cleanup,
// including the metrics flush, runs before the code is returned.
func realMain(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	f, cfg, action, err := parseCommandLine(args, stdout, getenv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if action == actionUsage {
		return 0
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s\n", iss.Error())
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid")
		return 1
	}
	if f.validate {
		log.Printf("configuration is valid")
		return 0
	}

	if flush := initMetricsFn(cfg.Job, cfg.Metrics, f.verbose); flush != nil {
		defer flush()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, f.verbose, stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyFlags overlays explicitly set flags, then environment variables, on
// top of cfg. Flags win over env, env wins over the config file.
func applyFlags(cfg *config.Config, f cliFlags, getenv func(string) string) {
	if f.output != "" {
		cfg.Output.Path = f.output
	}
	if f.locator != "" {
		cfg.Grouping.Locator = f.locator
	}
	if f.encoding != "" {
		cfg.Grouping.Encoding = f.encoding
	}
	if f.dedupe {
		cfg.Grouping.DedupeLines = true
	}

	cfg.Metrics.Backend = firstNonEmpty(f.metricsBackend, getenv("METRICS_BACKEND"), cfg.Metrics.Backend)
	cfg.Metrics.PushgatewayURL = firstNonEmpty(f.pushgatewayURL, getenv("PUSHGATEWAY_URL"), cfg.Metrics.PushgatewayURL)
	cfg.Metrics.DogStatsdAddr = firstNonEmpty(f.dogstatsdAddr, getenv("DD_AGENT_ADDR"), cfg.Metrics.DogStatsdAddr)
	if cfg.Metrics.Backend == "pushgateway" && cfg.Metrics.PushgatewayURL == "" {
		cfg.Metrics.PushgatewayURL = "http://localhost:9091"
	}
	if cfg.Metrics.Backend == "datadog" && cfg.Metrics.DogStatsdAddr == "" {
		cfg.Metrics.DogStatsdAddr = "127.0.0.1:8125"
	}

	if f.storageKind != "" {
		cfg.Storage.Kind = f.storageKind
		cfg.Storage.DB.AutoCreateTable = true
	}
	if f.storageDSN != "" {
		cfg.Storage.DB.DSN = f.storageDSN
	}
	if f.storageTable != "" {
		cfg.Storage.DB.Table = f.storageTable
	}
}

// initMetrics installs the configured metrics backend and returns its flush
// function, or nil when metrics stay disabled.
func initMetrics(job string, m config.Metrics, verbose bool) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(job, m.PushgatewayURL)
		if err == nil {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", m.PushgatewayURL, m.Backend, job)
		}
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       m.DogStatsdAddr,
			Namespace:  "linegroup.",
			GlobalTags: []string{"job:" + job},
		})
		if err == nil {
			log.Printf("metrics: addr=%v, backend=%v, job_name=%v", m.DogStatsdAddr, m.Backend, job)
		}
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", m.Backend)
		}
		return nil
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
		return nil
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", m.Backend, err)
		return nil
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
