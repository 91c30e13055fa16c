package config

import (
	"fmt"
	"net/url"
	"strings"

	"linegroup/internal/grouping"
	"linegroup/internal/lineio"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.db.dsn",
// "parser.options.delimiter"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of c. It does not mutate c; callers
// decide how to surface warnings.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  fmt.Sprintf("job is empty; metrics will be labeled %q", DefaultJob),
		})
	}
	issues = append(issues, validateSource(c.Source)...)
	issues = append(issues, validateParser(c.Parser)...)
	issues = append(issues, validateGrouping(c.Grouping)...)
	if strings.TrimSpace(c.Output.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.path",
			Message:  "output.path must not be empty",
		})
	}
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateStorage(c.Storage)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unsupported source kind %q", s.Kind),
		})
	}

	return issues
}

var knownParserOptions = map[string]struct{}{
	"delimiter":         {},
	"quote":             {},
	"normalize_unicode": {},
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if p.Kind != "" && p.Kind != "quoted" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only \"quoted\" is available", p.Kind),
		})
		return issues
	}

	delim, okDelim := p.Options.Byte("delimiter", ';')
	if !okDelim {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.delimiter",
			Message:  "delimiter must be a single ASCII character",
		})
	}
	quote, okQuote := p.Options.Byte("quote", '"')
	if !okQuote {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.quote",
			Message:  "quote must be a single ASCII character",
		})
	}
	if okDelim && okQuote && delim == quote {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options",
			Message:  fmt.Sprintf("delimiter and quote must differ (both %q)", delim),
		})
	}
	for k := range p.Options {
		if _, ok := knownParserOptions[k]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "parser.options." + k,
				Message:  "unknown option is ignored",
			})
		}
	}

	return issues
}

func validateGrouping(g Grouping) []Issue {
	var issues []Issue

	if _, err := grouping.ParseLocatorKind(g.Locator); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "grouping.locator",
			Message:  err.Error(),
		})
	}
	if _, err := lineio.LookupEncoding(g.Encoding); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "grouping.encoding",
			Message:  err.Error(),
		})
	}

	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	switch m.Backend {
	case "", "none", "datadog":
	case "pushgateway":
		if m.PushgatewayURL != "" {
			if u, err := url.Parse(m.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "metrics.pushgateway_url",
					Message:  fmt.Sprintf("invalid Pushgateway URL %q", m.PushgatewayURL),
				})
			}
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		// Export disabled.
		return nil
	}

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	if db.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.batch_size",
			Message:  "batch_size must not be negative",
		})
	}

	return issues
}
