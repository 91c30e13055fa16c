// Package config defines the JSON-serializable configuration of a grouping
// run. Everything has a default, so an empty file (or no file at all) is a
// valid configuration once the input path is supplied on the command line.
//
// Example:
//
//	{
//	  "job":      "nightly-dedup",
//	  "source":   { "kind": "file", "file": { "path": "lng.txt" } },
//	  "parser":   { "kind": "quoted", "options": { "delimiter": ";", "quote": "\"" } },
//	  "grouping": { "locator": "offset", "encoding": "windows-1251" },
//	  "output":   { "path": "output.txt" },
//	  "metrics":  { "backend": "pushgateway", "pushgateway_url": "http://localhost:9091" },
//	  "storage":  { "kind": "sqlite", "db": { "dsn": "file:groups.db", "table": "line_groups", "auto_create_table": true } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Defaults applied by Default and Load.
const (
	DefaultJob       = "linegroup"
	DefaultOutput    = "output.txt"
	DefaultTable     = "line_groups"
	DefaultBatchSize = 5000
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Job labels metrics and log lines.
	Job string `json:"job"`

	Source   Source   `json:"source"`
	Parser   Parser   `json:"parser"`
	Grouping Grouping `json:"grouping"`
	Output   Output   `json:"output"`
	Metrics  Metrics  `json:"metrics"`

	// Storage optionally exports groups to a database. An empty kind disables
	// the export.
	Storage Storage `json:"storage"`
}

// Source identifies the input file.
type Source struct {
	// Kind selects the source implementation. Current value: "file".
	Kind string     `json:"kind"`
	File SourceFile `json:"file"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path"`
}

// Parser selects how lines are split into fields.
type Parser struct {
	// Kind selects the parser implementation. Current value: "quoted".
	Kind string `json:"kind"`

	// Options for the quoted parser:
	//   delimiter (string, one byte), quote (string, one byte),
	//   normalize_unicode (bool)
	Options Options `json:"options"`
}

// Grouping tunes the grouping passes.
type Grouping struct {
	// Locator is "offset" (re-read rows by byte offset) or "memory".
	Locator string `json:"locator"`
	// Encoding is an input encoding label such as "windows-1251"; empty means
	// UTF-8.
	Encoding string `json:"encoding"`
	// DedupeLines collapses identical lines inside a group.
	DedupeLines bool `json:"dedupe_lines"`
}

// Output names the report file.
type Output struct {
	Path string `json:"path"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DogStatsdAddr  string `json:"dogstatsd_addr"`
}

// Storage selects the database the groups are exported to.
type Storage struct {
	// Kind is one of "postgres", "mysql", "mssql", "sqlite", or empty.
	Kind string   `json:"kind"`
	DB   DBConfig `json:"db"`
}

// DBConfig configures the export table.
type DBConfig struct {
	DSN   string `json:"dsn"`
	Table string `json:"table"`

	// AutoCreateTable creates the table when it does not exist.
	AutoCreateTable bool `json:"auto_create_table"`

	// BatchSize is the number of member rows sent per CopyFrom call.
	BatchSize int `json:"batch_size"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Job:     DefaultJob,
		Source:  Source{Kind: "file"},
		Parser:  Parser{Kind: "quoted", Options: Options{}},
		Output:  Output{Path: DefaultOutput},
		Metrics: Metrics{Backend: "none"},
		Storage: Storage{DB: DBConfig{Table: DefaultTable, BatchSize: DefaultBatchSize}},
	}
}

// Load decodes the JSON file at path on top of Default. Fields absent from
// the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.Parser.Options == nil {
		cfg.Parser.Options = Options{}
	}
	return cfg, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Byte returns the single byte held by a one-character string value for key,
// or def if key is missing or empty. ok is false when the value is present
// but is not exactly one ASCII character.
func (o Options) Byte(key string, def byte) (b byte, ok bool) {
	v, present := o[key]
	if !present {
		return def, true
	}
	s, isString := v.(string)
	if !isString {
		return def, false
	}
	switch {
	case s == "":
		return def, true
	case len(s) == 1 && s[0] < 0x80:
		return s[0], true
	}
	return def, false
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
