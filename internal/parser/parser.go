// Package parser defines the contract shared by line parsers.
package parser

// Parser turns one physical line (without its terminator) into ordered field
// values. ok is false when the line does not follow the parser's grammar;
// callers skip such lines.
type Parser interface {
	Parse(line string) (fields []string, ok bool)
}
