// Package quoted parses lines made of quote-enclosed values separated by a
// single delimiter byte, e.g.
//
//	"111";"123";"222"
//	"200";"123";"100"
//
// The grammar is strict: every token must open with the quote character and
// close with it before the line ends. There is no escaping, so a value can
// never contain the quote character. Empty positions are written as "" and
// yield an empty field; a bare delimiter without a quoted token is malformed.
//
// Scanning rules, in order:
//   - at the current position the byte must be the quote, otherwise the line
//     is malformed;
//   - the value runs to the next quote; no closing quote means malformed;
//   - after the closing quote one delimiter, if present, is consumed.
//
// So the empty line has zero fields, `"a";` has exactly one field (the
// trailing delimiter produces no field), and `"a";;"b"` is malformed.
package quoted

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"linegroup/internal/parser"
)

const (
	// DefaultDelimiter separates tokens.
	DefaultDelimiter = ';'
	// DefaultQuote encloses every value.
	DefaultQuote = '"'
)

// Options configures a Parser. Zero values select the defaults.
type Options struct {
	Delimiter byte
	Quote     byte

	// NormalizeUnicode rewrites every field to Unicode NFC so that composed
	// and decomposed spellings of the same text compare equal.
	NormalizeUnicode bool
}

// Parser is a strict quoted-field parser. It holds no per-line state and is
// safe to reuse across lines.
type Parser struct {
	delim byte
	quote byte
	nfc   bool
}

var _ parser.Parser = (*Parser)(nil)

// New returns a Parser for opt.
func New(opt Options) *Parser {
	p := &Parser{delim: opt.Delimiter, quote: opt.Quote, nfc: opt.NormalizeUnicode}
	if p.delim == 0 {
		p.delim = DefaultDelimiter
	}
	if p.quote == 0 {
		p.quote = DefaultQuote
	}
	return p
}

// Parse splits line into field values. ok is false for malformed lines.
func (p *Parser) Parse(line string) ([]string, bool) {
	fields, ok := Split(line, p.delim, p.quote)
	if !ok || !p.nfc {
		return fields, ok
	}
	for i, v := range fields {
		if !norm.NFC.IsNormalString(v) {
			fields[i] = norm.NFC.String(v)
		}
	}
	return fields, true
}

// Split applies the strict grammar with explicit delimiter and quote bytes.
// The returned values are substrings of line.
func Split(line string, delim, quote byte) ([]string, bool) {
	if line == "" {
		return nil, true
	}
	fields := make([]string, 0, strings.Count(line, string(delim))+1)
	i, n := 0, len(line)
	for i < n {
		if line[i] != quote {
			return nil, false
		}
		end := strings.IndexByte(line[i+1:], quote)
		if end < 0 {
			return nil, false
		}
		j := i + 1 + end
		fields = append(fields, line[i+1:j])
		i = j + 1
		if i < n && line[i] == delim {
			i++
		}
	}
	return fields, true
}
