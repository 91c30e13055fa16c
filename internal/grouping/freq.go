package grouping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"

	"linegroup/internal/lineio"
	"linegroup/internal/parser"
)

// cancelCheckEvery is how many lines a pass reads between context checks.
const cancelCheckEvery = 4096

// Key identifies a column value independently of the row it appears in.
// Two rows sharing a Key are linked.
type Key struct {
	Col   int
	Value string
}

// FrequencyTable counts occurrences of every Key across the input.
type FrequencyTable map[Key]int

// add increments k, copying the value on first insertion so the table does
// not pin the whole line it was sliced from.
func (t FrequencyTable) add(k Key) {
	if n, ok := t[k]; ok {
		t[k] = n + 1
		return
	}
	t[Key{Col: k.Col, Value: strings.Clone(k.Value)}] = 1
}

// Filter removes every key seen at most once. The remaining keys are exactly
// those able to link two or more rows.
func (t FrequencyTable) Filter() {
	for k, n := range t {
		if n <= 1 {
			delete(t, k)
		}
	}
}

// Relevant reports whether k survived Filter.
func (t FrequencyTable) Relevant(k Key) bool {
	_, ok := t[k]
	return ok
}

// Pass carries what every sequential pass over the input needs to split it
// into lines and fields.
type Pass struct {
	// TermLen is the line terminator length from lineio.DetectTerminator.
	TermLen int
	// Encoding decodes non-UTF-8 input; nil means UTF-8.
	Encoding encoding.Encoding
	Parser   parser.Parser
}

// scan feeds every line of r to fn with its starting offset. fields is nil
// for malformed lines. It returns the number of lines whose terminator
// differs from pc.TermLen.
func (pc Pass) scan(ctx context.Context, r io.Reader, fn func(line string, off int64, fields []string, ok bool)) (int, error) {
	lr := lineio.NewReader(r, pc.TermLen, pc.Encoding)
	for n := 0; ; n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return lr.MixedTerminators(), err
			}
		}
		line, off, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return lr.MixedTerminators(), nil
		}
		if err != nil {
			return lr.MixedTerminators(), err
		}
		fields, ok := pc.Parser.Parse(line)
		fn(line, off, fields, ok)
	}
}

// CountFrequencies reads r once and counts every non-empty (column, value)
// pair of every parsable line. Malformed lines contribute nothing.
func (pc Pass) CountFrequencies(ctx context.Context, r io.Reader) (FrequencyTable, Stats, error) {
	table := make(FrequencyTable)
	var st Stats
	mixed, err := pc.scan(ctx, r, func(_ string, _ int64, fields []string, ok bool) {
		st.Lines++
		if !ok {
			st.Malformed++
			return
		}
		for i, v := range fields {
			if v != "" {
				table.add(Key{Col: i, Value: v})
			}
		}
	})
	if err != nil {
		return nil, st, fmt.Errorf("count frequencies: %w", err)
	}
	st.DistinctKeys = len(table)
	st.MixedTerminators = mixed
	return table, st, nil
}
