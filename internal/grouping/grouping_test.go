package grouping

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"linegroup/internal/datasource/file"
)

func writeInput(t testing.TB, content string) *file.Local {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return file.NewLocal(path)
}

func groupLines(groups []Group) [][]string {
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Lines)
	}
	return out
}

func TestRunScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "shared_column_value",
			input: "\"a\";\"x\"\n\"b\";\"x\"\n\"c\";\"y\"\n",
			want:  [][]string{{`"a";"x"`, `"b";"x"`}},
		},
		{
			name:  "transitive_through_two_keys",
			input: "\"p\";\"q\"\n\"p\";\"r\"\n\"z\";\"r\"\n",
			want:  [][]string{{`"p";"q"`, `"p";"r"`, `"z";"r"`}},
		},
		{
			name:  "empty_input",
			input: "",
			want:  [][]string{},
		},
		{
			name:  "all_distinct",
			input: "\"1\";\"2\"\n\"3\";\"4\"\n\"5\";\"6\"\n",
			want:  [][]string{},
		},
		{
			name:  "unmatched_quote_skipped",
			input: "\"a\";\"x\"\n\"b\";\"x\n\"c\";\"x\"\n",
			want:  [][]string{{`"a";"x"`, `"c";"x"`}},
		},
		{
			name:  "same_value_in_different_columns_does_not_link",
			input: "\"100\";\"200\"\n\"200\";\"100\"\n",
			want:  [][]string{},
		},
		{
			name:  "empty_values_do_not_link",
			input: "\"\";\"1\"\n\"\";\"2\"\n",
			want:  [][]string{},
		},
		{
			name:  "no_trailing_newline",
			input: "\"a\";\"x\"\n\"b\";\"x\"",
			want:  [][]string{{`"a";"x"`, `"b";"x"`}},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			for _, kind := range []LocatorKind{LocatorOffset, LocatorMemory} {
				res, err := Run(context.Background(), writeInput(t, c.input), Options{Locator: kind})
				if err != nil {
					t.Fatalf("Run(%s) error = %v", kind, err)
				}
				if got := groupLines(res.Groups); !reflect.DeepEqual(got, c.want) {
					t.Fatalf("Run(%s) groups = %q; want %q", kind, got, c.want)
				}
				if res.Stats.Groups != len(c.want) {
					t.Fatalf("Run(%s) Stats.Groups = %d; want %d", kind, res.Stats.Groups, len(c.want))
				}
			}
		})
	}
}

func TestRunGroupOrdering(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`"a";"1"`,
		`"b";"2"`,
		`"a";"3"`,
		`"unique";"9"`,
		`"b";"4"`,
		`"c";"5"`,
		`"c";"6"`,
		`"c";"7"`,
	}, "\n") + "\n"

	res, err := Run(context.Background(), writeInput(t, input), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantLines := [][]string{
		{`"c";"5"`, `"c";"6"`, `"c";"7"`},
		{`"a";"1"`, `"a";"3"`},
		{`"b";"2"`, `"b";"4"`},
	}
	if got := groupLines(res.Groups); !reflect.DeepEqual(got, wantLines) {
		t.Fatalf("groups = %q; want %q", got, wantLines)
	}

	// Row indices skip the line with no relevant key.
	wantRows := [][]int{{4, 5, 6}, {0, 2}, {1, 3}}
	for i, g := range res.Groups {
		if !reflect.DeepEqual(g.Rows, wantRows[i]) {
			t.Fatalf("group %d rows = %v; want %v", i, g.Rows, wantRows[i])
		}
	}

	want := Stats{
		Lines:        8,
		DistinctKeys: 12,
		RelevantKeys: 3,
		RelevantRows: 7,
		Groups:       3,
		GroupedLines: 7,
	}
	if res.Stats != want {
		t.Fatalf("stats = %+v; want %+v", res.Stats, want)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString(`"k`)
		b.WriteString(string(rune('a' + i%7)))
		b.WriteString(`";"v`)
		b.WriteString(string(rune('a' + i%11)))
		b.WriteString("\"\n")
	}
	src := writeInput(t, b.String())

	first, err := Run(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := Run(context.Background(), src, Options{})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !reflect.DeepEqual(first.Groups, again.Groups) {
			t.Fatal("repeated runs produced different groups")
		}
	}
}

func TestRunMalformedLinesDoNotChangeGroups(t *testing.T) {
	t.Parallel()

	clean := "\"1\";\"x\"\n\"2\";\"y\"\n\"3\";\"x\"\n\"2\";\"z\"\n"
	dirty := "garbage\n\"1\";\"x\"\n\"x\";;\"x\"\n\"2\";\"y\"\n\"3\";\"x\"\n\"x\n\"2\";\"z\"\n\"x\";\"1\"x\n"

	want, err := Run(context.Background(), writeInput(t, clean), Options{})
	if err != nil {
		t.Fatalf("Run(clean) error = %v", err)
	}
	got, err := Run(context.Background(), writeInput(t, dirty), Options{})
	if err != nil {
		t.Fatalf("Run(dirty) error = %v", err)
	}
	if !reflect.DeepEqual(got.Groups, want.Groups) {
		t.Fatalf("groups with malformed lines = %+v; want %+v", got.Groups, want.Groups)
	}
	if got.Stats.Malformed != 4 {
		t.Fatalf("Stats.Malformed = %d; want 4", got.Stats.Malformed)
	}
}

func TestRunCRLF(t *testing.T) {
	t.Parallel()

	input := "\"a\";\"x\"\r\n\"q\";\"w\"\r\n\"b\";\"x\"\r\n\"c\";\"x\""
	want := [][]string{{`"a";"x"`, `"b";"x"`, `"c";"x"`}}

	for _, kind := range []LocatorKind{LocatorOffset, LocatorMemory} {
		res, err := Run(context.Background(), writeInput(t, input), Options{Locator: kind})
		if err != nil {
			t.Fatalf("Run(%s) error = %v", kind, err)
		}
		if got := groupLines(res.Groups); !reflect.DeepEqual(got, want) {
			t.Fatalf("Run(%s) groups = %q; want %q", kind, got, want)
		}
	}
}

func TestRunMixedTerminators(t *testing.T) {
	t.Parallel()

	input := "\"a\";\"x\"\n\"b\";\"x\"\r\n\"q\";\"w\"\n\"c\";\"x\"\n"
	want := [][]string{{`"a";"x"`, `"b";"x"`, `"c";"x"`}}

	for _, kind := range []LocatorKind{LocatorOffset, LocatorMemory} {
		res, err := Run(context.Background(), writeInput(t, input), Options{Locator: kind})
		if err != nil {
			t.Fatalf("Run(%s) error = %v", kind, err)
		}
		if got := groupLines(res.Groups); !reflect.DeepEqual(got, want) {
			t.Fatalf("Run(%s) groups = %q; want %q", kind, got, want)
		}
		if res.Stats.Malformed != 0 || res.Stats.MixedTerminators != 1 {
			t.Fatalf("Run(%s) stats = %+v; want Malformed=0 MixedTerminators=1", kind, res.Stats)
		}
	}
}

// closureGroups computes the expected groups by brute force: two parsable
// lines are adjacent when they share a non-empty value in the same column,
// and groups are the connected components of at least two lines, members in
// input order.
func closureGroups(lines []string, fields [][]string) [][]string {
	n := len(lines)
	adjacent := func(i, j int) bool {
		if fields[i] == nil || fields[j] == nil {
			return false
		}
		for c := 0; c < len(fields[i]) && c < len(fields[j]); c++ {
			if fields[i][c] != "" && fields[i][c] == fields[j][c] {
				return true
			}
		}
		return false
	}

	comp := make([]int, n)
	for i := range comp {
		comp[i] = -1
	}
	var out [][]string
	for start := 0; start < n; start++ {
		if comp[start] >= 0 {
			continue
		}
		comp[start] = start
		members := []int{start}
		for k := 0; k < len(members); k++ {
			for j := 0; j < n; j++ {
				if comp[j] < 0 && adjacent(members[k], j) {
					comp[j] = start
					members = append(members, j)
				}
			}
		}
		if len(members) < 2 {
			continue
		}
		sort.Ints(members)
		g := make([]string, len(members))
		for i, m := range members {
			g[i] = lines[m]
		}
		out = append(out, g)
	}
	return out
}

func canonicalGroups(groups [][]string) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = strings.Join(g, "\n")
	}
	sort.Strings(out)
	return out
}

// Every emitted group must be exactly a connected component of the
// shared-value relation, and every such component must be emitted.
func TestRunMatchesBruteForceClosure(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(20261019))
	values := []string{"", "p", "q", "r", "s", "t"}

	for iter := 0; iter < 300; iter++ {
		nLines := 1 + rng.Intn(14)
		lines := make([]string, 0, nLines)
		fields := make([][]string, 0, nLines)
		for i := 0; i < nLines; i++ {
			if rng.Intn(8) == 0 {
				lines = append(lines, `"broken;"x"`)
				fields = append(fields, nil)
				continue
			}
			f := make([]string, 1+rng.Intn(3))
			parts := make([]string, len(f))
			for c := range f {
				f[c] = values[rng.Intn(len(values))]
				parts[c] = `"` + f[c] + `"`
			}
			lines = append(lines, strings.Join(parts, ";"))
			fields = append(fields, f)
		}

		res, err := Run(context.Background(), writeInput(t, strings.Join(lines, "\n")+"\n"), Options{})
		if err != nil {
			t.Fatalf("iteration %d: Run error = %v", iter, err)
		}
		for i := 1; i < len(res.Groups); i++ {
			if res.Groups[i].Len() > res.Groups[i-1].Len() {
				t.Fatalf("iteration %d: group %d larger than group %d", iter, i, i-1)
			}
		}
		for _, g := range res.Groups {
			if !sort.IntsAreSorted(g.Rows) {
				t.Fatalf("iteration %d: rows %v not ascending", iter, g.Rows)
			}
		}

		got := canonicalGroups(groupLines(res.Groups))
		want := canonicalGroups(closureGroups(lines, fields))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("iteration %d: input\n%s\ngroups = %q\nwant %q",
				iter, strings.Join(lines, "\n"), got, want)
		}
	}
}

func TestRunLocatorsAgree(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 5000; i++ {
		switch i % 5 {
		case 0:
			b.WriteString(`"bad` + "\n")
		default:
			b.WriteString(`"` + strings.Repeat("x", i%37) + `";"` + string(rune('A'+i%13)) + `";"` + string(rune('a'+i%17)) + "\"\n")
		}
	}
	src := writeInput(t, b.String())

	byOffset, err := Run(context.Background(), src, Options{Locator: LocatorOffset})
	if err != nil {
		t.Fatalf("Run(offset) error = %v", err)
	}
	inMemory, err := Run(context.Background(), src, Options{Locator: LocatorMemory})
	if err != nil {
		t.Fatalf("Run(memory) error = %v", err)
	}
	if !reflect.DeepEqual(byOffset, inMemory) {
		t.Fatal("offset and memory locators produced different results")
	}
}

func TestRunDedupeLines(t *testing.T) {
	t.Parallel()

	input := "\"a\";\"x\"\n\"a\";\"x\"\n\"b\";\"x\"\n\"q\";\"w\"\n\"q\";\"w\"\n"

	res, err := Run(context.Background(), writeInput(t, input), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := [][]string{{`"a";"x"`, `"a";"x"`, `"b";"x"`}, {`"q";"w"`, `"q";"w"`}}
	if got := groupLines(res.Groups); !reflect.DeepEqual(got, want) {
		t.Fatalf("groups = %q; want %q", got, want)
	}

	res, err = Run(context.Background(), writeInput(t, input), Options{DedupeLines: true})
	if err != nil {
		t.Fatalf("Run(dedupe) error = %v", err)
	}
	want = [][]string{{`"a";"x"`, `"b";"x"`}}
	if got := groupLines(res.Groups); !reflect.DeepEqual(got, want) {
		t.Fatalf("dedupe groups = %q; want %q", got, want)
	}
}

func TestRunEncoding(t *testing.T) {
	t.Parallel()

	utf8Input := "\"Привет\";\"ключ\"\n\"Мир\";\"ключ\"\n"
	raw, err := charmap.Windows1251.NewEncoder().String(utf8Input)
	if err != nil {
		t.Fatalf("encode input: %v", err)
	}

	res, err := Run(context.Background(), writeInput(t, raw), Options{Encoding: charmap.Windows1251})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := [][]string{{`"Привет";"ключ"`, `"Мир";"ключ"`}}
	if got := groupLines(res.Groups); !reflect.DeepEqual(got, want) {
		t.Fatalf("groups = %q; want %q", got, want)
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	if _, err := Run(context.Background(), nil, Options{}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Run(nil) error = %v; want ErrNoSource", err)
	}

	missing := file.NewLocal(filepath.Join(t.TempDir(), "missing.txt"))
	_, err := Run(context.Background(), missing, Options{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Run(missing) error = %v; want os.ErrNotExist", err)
	}
	if !strings.HasPrefix(err.Error(), PhaseCount+": ") {
		t.Fatalf("Run(missing) error = %q; want %q prefix", err, PhaseCount)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, writeInput(t, "\"a\"\n\"a\"\n"), Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run(canceled) error = %v; want context.Canceled", err)
	}
}

func BenchmarkRun(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 20000; i++ {
		sb.WriteString(`"` + string(rune('a'+i%26)) + `";"` + strings.Repeat("v", i%50) + `";"` + string(rune('A'+i%19)) + "\"\n")
	}
	src := writeInput(b, sb.String())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Run(context.Background(), src, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
