package terminal

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"security_score": "Security Score",
		"full-name":      "Full Name",
		"URL":            "URL",
		" updated ":      "Updated",
	}
	for in, want := range tests {
		if got := Label(in); got != want {
			t.Errorf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFitColumns(t *testing.T) {
	tests := []struct {
		name    string
		natural []int
		total   int
		want    []int
	}{
		{"fits", []int{5, 10}, 40, []int{5, 10}},
		{"shrinks widest", []int{5, 30}, 20, []int{5, 13}},
		{"respects minimum", []int{10, 10}, 6, []int{4, 4}},
		{"empty", nil, 10, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitColumns(tt.natural, tt.total, 4)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FitColumns(%v, %d) = %v, want %v", tt.natural, tt.total, got, tt.want)
			}
		})
	}
}

func TestFormatTable(t *testing.T) {
	out := FormatTable(
		[]string{"repository", "language"},
		[][]string{{"acme/api", "Go"}, {"acme/web", "TypeScript"}},
		80,
	)
	want := "" +
		"Repository  Language\n" +
		"──────────  ──────────\n" +
		"acme/api    Go\n" +
		"acme/web    TypeScript\n"
	if out != want {
		t.Errorf("FormatTable =\n%s\nwant\n%s", out, want)
	}
}

func TestFormatTable_TruncatesToWidth(t *testing.T) {
	long := strings.Repeat("x", 60)
	out := FormatTable([]string{"name", "description"}, [][]string{{"api", long}}, 30)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if w := runewidth.StringWidth(line); w > 30 {
			t.Errorf("line %q is %d wide, want <= 30", line, w)
		}
	}
	if !strings.Contains(out, "…") {
		t.Errorf("expected ellipsis in %q", out)
	}
}

func TestFormatTable_WideRunesAndShortRows(t *testing.T) {
	out := FormatTable([]string{"name", "owner"}, [][]string{{"漢字"}, {"ab", "me"}}, 80)
	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[2], "漢字") {
		t.Errorf("row = %q", lines[2])
	}
	if lines[3] != "ab    me" {
		t.Errorf("row = %q, want %q", lines[3], "ab    me")
	}
}

func TestFormatTable_CollapsesWhitespace(t *testing.T) {
	out := FormatTable([]string{"d"}, [][]string{{"line one\nline   two"}}, 80)
	if !strings.Contains(out, "line one line two") {
		t.Errorf("cell whitespace not collapsed: %q", out)
	}
}

func TestWriterTable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf, Options{Width: 80})

	w.Table([]string{"repository"}, [][]string{{"acme/api"}})
	want := "Repository\n──────────\nacme/api\n"
	if got := buf.String(); got != want {
		t.Errorf("Table = %q, want %q", got, want)
	}
}
