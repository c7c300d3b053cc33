package terminal

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const columnGap = 2

// Label turns an identifier such as "security_score" into "Security Score".
func Label(key string) string {
	key = strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(key))
	return cases.Title(language.English, cases.NoLower).String(key)
}

func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}

func padRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// FitColumns computes column widths that fit within total. Columns keep
// their natural width when everything fits; otherwise the widest columns
// are shrunk first, never below minWidth.
func FitColumns(natural []int, total, minWidth int) []int {
	widths := append([]int(nil), natural...)
	if len(widths) == 0 {
		return widths
	}
	budget := total - columnGap*(len(widths)-1)
	for {
		sum := 0
		widest := -1
		for i, w := range widths {
			sum += w
			if w > minWidth && (widest < 0 || w > widths[widest]) {
				widest = i
			}
		}
		if sum <= budget || widest < 0 {
			return widths
		}
		widths[widest] = max(minWidth, widths[widest]-(sum-budget))
	}
}

// FormatTable lays out rows under headers within width columns. Cells
// that do not fit are truncated with an ellipsis. Headers are passed
// through Label.
func FormatTable(headers []string, rows [][]string, width int) string {
	cols := len(headers)
	natural := make([]int, cols)
	labels := make([]string, cols)
	for i, h := range headers {
		labels[i] = Label(h)
		natural[i] = displayWidth(labels[i])
	}
	for _, row := range rows {
		for i := 0; i < cols && i < len(row); i++ {
			natural[i] = max(natural[i], displayWidth(cellText(row[i])))
		}
	}
	widths := FitColumns(natural, width, 4)

	var b strings.Builder
	writeRow := func(cells []string) {
		parts := make([]string, cols)
		for i := range cols {
			text := ""
			if i < len(cells) {
				text = cellText(cells[i])
			}
			text = runewidth.Truncate(text, widths[i], "…")
			if i < cols-1 {
				text = padRight(text, widths[i])
			}
			parts[i] = text
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, strings.Repeat(" ", columnGap)), " "))
		b.WriteString("\n")
	}

	writeRow(labels)
	rule := make([]string, cols)
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w)
	}
	b.WriteString(strings.Join(rule, strings.Repeat(" ", columnGap)))
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

func cellText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Table prints rows under headers, fitted to the writer's width.
func (w *Writer) Table(headers []string, rows [][]string) {
	out := FormatTable(headers, rows, w.width)
	w.mu.Lock()
	defer w.mu.Unlock()

	lines := strings.SplitAfterN(out, "\n", 3)
	if len(lines) < 2 {
		fmt.Fprint(w.out, out)
		return
	}
	fmt.Fprint(w.out, w.boldStyle.Render(strings.TrimSuffix(lines[0], "\n"))+"\n")
	fmt.Fprint(w.out, w.dimStyle.Render(strings.TrimSuffix(lines[1], "\n"))+"\n")
	if len(lines) == 3 {
		fmt.Fprint(w.out, lines[2])
	}
}
