package terminal

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// HighlightStyle is the chroma style used for code.
const HighlightStyle = "monokai"

// Highlight returns code with ANSI syntax colors. The language name is
// tried first, then content analysis. Without color the code is returned
// unchanged.
func Highlight(code, language string, color bool) (string, error) {
	if !color || code == "" {
		return code, nil
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iter, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, fmt.Errorf("tokenise %s: %w", language, err)
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	style := styles.Get(HighlightStyle)
	if style == nil {
		style = styles.Fallback
	}

	var b strings.Builder
	if err := formatter.Format(&b, style, iter); err != nil {
		return code, fmt.Errorf("format %s: %w", language, err)
	}
	return b.String(), nil
}

// Code prints a snippet with line numbers and highlighting.
func (w *Writer) Code(code, language string) {
	highlighted, err := Highlight(code, language, w.color)
	if err != nil {
		highlighted = code
	}
	lines := strings.Split(strings.TrimRight(highlighted, "\n"), "\n")
	gutter := len(fmt.Sprint(len(lines)))

	w.mu.Lock()
	defer w.mu.Unlock()
	for i, line := range lines {
		num := fmt.Sprintf("%*d", gutter, i+1)
		fmt.Fprintf(w.out, "%s │ %s\n", w.dimStyle.Render(num), line)
	}
}
