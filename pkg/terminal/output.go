// Package terminal prints vulnpilot results: markdown answers, highlighted
// code, tables and status lines. Color is dropped when the output is not a
// terminal or when the caller asks for plain text.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultWidth is used when the output has no terminal size.
const DefaultWidth = 80

// Options configures a Writer.
type Options struct {
	// NoColor forces plain output even on a terminal.
	NoColor bool
	// Width overrides the detected terminal width.
	Width int
	// In is read by Prompt and Confirm. Defaults to stdin.
	In io.Reader
}

// Writer provides styled terminal output with markdown rendering.
type Writer struct {
	out      io.Writer
	in       *bufio.Reader
	color    bool
	width    int
	renderer *glamour.TermRenderer
	mu       sync.Mutex

	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	successStyle lipgloss.Style
	infoStyle    lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	headerStyle  lipgloss.Style
	boxStyle     lipgloss.Style
}

// New returns a Writer on stdout.
func New(opts Options) *Writer {
	return NewWithOutput(os.Stdout, opts)
}

// NewWithOutput returns a Writer on out. Color is only used when out is a
// terminal file and NoColor is unset.
func NewWithOutput(out io.Writer, opts Options) *Writer {
	color := !opts.NoColor && IsTerminal(out)
	width := opts.Width
	if width <= 0 {
		width = terminalWidth(out)
	}

	profile := termenv.Ascii
	if color {
		profile = termenv.NewOutput(out).EnvColorProfile()
	}
	lg := lipgloss.NewRenderer(out, termenv.WithProfile(profile))

	style := glamour.WithStandardStyle("notty")
	if color {
		style = glamour.WithAutoStyle()
	}
	renderer, _ := glamour.NewTermRenderer(
		style,
		glamour.WithColorProfile(profile),
		glamour.WithWordWrap(min(width, 100)),
	)

	in := opts.In
	if in == nil {
		in = os.Stdin
	}

	return &Writer{
		out:      out,
		in:       bufio.NewReader(in),
		color:    color,
		width:    width,
		renderer: renderer,

		errorStyle: lg.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),
		warnStyle: lg.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),
		successStyle: lg.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		infoStyle: lg.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
		dimStyle: lg.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		boldStyle: lg.NewStyle().Bold(true),
		headerStyle: lg.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}),
		boxStyle: lg.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}).
			Padding(0, 1),
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// Color reports whether the writer emits ANSI styling.
func (w *Writer) Color() bool { return w.color }

// Width is the column budget for tables and boxes.
func (w *Writer) Width() int { return w.width }

// Out returns the underlying writer.
func (w *Writer) Out() io.Writer { return w.out }

// Print writes text to the terminal.
func (w *Writer) Print(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

// Println writes text with a newline.
func (w *Writer) Println(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Markdown renders markdown, falling back to the raw text when rendering
// fails.
func (w *Writer) Markdown(md string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.renderer == nil {
		fmt.Fprintln(w.out, md)
		return nil
	}
	rendered, err := w.renderer.Render(md)
	if err != nil {
		fmt.Fprintln(w.out, md)
		return err
	}
	fmt.Fprint(w.out, rendered)
	return nil
}

func (w *Writer) styled(style lipgloss.Style, prefix, format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, style.Render(prefix+fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (w *Writer) Error(format string, args ...any) {
	w.styled(w.errorStyle, "error: ", format, args...)
}

// Warn prints a warning line.
func (w *Writer) Warn(format string, args ...any) {
	w.styled(w.warnStyle, "warning: ", format, args...)
}

// Success prints a success line.
func (w *Writer) Success(format string, args ...any) {
	w.styled(w.successStyle, "✓ ", format, args...)
}

func (w *Writer) Info(format string, args ...any) { w.styled(w.infoStyle, "", format, args...) }
func (w *Writer) Dim(format string, args ...any)  { w.styled(w.dimStyle, "", format, args...) }
func (w *Writer) Bold(format string, args ...any) { w.styled(w.boldStyle, "", format, args...) }

// Header prints a section header.
func (w *Writer) Header(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.headerStyle.Render(title))
}

// Newline prints a blank line.
func (w *Writer) Newline() {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out)
}

// Divider prints a horizontal rule.
func (w *Writer) Divider() {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.dimStyle.Render(strings.Repeat("─", min(w.width, 60))))
}

// Box renders content in a rounded box.
func (w *Writer) Box(title, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	body := content
	if title != "" {
		body = w.boldStyle.Render(title) + "\n\n" + content
	}
	boxWidth := min(w.width-4, 80)
	fmt.Fprintln(w.out, w.boxStyle.Width(boxWidth).Render(body))
}

// List prints a bulleted list.
func (w *Writer) List(items []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, item := range items {
		fmt.Fprintln(w.out, "  • "+item)
	}
}

// KeyValue prints aligned "key: value" lines in the given order.
func (w *Writer) KeyValue(pairs [][2]string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	keyWidth := 0
	for _, p := range pairs {
		keyWidth = max(keyWidth, displayWidth(p[0]))
	}
	for _, p := range pairs {
		pad := strings.Repeat(" ", keyWidth-displayWidth(p[0]))
		fmt.Fprintf(w.out, "%s%s %s\n", w.dimStyle.Render(p[0]+":"), pad, p[1])
	}
}

// Score prints a security score with a color band: below 50 is an error,
// below 80 a warning.
func (w *Writer) Score(label string, score int) {
	style := w.successStyle
	switch {
	case score < 50:
		style = w.errorStyle
	case score < 80:
		style = w.warnStyle
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s %s\n", label, style.Render(fmt.Sprintf("%d/100", score)))
}

// Stream writes a chunk without a newline.
func (w *Writer) Stream(chunk string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprint(w.out, chunk)
}

// Prompt asks for one line of input. It returns defaultValue for an empty
// line and io.EOF when input is exhausted.
func (w *Writer) Prompt(prompt, defaultValue string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if defaultValue != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, defaultValue)
	} else if prompt != "" {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}

	line, err := w.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultValue, nil
	}
	return line, nil
}

// Confirm asks a yes/no question. Any read failure counts as the default.
func (w *Writer) Confirm(prompt string, defaultYes bool) bool {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	answer, err := w.Prompt(fmt.Sprintf("%s [%s]", prompt, hint), "")
	if err != nil || answer == "" {
		return defaultYes
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
