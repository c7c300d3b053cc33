package terminal

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func newTestWriter(buf *bytes.Buffer) *Writer {
	return NewWithOutput(buf, Options{Width: 80, In: strings.NewReader("")})
}

func TestNewWithOutput_PlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf, Options{})
	if w.Color() {
		t.Error("a buffer should never get color")
	}
	if w.Width() != DefaultWidth {
		t.Errorf("Width() = %d, want %d", w.Width(), DefaultWidth)
	}
	if IsTerminal(&buf) {
		t.Error("IsTerminal(buffer) = true")
	}
}

func TestWriterPrint(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	w.Print("Hello %s", "World")
	if got := buf.String(); got != "Hello World" {
		t.Errorf("Print = %q, want 'Hello World'", got)
	}
}

func TestWriterPrintln(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	w.Println("Hello %s", "World")
	if got := buf.String(); got != "Hello World\n" {
		t.Errorf("Println = %q, want 'Hello World\\n'", got)
	}
}

func TestWriterStatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"error", func(w *Writer) { w.Error("request failed: %d", 500) }, "error: request failed: 500\n"},
		{"warn", func(w *Writer) { w.Warn("token expires soon") }, "warning: token expires soon\n"},
		{"success", func(w *Writer) { w.Success("signed in as %s", "alice") }, "✓ signed in as alice\n"},
		{"info", func(w *Writer) { w.Info("FYI") }, "FYI\n"},
		{"dim", func(w *Writer) { w.Dim("quiet") }, "quiet\n"},
		{"bold", func(w *Writer) { w.Bold("loud") }, "loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.write(newTestWriter(&buf))
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriterList(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	w.List([]string{"sql injection", "xss"})
	got := buf.String()
	if !strings.Contains(got, "• sql injection") || !strings.Contains(got, "• xss") {
		t.Errorf("List should contain bullet points, got %q", got)
	}
}

func TestWriterKeyValue(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	w.KeyValue([][2]string{{"user", "alice"}, {"expires", "never"}})
	want := "user:    alice\nexpires: never\n"
	if got := buf.String(); got != want {
		t.Errorf("KeyValue = %q, want %q", got, want)
	}
}

func TestWriterScore(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	w.Score("Security score:", 42)
	if got := buf.String(); got != "Security score: 42/100\n" {
		t.Errorf("Score = %q", got)
	}
}

func TestWriterStream(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	w.Stream("Hello")
	w.Stream(" World")
	w.Newline()

	if got := buf.String(); got != "Hello World\n" {
		t.Errorf("Stream = %q, want 'Hello World\\n'", got)
	}
}

func TestWriterMarkdown(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	if err := w.Markdown("# Findings\n\nThis is **bold** text."); err != nil {
		t.Fatalf("Markdown error: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "Findings") || !strings.Contains(got, "bold") {
		t.Errorf("Markdown lost content: %q", got)
	}
	if strings.Contains(got, "\x1b[") {
		t.Errorf("plain writer emitted ANSI codes: %q", got)
	}
}

func TestWriterDivider(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf, Options{Width: 20})

	w.Divider()
	if got := buf.String(); got != strings.Repeat("─", 20)+"\n" {
		t.Errorf("Divider = %q", got)
	}
}

func TestWriterBox(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	w.Box("Workflow", "3 nodes")
	got := buf.String()
	for _, want := range []string{"Workflow", "3 nodes", "╭", "╯"} {
		if !strings.Contains(got, want) {
			t.Errorf("Box output missing %q: %q", want, got)
		}
	}
}

func TestWriterPrompt(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf, Options{In: strings.NewReader("alice\n\nlast")})

	got, err := w.Prompt("User", "")
	if err != nil || got != "alice" {
		t.Fatalf("Prompt = %q, %v", got, err)
	}
	got, err = w.Prompt("Store", "file")
	if err != nil || got != "file" {
		t.Fatalf("empty line should give default, got %q, %v", got, err)
	}
	got, err = w.Prompt("", "")
	if err != nil || got != "last" {
		t.Fatalf("unterminated last line = %q, %v", got, err)
	}
	if _, err := w.Prompt("", ""); err != io.EOF {
		t.Fatalf("exhausted input err = %v, want io.EOF", err)
	}
	if !strings.Contains(buf.String(), "User: ") || !strings.Contains(buf.String(), "Store [file]: ") {
		t.Errorf("prompts not written: %q", buf.String())
	}
}

func TestWriterConfirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"", true, true},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		w := NewWithOutput(&buf, Options{In: strings.NewReader(tt.input)})
		if got := w.Confirm("Sign out", tt.defaultYes); got != tt.want {
			t.Errorf("Confirm(%q, %v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
		}
	}
}
