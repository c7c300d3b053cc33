package terminal

import (
	"bytes"
	"strings"
	"testing"
)

func TestHighlight_PlainPassesThrough(t *testing.T) {
	code := "package main\n\nfunc main() {}\n"
	got, err := Highlight(code, "go", false)
	if err != nil {
		t.Fatalf("Highlight error: %v", err)
	}
	if got != code {
		t.Errorf("plain Highlight changed code: %q", got)
	}
}

func TestHighlight_Color(t *testing.T) {
	code := `query := "SELECT * FROM users WHERE id = " + id`
	got, err := Highlight(code, "go", true)
	if err != nil {
		t.Fatalf("Highlight error: %v", err)
	}
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("expected ANSI escapes, got %q", got)
	}
	if !strings.Contains(got, "SELECT") {
		t.Errorf("highlighted output lost content: %q", got)
	}
}

func TestHighlight_UnknownLanguageFallsBack(t *testing.T) {
	got, err := Highlight("just some words", "no-such-language", true)
	if err != nil {
		t.Fatalf("Highlight error: %v", err)
	}
	if !strings.Contains(got, "just some words") && !strings.Contains(got, "words") {
		t.Errorf("fallback lost content: %q", got)
	}
}

func TestWriterCode(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf, Options{Width: 80})

	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "x"
	}
	w.Code(strings.Join(lines, "\n")+"\n", "text")

	out := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(out) != 10 {
		t.Fatalf("got %d lines, want 10: %q", len(out), buf.String())
	}
	if out[0] != " 1 │ x" {
		t.Errorf("first line = %q", out[0])
	}
	if out[9] != "10 │ x" {
		t.Errorf("last line = %q", out[9])
	}
}
