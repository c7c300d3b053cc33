package assistant

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultWidth is used when SetWidth was never called.
const DefaultWidth = 72

const runHelp = "Type your requirements. /1-/3 apply a template, /clear resets, /generate submits, /cancel closes."

// SetWidth sets the width Run renders at.
func (s *Sheet) SetWidth(width int) {
	s.mu.Lock()
	s.width = width
	s.mu.Unlock()
}

func (s *Sheet) renderWidth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width <= 0 {
		return DefaultWidth
	}
	return s.width
}

// Run drives the sheet from line input. Plain lines are appended to the
// prompt; lines starting with "/" are commands. It returns after the
// first generation (with its error), on cancel, or when ctx ends. At end
// of input a non-blank prompt is submitted and a blank one cancels.
func (s *Sheet) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if !s.Props().Open {
		return nil
	}
	fmt.Fprintln(out, s.Render(s.renderWidth()))
	fmt.Fprintln(out, runHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if s.CanSubmit() {
					return s.generate(ctx, out)
				}
				s.Cancel()
				return nil
			}
			done, err := s.handleLine(ctx, line, out)
			if done {
				return err
			}
		}
	}
}

func (s *Sheet) handleLine(ctx context.Context, line string, out io.Writer) (bool, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		prompt := s.Prompt()
		if prompt != "" {
			prompt += "\n"
		}
		s.SetPrompt(prompt + line)
		return false, nil
	}

	switch cmd := strings.ToLower(strings.TrimPrefix(trimmed, "/")); cmd {
	case "cancel", "q", "quit":
		s.Cancel()
		return true, nil
	case "clear":
		s.SetPrompt("")
		fmt.Fprintln(out, "Prompt cleared.")
	case "generate", "g":
		if !s.CanSubmit() {
			if s.Props().IsGenerating {
				fmt.Fprintln(out, GeneratingLabel)
			} else {
				fmt.Fprintln(out, "Enter your requirements first.")
			}
			return false, nil
		}
		return true, s.generate(ctx, out)
	default:
		n, err := strconv.Atoi(cmd)
		if err != nil {
			fmt.Fprintf(out, "Unknown command %q.\n", trimmed)
			return false, nil
		}
		if err := s.ApplyTemplate(n - 1); err != nil {
			fmt.Fprintf(out, "No template %d.\n", n)
			return false, nil
		}
		fmt.Fprintln(out, s.Render(s.renderWidth()))
	}
	return false, nil
}

func (s *Sheet) generate(ctx context.Context, out io.Writer) error {
	fmt.Fprintln(out, GeneratingLabel)
	return s.Submit(ctx)
}
