package terminal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SpinnerFrames are the default animation frames.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner shows progress for one backend call. When not animated it only
// prints the final line, so piped output stays clean.
type Spinner struct {
	out      io.Writer
	animate  bool
	frames   []string
	style    lipgloss.Style
	okStyle  lipgloss.Style
	errStyle lipgloss.Style

	mu        sync.Mutex
	message   string
	current   int
	startTime time.Time
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Spinner returns a spinner that animates only on a color terminal.
func (w *Writer) Spinner(message string) *Spinner {
	return &Spinner{
		out:      w.out,
		animate:  w.color,
		frames:   SpinnerFrames,
		message:  message,
		done:     make(chan struct{}),
		style:    w.infoStyle,
		okStyle:  w.successStyle,
		errStyle: w.errorStyle,
	}
}

// SetMessage updates the spinner message.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
	if !s.animate {
		return
	}
	s.wg.Add(1)
	go s.run()
}

func (s *Spinner) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := s.frames[s.current%len(s.frames)]
			msg := s.message
			elapsed := time.Since(s.startTime).Round(time.Second)
			s.current++
			s.mu.Unlock()
			fmt.Fprintf(s.out, "\r%s %s (%s)", s.style.Render(frame), msg, elapsed)
		}
	}
}

// Elapsed returns the time since Start.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

func (s *Spinner) stop(final string) {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		if s.animate {
			fmt.Fprint(s.out, "\r\033[K")
		}
		if final != "" {
			fmt.Fprintln(s.out, final)
		}
	})
}

// Stop clears the spinner line.
func (s *Spinner) Stop() { s.stop("") }

// StopWithSuccess stops and prints a success line.
func (s *Spinner) StopWithSuccess(message string) {
	s.stop(fmt.Sprintf("%s %s (%s)", s.okStyle.Render("✓"), message, s.Elapsed().Round(time.Millisecond)))
}

// StopWithError stops and prints a failure line.
func (s *Spinner) StopWithError(message string) {
	s.stop(fmt.Sprintf("%s %s", s.errStyle.Render("✗"), message))
}

// WithSpinner runs fn behind a spinner. Failures are left to the caller
// to report; only the spinner line is cleared.
func WithSpinner[T any](w *Writer, message string, fn func() (T, error)) (T, error) {
	sp := w.Spinner(message)
	sp.Start()
	out, err := fn()
	sp.Stop()
	return out, err
}
