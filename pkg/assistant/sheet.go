// Package assistant holds the workflow "architect" input sheet and the
// service that turns its prompt into a generated workflow definition.
//
// The sheet owns nothing but the prompt text. Whether it is open, what
// happens on generate and whether a generation is running all come from
// the parent through Props.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

// Labels shown by the sheet.
const (
	Title           = "AI Architect"
	Description     = "Describe your security workflow needs, and I'll architect the perfect pipeline for you."
	PromptLabel     = "Your Requirements"
	PromptHint      = "Be as specific as you like about tools and conditions."
	PromptExample   = "e.g. I need to scan a GitHub repo for secrets every 6 hours, run a dependency check, and if anything critical is found, create a high-priority Jira ticket and slack the security team..."
	TemplatesLabel  = "Quick Start Templates"
	GenerateLabel   = "Generate Workflow"
	GeneratingLabel = "Architecting Workflow..."
	CancelLabel     = "Cancel"
)

// Props is everything the parent supplies.
type Props struct {
	Open         bool
	OnOpenChange func(open bool)
	OnGenerate   func(ctx context.Context, prompt string) error
	IsGenerating bool
}

// Template is a canned prompt.
type Template struct {
	Title       string
	Description string
	Prompt      string
}

var quickStart = []Template{
	{
		Title:       "Secrets & SAST Pipeline",
		Description: "Full code scan with Gitleaks + Semgrep > GitHub Issue",
		Prompt:      "Scan my github repo for secrets and vulnerable configurations using Semgrep, then create a GitHub issue for findings.",
	},
	{
		Title:       "Daily Web Audit",
		Description: "Scheduled Nikto/OWASP scan > Email Report",
		Prompt:      "Run a full OWASP scan on my website every day at midnight. If vulnerabilities are found, email security@company.com.",
	},
	{
		Title:       "Auto-Patch Dependencies",
		Description: "Trivy Scan > Auto-Fix PR for critical CVEs",
		Prompt:      "Check for new CVEs in my dependencies using Trivy. If critical, use auto-fix to create a PR updating the package.",
	},
}

// Templates returns a copy of the quick-start templates.
func Templates() []Template {
	return append([]Template(nil), quickStart...)
}

// Sheet is the prompt input surface.
type Sheet struct {
	mu     sync.Mutex
	props  Props
	prompt string
	width  int
}

// NewSheet returns a sheet with an empty prompt.
func NewSheet(props Props) *Sheet {
	return &Sheet{props: props}
}

// SetProps replaces the parent-supplied props. The prompt is kept.
func (s *Sheet) SetProps(props Props) {
	s.mu.Lock()
	s.props = props
	s.mu.Unlock()
}

// Props returns the current props.
func (s *Sheet) Props() Props {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.props
}

// Prompt returns the prompt as typed.
func (s *Sheet) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// SetPrompt replaces the prompt text.
func (s *Sheet) SetPrompt(text string) {
	s.mu.Lock()
	s.prompt = text
	s.mu.Unlock()
}

// ApplyTemplate replaces the prompt with the i-th quick-start prompt.
func (s *Sheet) ApplyTemplate(i int) error {
	if i < 0 || i >= len(quickStart) {
		return verrors.New(verrors.ErrCodeInvalidInput, fmt.Sprintf("no template %d", i+1)).
			WithContext("templates", len(quickStart))
	}
	s.SetPrompt(quickStart[i].Prompt)
	return nil
}

// CanSubmit reports whether the generate action is enabled.
func (s *Sheet) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.prompt) != "" && !s.props.IsGenerating
}

// Submit hands the prompt to OnGenerate. A blank prompt, a running
// generation or a missing callback make it a no-op. The prompt is passed
// as typed, not trimmed.
func (s *Sheet) Submit(ctx context.Context) error {
	s.mu.Lock()
	prompt := s.prompt
	props := s.props
	s.mu.Unlock()

	if strings.TrimSpace(prompt) == "" || props.IsGenerating || props.OnGenerate == nil {
		return nil
	}
	return props.OnGenerate(ctx, prompt)
}

// Cancel asks the parent to close the sheet.
func (s *Sheet) Cancel() {
	props := s.Props()
	if props.OnOpenChange != nil {
		props.OnOpenChange(false)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#4338CA", Dark: "#818CF8"})
	frameStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}).
			Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}).
			Background(lipgloss.AdaptiveColor{Light: "#4F46E5", Dark: "#4F46E5"}).
			Padding(0, 1)
	disabledStyle = buttonStyle.
			Background(lipgloss.AdaptiveColor{Light: "#A5B4FC", Dark: "#3730A3"})
)

// Render draws the sheet at the given width. A closed sheet renders as
// the empty string.
func (s *Sheet) Render(width int) string {
	s.mu.Lock()
	props := s.props
	prompt := s.prompt
	s.mu.Unlock()

	if !props.Open {
		return ""
	}
	if width < 30 {
		width = 30
	}
	inner := width - frameStyle.GetHorizontalFrameSize()
	wrap := lipgloss.NewStyle().Width(inner)

	var b strings.Builder
	b.WriteString(titleStyle.Render(Title))
	b.WriteString("\n")
	b.WriteString(wrap.Render(dimStyle.Render(Description)))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render(PromptLabel))
	b.WriteString("\n")
	if strings.TrimSpace(prompt) == "" {
		b.WriteString(wrap.Render(dimStyle.Render(PromptExample)))
	} else {
		b.WriteString(wrap.Render(prompt))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(PromptHint))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render(TemplatesLabel))
	b.WriteString("\n")
	for i, tpl := range quickStart {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, tpl.Title))
		b.WriteString(wrap.Render(dimStyle.Render("   " + tpl.Description)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	action := buttonStyle.Render(GenerateLabel)
	switch {
	case props.IsGenerating:
		action = disabledStyle.Render(GeneratingLabel)
	case strings.TrimSpace(prompt) == "":
		action = disabledStyle.Render(GenerateLabel)
	}
	b.WriteString(dimStyle.Render("["+CancelLabel+"]") + "  " + action)

	return frameStyle.Width(width - frameStyle.GetHorizontalBorderSize()).Render(b.String())
}
