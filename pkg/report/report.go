// Package report exports analysis and scan results as spreadsheets and
// HTML documents.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/codeanalysis"
	"github.com/odvcencio/vulnpilot/pkg/repos"
)

// Finding kinds.
const (
	KindAnalysis = "analysis"
	KindScan     = "scan"
)

// Finding is one analyzed source.
type Finding struct {
	Source             string
	Language           string
	Kind               string
	SecurityScore      int
	VulnerabilityCount int
	Vulnerabilities    []string
	Summary            string
	Recommendations    string
	Error              string
}

// Report is everything an export contains.
type Report struct {
	Title        string
	GeneratedAt  time.Time
	Account      string
	Findings     []Finding
	Repositories []repos.Repository
}

// Summary aggregates the findings that completed.
type Summary struct {
	Sources         int
	Failed          int
	Vulnerabilities int
	AverageScore    float64
	LowestScore     int
	LowestSource    string
}

// FromAnalysis converts a full analysis result.
func FromAnalysis(source, language string, a api.Analysis) Finding {
	return Finding{
		Source:             source,
		Language:           language,
		Kind:               KindAnalysis,
		SecurityScore:      a.SecurityScore,
		VulnerabilityCount: a.VulnerabilityCount,
		Vulnerabilities:    append([]string(nil), a.Vulnerabilities...),
		Summary:            a.Analysis,
		Recommendations:    a.Recommendations,
	}
}

// FromScans converts quick scan outcomes. Failed scans are kept with
// their error text.
func FromScans(scans []codeanalysis.FileScan) []Finding {
	out := make([]Finding, 0, len(scans))
	for _, sc := range scans {
		f := Finding{Source: sc.Path, Language: sc.Language, Kind: KindScan}
		if sc.Err != nil {
			f.Error = api.ErrorMessage(sc.Err)
			out = append(out, f)
			continue
		}
		f.SecurityScore = sc.Result.SecurityScore
		f.VulnerabilityCount = sc.Result.VulnerabilityCount
		f.Vulnerabilities = append([]string(nil), sc.Result.Vulnerabilities...)
		out = append(out, f)
	}
	return out
}

// Summarize totals the report's findings.
func (r Report) Summarize() Summary {
	var s Summary
	total := 0
	for _, f := range r.Findings {
		if f.Error != "" {
			s.Failed++
			continue
		}
		if s.Sources == 0 || f.SecurityScore < s.LowestScore {
			s.LowestScore = f.SecurityScore
			s.LowestSource = f.Source
		}
		s.Sources++
		s.Vulnerabilities += f.VulnerabilityCount
		total += f.SecurityScore
	}
	if s.Sources > 0 {
		s.AverageScore = float64(total) / float64(s.Sources)
	}
	return s
}

// Markdown renders the report as a markdown document.
func (r Report) Markdown() string {
	var b strings.Builder
	title := r.Title
	if strings.TrimSpace(title) == "" {
		title = "Security report"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated %s", r.GeneratedAt.UTC().Format(time.RFC3339))
		if r.Account != "" {
			fmt.Fprintf(&b, " for **%s**", mdEscape(r.Account))
		}
		b.WriteString("\n\n")
	}

	sum := r.Summarize()
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Sources analyzed | %d |\n", sum.Sources)
	fmt.Fprintf(&b, "| Failed | %d |\n", sum.Failed)
	fmt.Fprintf(&b, "| Vulnerabilities | %d |\n", sum.Vulnerabilities)
	fmt.Fprintf(&b, "| Average score | %.1f |\n", sum.AverageScore)
	if sum.LowestSource != "" {
		fmt.Fprintf(&b, "| Lowest score | %d (%s) |\n", sum.LowestScore, mdEscape(sum.LowestSource))
	}
	b.WriteString("\n")

	if len(r.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		findings := append([]Finding(nil), r.Findings...)
		sort.SliceStable(findings, func(i, j int) bool {
			fi, fj := findings[i], findings[j]
			if (fi.Error == "") != (fj.Error == "") {
				return fi.Error == ""
			}
			return fi.SecurityScore < fj.SecurityScore
		})
		for _, f := range findings {
			fmt.Fprintf(&b, "### %s\n\n", mdEscape(f.Source))
			if f.Error != "" {
				fmt.Fprintf(&b, "Failed: %s\n\n", mdEscape(f.Error))
				continue
			}
			fmt.Fprintf(&b, "Score **%d**, %d vulnerabilities (%s, %s)\n\n", f.SecurityScore, f.VulnerabilityCount, f.Kind, f.Language)
			for _, v := range f.Vulnerabilities {
				fmt.Fprintf(&b, "- %s\n", mdEscape(v))
			}
			if len(f.Vulnerabilities) > 0 {
				b.WriteString("\n")
			}
			if s := strings.TrimSpace(f.Summary); s != "" {
				b.WriteString(s + "\n\n")
			}
			if s := strings.TrimSpace(f.Recommendations); s != "" {
				b.WriteString("**Recommendations**\n\n" + s + "\n\n")
			}
		}
	}

	if len(r.Repositories) > 0 {
		b.WriteString("## Repositories\n\n")
		b.WriteString("| Repository | Language | Visibility | Updated |\n|---|---|---|---|\n")
		for _, repo := range r.Repositories {
			vis := "public"
			if repo.Private {
				vis = "private"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", mdEscape(repo.Key()), mdEscape(repo.Language), vis, mdEscape(repo.UpdatedAt))
		}
		b.WriteString("\n")
	}
	return b.String()
}

var mdReplacer = strings.NewReplacer("|", `\|`, "<", "&lt;", ">", "&gt;", "\n", " ")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}
