package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/codeanalysis"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/report"
	"github.com/odvcencio/vulnpilot/pkg/repos"
	"github.com/odvcencio/vulnpilot/pkg/terminal"
)

func runReportCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("report")
	xlsxPath := fs.String("xlsx", "", "write an Excel workbook")
	htmlPath := fs.String("html", "", "write an HTML page")
	mdPath := fs.String("md", "", "write a markdown document")
	title := fs.String("title", "", "report title")
	full := fs.Bool("full", false, "run a full AI analysis per file instead of a quick scan")
	withRepos := fs.Bool("repos", false, "include the repository listing")
	paths, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 && !*withRepos {
		return fmt.Errorf("usage: vulnpilot report [--xlsx f] [--html f] [--md f] [--full] [--repos] <file...>")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	r := report.Report{Title: *title, GeneratedAt: time.Now()}
	if user := a.session.User(); user != nil {
		r.Account = user.Username
	}

	if len(paths) > 0 {
		findings, err := a.collectFindings(ctx, paths, *full)
		if err != nil {
			return err
		}
		r.Findings = findings
	}

	if *withRepos {
		if err := a.requireSignedIn(); err != nil {
			return err
		}
		svc := a.reposService()
		list, err := terminal.WithSpinner(a.out, "Loading repositories", func() ([]repos.Repository, error) {
			return svc.FetchRepositories(ctx)
		})
		if err != nil {
			return err
		}
		r.Repositories = list
	}

	written := 0
	if *xlsxPath != "" {
		if err := report.WriteXLSX(*xlsxPath, r); err != nil {
			return err
		}
		a.out.Success("Wrote %s", *xlsxPath)
		written++
	}
	if *htmlPath != "" {
		page, err := report.RenderHTML(r)
		if err != nil {
			return err
		}
		if err := writeReportFile(*htmlPath, page); err != nil {
			return err
		}
		a.out.Success("Wrote %s", *htmlPath)
		written++
	}
	if *mdPath != "" {
		if err := writeReportFile(*mdPath, r.Markdown()); err != nil {
			return err
		}
		a.out.Success("Wrote %s", *mdPath)
		written++
	}
	if written == 0 {
		return a.out.Markdown(r.Markdown())
	}

	s := r.Summarize()
	a.out.Dim("%d sources, %d failed, %d vulnerabilities, average score %.0f", s.Sources, s.Failed, s.Vulnerabilities, s.AverageScore)
	return nil
}

// collectFindings quick-scans paths, or runs a full analysis of each one
// in order when full is set. Per-file failures become error findings;
// only an unauthorized response aborts.
func (a *app) collectFindings(ctx context.Context, paths []string, full bool) ([]report.Finding, error) {
	svc := a.analysisService()
	if !full {
		scans, err := terminal.WithSpinner(a.out, fmt.Sprintf("Scanning %d files", len(paths)), func() ([]codeanalysis.FileScan, error) {
			return svc.ScanFiles(ctx, paths, a.cfg.Analysis.ScanConcurrency)
		})
		if api.IsUnauthorized(err) {
			return nil, err
		}
		return report.FromScans(scans), nil
	}

	findings := make([]report.Finding, 0, len(paths))
	for _, p := range paths {
		req, err := codeanalysis.ReadSource(p)
		if err != nil {
			findings = append(findings, report.Finding{Source: p, Kind: report.KindAnalysis, Error: describeError(err)})
			continue
		}
		res, err := terminal.WithSpinner(a.out, "Analyzing "+p, func() (api.Analysis, error) {
			return svc.AnalyzeCode(ctx, req)
		})
		if err != nil {
			if api.IsUnauthorized(err) {
				return nil, err
			}
			findings = append(findings, report.Finding{Source: p, Language: req.Language, Kind: report.KindAnalysis, Error: api.ErrorMessage(err)})
			continue
		}
		findings = append(findings, report.FromAnalysis(p, req.Language, res))
	}
	return findings, nil
}

func writeReportFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "write report").WithContext("path", path)
	}
	return nil
}
