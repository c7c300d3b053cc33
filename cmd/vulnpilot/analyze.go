package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/codeanalysis"
	"github.com/odvcencio/vulnpilot/pkg/terminal"
)

func (a *app) analysisService() *codeanalysis.Service {
	return codeanalysis.New(a.client, a.logger, a.hub)
}

// renderAnalysis prints a full analysis result.
func renderAnalysis(out *terminal.Writer, source string, res api.Analysis) {
	out.Header(source)
	out.Score("Security score:", res.SecurityScore)
	out.Println("Vulnerabilities: %d", res.VulnerabilityCount)
	if len(res.Vulnerabilities) > 0 {
		out.List(res.Vulnerabilities)
	}
	if strings.TrimSpace(res.Analysis) != "" {
		out.Newline()
		_ = out.Markdown(res.Analysis)
	}
	if strings.TrimSpace(res.Recommendations) != "" {
		out.Header("Recommendations")
		_ = out.Markdown(res.Recommendations)
	}
}

func runAnalyzeCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("analyze")
	lang := fs.String("lang", "", "override the detected language")
	showCode := fs.Bool("show-code", false, "print the highlighted source first")
	asJSON := fs.Bool("json", false, "print the raw result as JSON")
	rest, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("usage: vulnpilot analyze <file> [--lang language] [--show-code] [--json]")
	}

	req, err := codeanalysis.ReadSource(rest[0])
	if err != nil {
		return err
	}
	if *lang != "" {
		req.Language = *lang
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if *showCode {
		a.out.Code(req.Code, req.Language)
		a.out.Newline()
	}

	svc := a.analysisService()
	res, err := terminal.WithSpinner(a.out, "Analyzing "+req.Filename, func() (api.Analysis, error) {
		return svc.AnalyzeCode(ctx, req)
	})
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(res)
	}
	renderAnalysis(a.out, rest[0], res)
	return nil
}

func runScanCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("scan")
	watch := fs.Bool("watch", false, "rescan whenever the file or directory changes")
	concurrency := fs.Int("concurrency", 0, "parallel scans (default analysis.scan_concurrency)")
	asJSON := fs.Bool("json", false, "print results as JSON")
	paths, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("usage: vulnpilot scan [--watch] [--concurrency n] [--json] <file...>")
	}
	if *watch && len(paths) != 1 {
		return fmt.Errorf("--watch takes exactly one file or directory")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.analysisService()
	if *watch {
		return a.watchScan(ctx, svc, paths[0])
	}

	limit := a.cfg.Analysis.ScanConcurrency
	if *concurrency > 0 {
		limit = *concurrency
	}
	scans, err := terminal.WithSpinner(a.out, fmt.Sprintf("Scanning %d files", len(paths)), func() ([]codeanalysis.FileScan, error) {
		return svc.ScanFiles(ctx, paths, limit)
	})
	if api.IsUnauthorized(err) {
		return err
	}

	if *asJSON {
		if jerr := printJSON(scanRecords(scans)); jerr != nil {
			return jerr
		}
	} else {
		printScans(a.out, scans)
	}
	if err != nil {
		failed := 0
		for _, s := range scans {
			if s.Err != nil {
				failed++
			}
		}
		return fmt.Errorf("%d of %d files could not be scanned: %w", failed, len(scans), err)
	}
	return nil
}

func (a *app) watchScan(ctx context.Context, svc *codeanalysis.Service, target string) error {
	a.out.Dim("Watching %s (Ctrl+C to stop)", target)
	err := svc.Watch(ctx, target, func(scan codeanalysis.FileScan) {
		printScans(a.out, []codeanalysis.FileScan{scan})
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printScans(out *terminal.Writer, scans []codeanalysis.FileScan) {
	rows := make([][]string, 0, len(scans))
	for _, s := range scans {
		if s.Err != nil {
			rows = append(rows, []string{s.Path, s.Language, "-", "-", "error: " + describeError(s.Err)})
			continue
		}
		rows = append(rows, []string{
			s.Path,
			s.Language,
			strconv.Itoa(s.Result.SecurityScore),
			strconv.Itoa(s.Result.VulnerabilityCount),
			strings.Join(s.Result.Vulnerabilities, "; "),
		})
	}
	out.Table([]string{"file", "language", "score", "findings", "vulnerabilities"}, rows)
}

type scanRecord struct {
	Path     string          `json:"path"`
	Language string          `json:"language,omitempty"`
	Result   *api.ScanResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func scanRecords(scans []codeanalysis.FileScan) []scanRecord {
	out := make([]scanRecord, 0, len(scans))
	for _, s := range scans {
		rec := scanRecord{Path: s.Path, Language: s.Language}
		if s.Err != nil {
			rec.Error = describeError(s.Err)
		} else {
			res := s.Result
			rec.Result = &res
		}
		out = append(out, rec)
	}
	return out
}

func runCompareCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("compare")
	noDiff := fs.Bool("no-diff", false, "skip the local unified diff")
	rest, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return fmt.Errorf("usage: vulnpilot compare <file-a> <file-b> [--no-diff]")
	}

	first, err := codeanalysis.ReadSource(rest[0])
	if err != nil {
		return err
	}
	second, err := codeanalysis.ReadSource(rest[1])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if !*noDiff {
		diff, err := codeanalysis.UnifiedDiff(rest[0], first.Code, rest[1], second.Code)
		if err != nil {
			return err
		}
		if diff == "" {
			a.out.Dim("Files are identical.")
		} else {
			highlighted, herr := terminal.Highlight(diff, "diff", a.out.Color())
			if herr != nil {
				highlighted = diff
			}
			a.out.Print("%s", highlighted)
			a.out.Newline()
		}
	}

	svc := a.analysisService()
	cmp, err := terminal.WithSpinner(a.out, "Comparing", func() (api.Comparison, error) {
		return svc.CompareCode(ctx, api.CompareRequest{
			Code1:     first.Code,
			Code2:     second.Code,
			Language1: first.Language,
			Language2: second.Language,
		})
	})
	if err != nil {
		return err
	}

	duplicate := "no"
	if cmp.IsDuplicate {
		duplicate = "yes"
	}
	a.out.KeyValue([][2]string{
		{"similarity", strconv.FormatFloat(cmp.SimilarityPercent, 'f', 1, 64) + "%"},
		{"duplicate", duplicate},
	})
	if len(cmp.CommonKeywords) > 0 {
		a.out.Println("Common keywords:")
		a.out.List(cmp.CommonKeywords)
	}
	return nil
}
