package codeanalysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/filewatch"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/opstate"
)

const (
	// DefaultConcurrency bounds parallel scans when the caller gives none.
	DefaultConcurrency = 4
	// MaxSourceBytes is the largest file submitted for analysis.
	MaxSourceBytes = 1 << 20
)

// FileScan is the outcome of scanning one file.
type FileScan struct {
	Path     string
	Language string
	Result   api.ScanResult
	Err      error
}

// ReadSource loads a file into an analysis request.
func ReadSource(path string) (api.AnalyzeRequest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return api.AnalyzeRequest{}, verrors.Wrap(err, verrors.ErrCodeInvalidInput, "read source")
	}
	if info.IsDir() {
		return api.AnalyzeRequest{}, verrors.New(verrors.ErrCodeInvalidInput, fmt.Sprintf("%s is a directory", path))
	}
	if info.Size() > MaxSourceBytes {
		return api.AnalyzeRequest{}, verrors.New(verrors.ErrCodeInvalidInput, fmt.Sprintf("%s is larger than %d bytes", path, MaxSourceBytes))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return api.AnalyzeRequest{}, verrors.Wrap(err, verrors.ErrCodeInvalidInput, "read source")
	}
	if !utf8.Valid(data) {
		return api.AnalyzeRequest{}, verrors.New(verrors.ErrCodeInvalidInput, fmt.Sprintf("%s is not a text file", path))
	}
	return api.AnalyzeRequest{
		Code:     string(data),
		Language: DetectLanguage(path),
		Filename: filepath.Base(path),
	}, nil
}

// ScanFiles quick-scans each path with at most concurrency requests in
// flight. Results keep the order of paths. Per-file failures are recorded
// on the result; the first one is also returned. An unauthorized response
// stops the remaining scans.
func (s *Service) ScanFiles(ctx context.Context, paths []string, concurrency int) ([]FileScan, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	s.state.Begin()
	results := make([]FileScan, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		g.Go(func() error {
			results[i] = s.scanFile(gctx, p)
			if api.IsUnauthorized(results[i].Err) {
				return results[i].Err
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		for _, r := range results {
			if r.Err != nil {
				err = r.Err
				break
			}
		}
	}
	_ = s.logger.Info(logging.CategoryAnalysis, "scan_files", "multi-file scan finished", map[string]any{
		"files":       len(paths),
		"concurrency": concurrency,
	})
	return results, s.state.End(err)
}

func (s *Service) scanFile(ctx context.Context, path string) FileScan {
	out := FileScan{Path: path}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	req, err := ReadSource(path)
	if err != nil {
		out.Err = err
		return out
	}
	out.Language = req.Language
	out.Result, out.Err = s.quickScan(ctx, req)
	return out
}

// Watch quick-scans target (a file, or the source files directly inside a
// directory) every time it is written, until ctx ends.
func (s *Service) Watch(ctx context.Context, target string, fn func(FileScan)) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return verrors.Wrap(err, verrors.ErrCodeInvalidInput, "watch target")
	}

	fw, err := filewatch.NewFileWatcher(0)
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(abs); err != nil {
		return err
	}

	pattern := abs
	if info.IsDir() {
		pattern = filepath.Join(abs, "*")
	}
	fw.Subscribe(pattern, func(change filewatch.FileChange) {
		if change.Type != filewatch.ChangeCreated && change.Type != filewatch.ChangeModified {
			return
		}
		if st, err := os.Stat(change.Path); err != nil || st.IsDir() {
			return
		}
		if info.IsDir() && DetectLanguage(change.Path) == LanguageText {
			return
		}
		res, _ := opstate.Run(&s.state, func() (FileScan, error) {
			r := s.scanFile(ctx, change.Path)
			return r, r.Err
		})
		fn(res)
	})

	_ = s.logger.Info(logging.CategoryAnalysis, "watch_started", "watching for changes", map[string]any{"target": abs})
	if err := fw.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
