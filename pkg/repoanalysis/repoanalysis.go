// Package repoanalysis loads one repository's files and asks the backend
// to analyze them as a whole.
package repoanalysis

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
)

// LanguageMultiple tags a payload that mixes files of several languages.
const LanguageMultiple = "multiple"

// MsgNoFiles is the soft error for Analyze before any files are loaded.
const MsgNoFiles = "No repository files loaded"

// API is the subset of the backend client used here.
type API interface {
	ListRepositoryFiles(ctx context.Context, owner, repo string) ([]api.RepoFile, error)
	AnalyzeCode(ctx context.Context, req api.AnalyzeRequest) (api.Analysis, error)
}

// Options tunes an Analyzer.
type Options struct {
	// MaxTokens caps the serialized file payload; zero means no cap.
	MaxTokens int
	Logger    *logging.Logger
	Hub       *telemetry.Hub
}

// Budget reports how the file payload was trimmed.
type Budget struct {
	Included []string
	Skipped  []string
	Tokens   int
}

// Analyzer is bound to one repository. Fetching and analysis have separate
// loading flags and share one error.
type Analyzer struct {
	owner string
	repo  string
	api   API
	opts  Options

	mu              sync.RWMutex
	files           []api.RepoFile
	analysis        *api.Analysis
	budget          Budget
	loadingRepo     bool
	loadingAnalysis bool
	err             string
	hasErr          bool
}

// New binds an analyzer to owner/repo.
func New(owner, repo string, client API, opts Options) *Analyzer {
	return &Analyzer{owner: strings.TrimSpace(owner), repo: strings.TrimSpace(repo), api: client, opts: opts}
}

// FetchContents loads the repository's files. Without an owner or
// repository name it returns an empty list and makes no call.
func (a *Analyzer) FetchContents(ctx context.Context) ([]api.RepoFile, error) {
	if a.owner == "" || a.repo == "" {
		return []api.RepoFile{}, nil
	}

	a.mu.Lock()
	a.loadingRepo = true
	a.err, a.hasErr = "", false
	a.mu.Unlock()

	files, err := a.api.ListRepositoryFiles(ctx, a.owner, a.repo)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadingRepo = false
	if err != nil {
		a.err, a.hasErr = api.ErrorMessage(err), true
		_ = a.opts.Logger.Warn(logging.CategoryAnalysis, "repo_files_failed", a.err, map[string]any{"repo": a.owner + "/" + a.repo})
		return nil, err
	}
	a.files = files
	return append([]api.RepoFile(nil), files...), nil
}

// Analyze sends the loaded files with question as the filename. With no
// files loaded it records a soft error and returns nil without a call.
func (a *Analyzer) Analyze(ctx context.Context, question string) (*api.Analysis, error) {
	a.mu.Lock()
	if len(a.files) == 0 {
		a.err, a.hasErr = MsgNoFiles, true
		a.mu.Unlock()
		return nil, nil
	}
	files := append([]api.RepoFile(nil), a.files...)
	a.loadingAnalysis = true
	a.err, a.hasErr = "", false
	a.mu.Unlock()

	payload, budget, err := BuildPayload(files, a.opts.MaxTokens)
	if err == nil {
		if len(budget.Skipped) > 0 {
			_ = a.opts.Logger.Info(logging.CategoryAnalysis, "payload_trimmed", "files left out to fit the token budget", map[string]any{
				"skipped": len(budget.Skipped),
				"tokens":  budget.Tokens,
			})
		}
		var res api.Analysis
		res, err = a.api.AnalyzeCode(ctx, api.AnalyzeRequest{
			Code:     payload,
			Language: LanguageMultiple,
			Filename: question,
		})
		if err == nil {
			a.opts.Hub.Emit(telemetry.EventAnalysisCompleted, map[string]any{
				"repo":                a.owner + "/" + a.repo,
				"files":               len(budget.Included),
				"security_score":      res.SecurityScore,
				"vulnerability_count": res.VulnerabilityCount,
			})
			a.mu.Lock()
			a.analysis = &res
			a.budget = budget
			a.loadingAnalysis = false
			a.mu.Unlock()
			out := res
			return &out, nil
		}
	}

	a.mu.Lock()
	a.loadingAnalysis = false
	a.err, a.hasErr = api.ErrorMessage(err), true
	a.mu.Unlock()
	return nil, err
}

// BuildPayload serializes files in order, leaving out any file that would
// push the running total past maxTokens.
func BuildPayload(files []api.RepoFile, maxTokens int) (string, Budget, error) {
	var budget Budget
	included := make([]api.RepoFile, 0, len(files))
	for _, f := range files {
		encoded, err := json.Marshal(f)
		if err != nil {
			return "", Budget{}, verrors.Wrap(err, verrors.ErrCodeInternal, "encode repository file")
		}
		n := CountTokens(string(encoded))
		if maxTokens > 0 && budget.Tokens+n > maxTokens {
			budget.Skipped = append(budget.Skipped, f.Path)
			continue
		}
		budget.Tokens += n
		budget.Included = append(budget.Included, f.Path)
		included = append(included, f)
	}
	if len(included) == 0 && len(files) > 0 {
		return "", budget, verrors.New(verrors.ErrCodeInvalidInput, "no repository file fits the analysis token budget").
			WithRemediation("raise analysis.max_tokens in the config file")
	}
	data, err := json.Marshal(included)
	if err != nil {
		return "", Budget{}, verrors.Wrap(err, verrors.ErrCodeInternal, "encode repository files")
	}
	return string(data), budget, nil
}

// Files returns the loaded files.
func (a *Analyzer) Files() []api.RepoFile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]api.RepoFile(nil), a.files...)
}

// Analysis returns the last successful analysis, or nil.
func (a *Analyzer) Analysis() *api.Analysis {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.analysis == nil {
		return nil
	}
	out := *a.analysis
	return &out
}

// LastBudget reports how the last analyzed payload was trimmed.
func (a *Analyzer) LastBudget() Budget {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.budget
}

func (a *Analyzer) LoadingRepo() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadingRepo
}

func (a *Analyzer) LoadingAnalysis() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadingAnalysis
}

// Err returns the last failure message.
func (a *Analyzer) Err() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err, a.hasErr
}

func (a *Analyzer) ClearError() {
	a.mu.Lock()
	a.err, a.hasErr = "", false
	a.mu.Unlock()
}
