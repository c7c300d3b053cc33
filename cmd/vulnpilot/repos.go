package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/giturl"
	"github.com/odvcencio/vulnpilot/pkg/repoanalysis"
	"github.com/odvcencio/vulnpilot/pkg/repos"
	"github.com/odvcencio/vulnpilot/pkg/terminal"
)

func (a *app) reposService() *repos.Service {
	return repos.New(repos.Deps{
		API:     a.client,
		Cache:   a.store,
		Session: a.session,
		Logger:  a.logger,
		Hub:     a.hub,
	})
}

func runReposCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("repos")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	rest, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	sub := "list"
	if len(rest) > 0 {
		sub, rest = rest[0], rest[1:]
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.reposService()
	switch sub {
	case "list", "ls":
		if len(rest) > 0 {
			return fmt.Errorf("usage: vulnpilot repos list [--json]")
		}
		list, err := terminal.WithSpinner(a.out, "Loading repositories", func() ([]repos.Repository, error) {
			return svc.FetchRepositories(ctx)
		})
		if err != nil {
			if errors.Is(err, repos.ErrNotAuthenticated) {
				return withExitCode(errNotSignedIn, exitAuth)
			}
			return err
		}
		if *asJSON {
			return printJSON(list)
		}
		printRepositories(a.out, list)
		return nil

	case "files":
		if len(rest) != 1 {
			return fmt.Errorf("usage: vulnpilot repos files <owner>/<repo> [--json]")
		}
		owner, name, err := parseRepoArg(rest[0])
		if err != nil {
			return err
		}
		files, err := terminal.WithSpinner(a.out, "Loading files", func() ([]api.RepoFile, error) {
			return svc.FetchRepositoryContents(ctx, owner, name)
		})
		if err != nil {
			return err
		}
		if msg, ok := svc.Err(); ok {
			return errors.New(msg)
		}
		if *asJSON {
			return printJSON(files)
		}
		printFiles(a.out, files)
		return nil

	default:
		return fmt.Errorf("unknown repos subcommand %q (use list or files)", sub)
	}
}

func printRepositories(out *terminal.Writer, list []repos.Repository) {
	if len(list) == 0 {
		out.Dim("No repositories.")
		return
	}
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		visibility := "public"
		if r.Private {
			visibility = "private"
		}
		updated := r.UpdatedAt
		if t, ok := r.Updated(); ok {
			updated = t.Format("2006-01-02")
		}
		rows = append(rows, []string{r.Key(), r.Language, visibility, strconv.Itoa(r.Stars), updated, r.Description})
	}
	out.Table([]string{"repository", "language", "visibility", "stars", "updated", "description"}, rows)
	out.Dim("%d repositories", len(list))
}

func printFiles(out *terminal.Writer, files []api.RepoFile) {
	if len(files) == 0 {
		out.Dim("No files.")
		return
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		kind := f.Type
		if kind == "" {
			kind = "file"
		}
		if f.IsBinary {
			kind += " (binary)"
		}
		rows = append(rows, []string{f.Path, kind})
	}
	out.Table([]string{"path", "type"}, rows)
}

func runRepoAnalyzeCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("repo-analyze")
	maxTokens := fs.Int("max-tokens", 0, "cap the file payload (default analysis.max_tokens)")
	rest, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return fmt.Errorf("usage: vulnpilot repo-analyze [owner/repo] <question>")
	}

	var owner, name string
	if len(rest) > 1 {
		if o, n, perr := parseRepoArg(rest[0]); perr == nil {
			owner, name, rest = o, n, rest[1:]
		}
	}
	if owner == "" {
		o, n, derr := repos.DetectRemote(".", giturl.DefaultHosts)
		if derr != nil {
			return fmt.Errorf("no repository given and none detected: %w", derr)
		}
		owner, name = o, n
	}
	question := strings.TrimSpace(strings.Join(rest, " "))

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireSignedIn(); err != nil {
		return err
	}

	budget := a.cfg.Analysis.MaxTokens
	if *maxTokens > 0 {
		budget = *maxTokens
	}
	analyzer := repoanalysis.New(owner, name, a.client, repoanalysis.Options{
		MaxTokens: budget,
		Logger:    a.logger,
		Hub:       a.hub,
	})

	files, err := terminal.WithSpinner(a.out, "Fetching "+owner+"/"+name, func() ([]api.RepoFile, error) {
		return analyzer.FetchContents(ctx)
	})
	if err != nil {
		return err
	}
	a.out.Dim("%d files in %s/%s", len(files), owner, name)

	res, err := terminal.WithSpinner(a.out, "Analyzing repository", func() (*api.Analysis, error) {
		return analyzer.Analyze(ctx, question)
	})
	if err != nil {
		return err
	}
	if res == nil {
		msg, _ := analyzer.Err()
		return errors.New(msg)
	}

	if b := analyzer.LastBudget(); len(b.Skipped) > 0 {
		a.out.Warn("%d files left out to fit %d tokens", len(b.Skipped), budget)
	}
	renderAnalysis(a.out, owner+"/"+name, *res)
	return nil
}
