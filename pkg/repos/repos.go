// Package repos lists the signed-in user's repositories and their files.
package repos

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/opstate"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
	"github.com/odvcencio/vulnpilot/pkg/tokenstore"
)

// ErrNotAuthenticated is returned when listing is attempted without a
// signed-in session.
var ErrNotAuthenticated = errors.New("not signed in")

// Soft error messages.
const (
	MsgOwnerMissing     = "Repository owner not available"
	MsgNotAuthenticated = "Sign in to list repositories"
)

// API is the subset of the backend client used here.
type API interface {
	ListRepositories(ctx context.Context) ([]api.RawRepository, error)
	ListRepositoryFiles(ctx context.Context, owner, repo string) ([]api.RepoFile, error)
}

// SessionGate reports whether a signed-in session exists.
type SessionGate interface {
	Authenticated() bool
}

// Deps wires a Service. Cache, Session, Logger and Hub are optional.
type Deps struct {
	API     API
	Cache   tokenstore.RepoCache
	Session SessionGate
	Logger  *logging.Logger
	Hub     *telemetry.Hub
}

// Service holds the last listing and file tree.
type Service struct {
	deps  Deps
	state opstate.State

	mu    sync.RWMutex
	repos []Repository
	files []api.RepoFile
}

// New returns a repository service.
func New(deps Deps) *Service {
	return &Service{deps: deps}
}

func (s *Service) Loading() bool       { return s.state.Loading() }
func (s *Service) Err() (string, bool) { return s.state.Err() }
func (s *Service) ClearError()         { s.state.ClearError() }

// FetchRepositories loads, deduplicates and sorts the listing, then caches
// the repository names.
func (s *Service) FetchRepositories(ctx context.Context) ([]Repository, error) {
	if s.deps.Session != nil && !s.deps.Session.Authenticated() {
		s.state.SetError(MsgNotAuthenticated)
		return nil, ErrNotAuthenticated
	}

	s.state.Begin()
	raw, err := s.deps.API.ListRepositories(ctx)
	if err != nil {
		_ = s.deps.Logger.Warn(logging.CategoryRepos, "list_failed", api.ErrorMessage(err), nil)
		return nil, s.state.End(err)
	}

	repos := SortByUpdated(Dedupe(Normalize(raw)))
	s.mu.Lock()
	s.repos = repos
	s.mu.Unlock()

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetRepoNames(ctx, Names(repos)); err != nil {
			_ = s.deps.Logger.Warn(logging.CategoryStorage, "repo_cache_write_failed", err.Error(), nil)
		}
	}
	s.deps.Hub.Emit(telemetry.EventReposLoaded, map[string]any{"count": len(repos), "received": len(raw)})
	_ = s.deps.Logger.Info(logging.CategoryRepos, "listed", "repositories loaded", map[string]any{"count": len(repos)})
	return repos, s.state.End(nil)
}

// FetchRepositoryContents loads the file listing of owner/repo. An empty
// owner is a soft error: no call is made and nil is returned.
func (s *Service) FetchRepositoryContents(ctx context.Context, owner, repo string) ([]api.RepoFile, error) {
	if strings.TrimSpace(owner) == "" {
		s.state.SetError(MsgOwnerMissing)
		return nil, nil
	}

	files, err := opstate.Run(&s.state, func() ([]api.RepoFile, error) {
		return s.deps.API.ListRepositoryFiles(ctx, owner, repo)
	})
	if err != nil {
		_ = s.deps.Logger.Warn(logging.CategoryRepos, "files_failed", api.ErrorMessage(err), map[string]any{"repo": owner + "/" + repo})
		return nil, err
	}
	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	return files, nil
}

// Repositories returns the last listing.
func (s *Service) Repositories() []Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Repository(nil), s.repos...)
}

// Files returns the last file listing.
func (s *Service) Files() []api.RepoFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.RepoFile(nil), s.files...)
}
