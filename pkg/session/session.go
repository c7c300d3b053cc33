// Package session owns the authentication lifecycle: it reconciles the
// locally stored token with the backend, drives login and logout, and
// reacts to unauthorized responses reported by the API client.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/nav"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
	"github.com/odvcencio/vulnpilot/pkg/tokenstore"
)

// ErrNoAuthURL means the backend answered without an authorization URL.
var ErrNoAuthURL = errors.New("no auth URL received from backend")

// ErrNoToken means Adopt was called while no session token is stored.
var ErrNoToken = errors.New("no session token stored")

// missingUserMessage is recorded when bootstrap gets a success without a user.
const missingUserMessage = "No user data received"

// State is the session's position in its lifecycle.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
)

//go:generate mockgen -package=session -destination=mock_api_test.go github.com/odvcencio/vulnpilot/pkg/session API

// API is the part of the backend client the session depends on.
type API interface {
	CurrentUser(ctx context.Context) (*api.User, error)
	AuthorizationURL(ctx context.Context) (api.AuthURL, error)
	Logout(ctx context.Context) error
	OnUnauthorized(handler func(api.UnauthorizedEvent)) (unsubscribe func())
}

// Browser opens the OAuth authorization page.
type Browser interface {
	Open(url string) error
}

// BrowserFunc adapts a function to Browser.
type BrowserFunc func(url string) error

// Open calls f(url).
func (f BrowserFunc) Open(url string) error { return f(url) }

// Deps are the collaborators of a Session.
type Deps struct {
	API       API
	Store     tokenstore.Store
	Navigator nav.Navigator
	Browser   Browser
	Logger    *logging.Logger
	Hub       *telemetry.Hub
}

// Session is the single writer of the token store's user slot and the only
// component that clears the store.
type Session struct {
	api     API
	store   tokenstore.Store
	nav     nav.Navigator
	browser Browser
	logger  *logging.Logger
	hub     *telemetry.Hub

	mu     sync.RWMutex
	state  State
	user   *api.User
	err    string
	hasErr bool
	// pendingState is the OAuth state of the last Login, if the backend
	// issued one.
	pendingState string

	unsubscribe func()
}

// New builds a session and subscribes it to unauthorized events. The
// cached user, if any, is exposed for display until Start reconciles it.
func New(ctx context.Context, deps Deps) (*Session, error) {
	if deps.API == nil || deps.Store == nil {
		return nil, errors.New("session: API and Store are required")
	}
	navigator := deps.Navigator
	if navigator == nil {
		navigator = nav.NewRecorder(nav.ViewEntry)
	}

	s := &Session{
		api:     deps.API,
		store:   deps.Store,
		nav:     navigator,
		browser: deps.Browser,
		logger:  deps.Logger,
		hub:     deps.Hub,
		state:   StateLoading,
	}
	if cached, err := deps.Store.User(ctx); err == nil {
		s.user = cached
	} else {
		_ = s.logger.Warn(logging.CategorySession, "user_cache_unreadable", err.Error(), nil)
	}
	s.unsubscribe = deps.API.OnUnauthorized(s.handleUnauthorized)
	return s, nil
}

// Close detaches the session from the API client.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Start runs session bootstrap.
func (s *Session) Start(ctx context.Context) {
	s.bootstrap(ctx)
}

// Refetch re-runs session bootstrap to reconcile with the backend.
func (s *Session) Refetch(ctx context.Context) {
	s.bootstrap(ctx)
}

func (s *Session) bootstrap(ctx context.Context) {
	token, err := s.store.Token(ctx)
	if err != nil {
		_ = s.logger.Error(logging.CategorySession, "token_unreadable", err.Error(), nil)
		s.signOut(ctx, api.ErrorMessage(err))
		return
	}
	if strings.TrimSpace(token) == "" {
		s.setState(StateUnauthenticated, nil, "")
		s.hub.Emit(telemetry.EventSessionUnauthenticated, map[string]any{"reason": "no_token"})
		return
	}

	s.setState(StateLoading, s.User(), "")
	s.hub.Emit(telemetry.EventSessionLoading, nil)

	user, err := s.api.CurrentUser(ctx)
	switch {
	case err == nil && !user.IsZero():
		if werr := s.store.SetUser(ctx, user); werr != nil {
			_ = s.logger.Warn(logging.CategoryStorage, "user_cache_write_failed", werr.Error(), nil)
		}
		s.setState(StateAuthenticated, user, "")
		_ = s.logger.Info(logging.CategorySession, "authenticated", "session restored", map[string]any{"username": user.Username})
		s.hub.Emit(telemetry.EventSessionAuthenticated, map[string]any{"username": user.Username})
	case err == nil, errors.Is(err, api.ErrEmptyPayload):
		s.signOut(ctx, missingUserMessage)
	case api.IsUnauthorized(err):
		// The unauthorized handler already reset everything; stay quiet.
		s.signOut(ctx, "")
	default:
		_ = s.logger.Warn(logging.CategorySession, "bootstrap_failed", err.Error(), nil)
		s.signOut(ctx, api.ErrorMessage(err))
	}
}

// signOut clears every slot and lands in unauthenticated with msg as the
// soft error (empty for none).
func (s *Session) signOut(ctx context.Context, msg string) {
	if err := s.store.Clear(ctx); err != nil {
		_ = s.logger.Error(logging.CategoryStorage, "clear_failed", err.Error(), nil)
	}
	s.setState(StateUnauthenticated, nil, msg)
	s.hub.Emit(telemetry.EventSessionUnauthenticated, nil)
}

func (s *Session) setState(state State, user *api.User, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.user = user
	s.err, s.hasErr = errMsg, errMsg != ""
}

// Login asks the backend for the authorization URL and opens it. Local state
// is untouched; the callback handler completes the round trip.
func (s *Session) Login(ctx context.Context) (string, error) {
	authURL, err := s.api.AuthorizationURL(ctx)
	if errors.Is(err, api.ErrEmptyPayload) {
		err = ErrNoAuthURL
	}
	if err == nil && strings.TrimSpace(authURL.URL) == "" {
		err = ErrNoAuthURL
	}
	if err != nil {
		_ = s.logger.Warn(logging.CategoryAuth, "login_failed", err.Error(), nil)
		return "", err
	}

	target := strings.TrimSpace(authURL.URL)
	s.mu.Lock()
	s.pendingState = strings.TrimSpace(authURL.State)
	s.mu.Unlock()
	_ = s.logger.Info(logging.CategoryAuth, "login_started", "opening authorization URL", map[string]any{"state": authURL.State})
	if s.browser != nil {
		if err := s.browser.Open(target); err != nil {
			return target, fmt.Errorf("open browser: %w", err)
		}
	}
	return target, nil
}

// PendingState returns the OAuth state issued for the last Login, or "".
func (s *Session) PendingState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingState
}

// Logout tells the backend, then unconditionally clears local state and
// returns to the entry view. A backend failure is logged and ignored.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		_ = s.logger.Warn(logging.CategoryAuth, "logout_backend_failed", err.Error(), nil)
	}
	clearErr := s.store.Clear(ctx)
	if clearErr != nil {
		_ = s.logger.Error(logging.CategoryStorage, "clear_failed", clearErr.Error(), nil)
	}
	s.setState(StateUnauthenticated, nil, "")
	s.nav.Navigate(nav.ViewEntry)
	s.hub.Emit(telemetry.EventSessionLogout, nil)
	return clearErr
}

// Adopt installs a user fetched by the callback handler. Zero users are
// ignored, and nothing is adopted without a stored token.
func (s *Session) Adopt(ctx context.Context, user *api.User) error {
	if user.IsZero() {
		return nil
	}
	token, err := s.store.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNoToken
	}
	if err := s.store.SetUser(ctx, user); err != nil {
		return err
	}
	s.setState(StateAuthenticated, user, "")
	s.hub.Emit(telemetry.EventSessionAuthenticated, map[string]any{"username": user.Username, "source": "callback"})
	return nil
}

func (s *Session) handleUnauthorized(ev api.UnauthorizedEvent) {
	// The triggering request's context may already be done; clearing must
	// not depend on it.
	ctx := context.Background()
	if err := s.store.Clear(ctx); err != nil {
		_ = s.logger.Error(logging.CategoryStorage, "clear_failed", err.Error(), nil)
	}
	s.setState(StateUnauthenticated, nil, "")
	_ = s.logger.Info(logging.CategorySession, "forced_logout", "session cleared after unauthorized response", map[string]any{
		"method": ev.Method,
		"path":   ev.Path,
	})
	s.hub.Emit(telemetry.EventSessionUnauthenticated, map[string]any{"reason": "unauthorized", "path": ev.Path})

	switch s.nav.Current() {
	case nav.ViewEntry, nav.ViewAuth:
	default:
		s.nav.Navigate(nav.ViewEntry)
	}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns the current (possibly cached) user. Display only.
func (s *Session) User() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Loading reports whether bootstrap is in flight.
func (s *Session) Loading() bool {
	return s.State() == StateLoading
}

// Authenticated reports whether the backend last accepted the token.
func (s *Session) Authenticated() bool {
	return s.State() == StateAuthenticated
}

// Err returns the last soft failure.
func (s *Session) Err() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err, s.hasErr
}

// ClearError forgets the last soft failure.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.err, s.hasErr = "", false
	s.mu.Unlock()
}
