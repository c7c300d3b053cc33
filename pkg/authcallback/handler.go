// Package authcallback completes the OAuth round trip: it takes the
// redirect the backend sends after GitHub sign-in, stores the token and
// hands the user to the session.
package authcallback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/nav"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
	"github.com/odvcencio/vulnpilot/pkg/tokenstore"
)

// Query parameters carried by the redirect.
const (
	ParamToken = "token"
	ParamUser  = "user"
	ParamState = "state"
)

// User sources reported in Result.
const (
	SourceAPI      = "api"
	SourceRedirect = "redirect"
)

// UserFetcher loads the user the stored token belongs to.
type UserFetcher interface {
	CurrentUser(ctx context.Context) (*api.User, error)
}

// Adopter receives the signed-in user.
type Adopter interface {
	Adopt(ctx context.Context, user *api.User) error
}

// Result describes what one callback did.
type Result struct {
	View        nav.View
	TokenStored bool
	// StateMismatch is set when the redirect did not echo the expected
	// OAuth state. Nothing was stored and no navigation happened.
	StateMismatch bool
	// Rejected is set when the backend refused the stored token.
	Rejected   bool
	User       *api.User
	UserSource string
	Err        string
}

// Handler processes callback redirects. Each call is independent; a repeated
// redirect simply overwrites the stored token.
type Handler struct {
	Tokens    tokenstore.TokenWriter
	API       UserFetcher
	Session   Adopter
	Navigator nav.Navigator
	Logger    *logging.Logger
	Hub       *telemetry.Hub
	// ExpectedState, when set and non-empty, must match the redirect's
	// state parameter.
	ExpectedState func() string
}

// Handle applies the redirect parameters.
func (h *Handler) Handle(ctx context.Context, params url.Values) Result {
	if h.ExpectedState != nil {
		if want := h.ExpectedState(); want != "" && params.Get(ParamState) != want {
			_ = h.Logger.Warn(logging.CategoryCallback, "state_mismatch", "redirect state does not match the login request", nil)
			return Result{View: nav.ViewEntry, StateMismatch: true, Err: "sign-in state mismatch; start again with 'vulnpilot login'"}
		}
	}
	if h.Navigator != nil && h.Navigator.Current() != nav.ViewAuth {
		h.Navigator.Navigate(nav.ViewAuth)
	}

	token := strings.TrimSpace(params.Get(ParamToken))
	if token == "" {
		_ = h.Logger.Warn(logging.CategoryCallback, "missing_token", "callback carried no token", nil)
		h.Hub.Emit(telemetry.EventCallbackReceived, map[string]any{"token": false})
		return h.finish(Result{View: nav.ViewEntry})
	}

	if h.Tokens == nil {
		return h.finish(Result{View: nav.ViewEntry, Err: "token store unavailable"})
	}
	if err := h.Tokens.SetToken(ctx, token); err != nil {
		_ = h.Logger.Error(logging.CategoryStorage, "token_write_failed", err.Error(), nil)
		return h.finish(Result{View: nav.ViewEntry, Err: api.ErrorMessage(err)})
	}
	res := Result{View: nav.ViewDashboard, TokenStored: true}
	h.Hub.Emit(telemetry.EventCallbackReceived, map[string]any{"token": true})

	var fetchErr error
	if h.API != nil {
		user, err := h.API.CurrentUser(ctx)
		if err == nil && !user.IsZero() {
			res.User, res.UserSource = user, SourceAPI
		} else {
			if err == nil {
				err = api.ErrEmptyPayload
			}
			fetchErr = err
			res.Err = api.ErrorMessage(err)
			_ = h.Logger.Warn(logging.CategoryCallback, "user_fetch_failed", err.Error(), nil)
		}
	}

	// A rejected token has already been cleared by the session; the
	// redirect's user record must not resurrect it.
	if api.IsUnauthorized(fetchErr) {
		res.Rejected = true
	}

	if res.User == nil && !res.Rejected {
		if raw := params.Get(ParamUser); raw != "" {
			user, err := ParseUserParam(raw)
			if err != nil {
				_ = h.Logger.Warn(logging.CategoryCallback, "user_param_invalid", err.Error(), nil)
			} else {
				res.User, res.UserSource = user, SourceRedirect
			}
		}
	}

	if res.User != nil && h.Session != nil {
		if err := h.Session.Adopt(ctx, res.User); err != nil {
			_ = h.Logger.Error(logging.CategorySession, "adopt_failed", err.Error(), nil)
		}
	}

	details := map[string]any{"user_source": res.UserSource}
	if fetchErr != nil {
		details["fetch_error"] = res.Err
	}
	_ = h.Logger.Info(logging.CategoryCallback, "callback_completed", "token stored", details)
	return h.finish(res)
}

// HandleURL parses a pasted redirect URL (or bare query string) and applies it.
func (h *Handler) HandleURL(ctx context.Context, rawURL string) (Result, error) {
	params, err := QueryFromURL(rawURL)
	if err != nil {
		return Result{}, err
	}
	return h.Handle(ctx, params), nil
}

func (h *Handler) finish(res Result) Result {
	if h.Navigator != nil {
		h.Navigator.Navigate(res.View)
	}
	return res
}

// QueryFromURL extracts the query of a redirect URL. A bare
// "token=...&user=..." string is accepted too.
func QueryFromURL(rawURL string) (url.Values, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, verrors.New(verrors.ErrCodeInvalidInput, "callback URL is empty")
	}
	if !strings.Contains(rawURL, "://") && !strings.HasPrefix(rawURL, "/") {
		rawURL = "/?" + strings.TrimPrefix(rawURL, "?")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, verrors.Wrap(err, verrors.ErrCodeInvalidInput, "parse callback URL")
	}
	return parsed.Query(), nil
}

// ParseUserParam decodes the user record the backend may append to the
// redirect. The value may be percent-encoded a second time.
func ParseUserParam(raw string) (*api.User, error) {
	raw = strings.TrimSpace(raw)
	if decoded, err := url.QueryUnescape(raw); err == nil && !json.Valid([]byte(raw)) {
		raw = decoded
	}
	var user api.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode user parameter: %w", err)
	}
	if user.IsZero() {
		return nil, fmt.Errorf("decode user parameter: %w", api.ErrEmptyPayload)
	}
	return &user, nil
}
