package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/config"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/nav"
	"github.com/odvcencio/vulnpilot/pkg/session"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
	"github.com/odvcencio/vulnpilot/pkg/terminal"
	"github.com/odvcencio/vulnpilot/pkg/tokenstore"
)

var errNotSignedIn = errors.New("not signed in: run 'vulnpilot login' first")

// openBrowserFn is replaced in tests.
var openBrowserFn = openBrowser

// app is everything a backend command needs, wired once per invocation.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	hub     *telemetry.Hub
	tracer  *telemetry.TracerProvider
	store   tokenstore.Store
	client  *api.Client
	nav     *nav.Recorder
	session *session.Session
	out     *terminal.Writer

	// noBrowser prints the authorization URL instead of opening it.
	noBrowser bool

	natsConn  *nats.Conn
	relayDone <-chan struct{}

	// expiryNotice prints a hint when a 401 bounces the session to entry.
	expiryNotice atomic.Bool
}

// commandContext is canceled on interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig applies --config and --api-url.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadWithOverride(opts.configPath)
	if err != nil {
		return nil, withExitCode(verrors.Wrap(err, verrors.ErrCodeConfigLoad, "load configuration"), exitConfig)
	}
	if u := strings.TrimSpace(opts.apiURL); u != "" {
		cfg.API.BaseURL = u
		if err := cfg.Validate(); err != nil {
			return nil, withExitCode(verrors.Wrap(err, verrors.ErrCodeConfigInvalid, "--api-url"), exitConfig)
		}
	}
	if opts.noColor {
		cfg.UI.NoColor = true
	}
	if opts.trace {
		cfg.Telemetry.Trace = true
	}
	return cfg, nil
}

func newWriter(cfg *config.Config) *terminal.Writer {
	return terminal.NewWithOutput(stdout, terminal.Options{
		NoColor: cfg.UI.NoColor,
		Width:   cfg.UI.Width,
		In:      stdin,
	})
}

// newApp loads configuration, opens the token store, builds the client and
// bootstraps the session. Callers must Close the app.
func newApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, out: newWriter(cfg), noBrowser: !cfg.Callback.OpenBrowser}

	runID := logging.NewRunID()
	if cfg.Logging.Enabled {
		logger, err := logging.NewLogger(cfg.LogDirPath(), runID)
		if err != nil {
			fmt.Fprintf(stderr, "warning: logging disabled: %v\n", err)
		} else {
			level := logging.ParseLevel(cfg.Logging.Level)
			if opts.verbose {
				level = logging.LevelDebug
			}
			logger.SetMinLevel(level)
			a.logger = logger
		}
	}
	a.hub = telemetry.NewHub(runID)

	if cfg.Telemetry.Trace {
		tp, err := telemetry.NewTracerProvider("vulnpilot", version, stderr)
		if err != nil {
			_ = a.logger.Warn(logging.CategoryNetwork, "tracing_disabled", err.Error(), nil)
		} else {
			a.tracer = tp
		}
	}

	if cfg.Telemetry.NATSURL != "" {
		conn, err := telemetry.ConnectNATS(cfg.Telemetry.NATSURL, "vulnpilot-"+runID)
		if err != nil {
			_ = a.logger.Warn(logging.CategoryNetwork, "nats_unavailable", err.Error(), map[string]any{"url": cfg.Telemetry.NATSURL})
		} else {
			a.natsConn = conn
			relay := telemetry.NewRelay(a.hub, conn, cfg.Telemetry.NATSSubject, func(err error) {
				_ = a.logger.Warn(logging.CategoryNetwork, "relay_publish_failed", err.Error(), nil)
			})
			a.relayDone = relay.Start(context.Background())
		}
	}

	store, err := tokenstore.Open(cfg)
	if err != nil {
		a.Close()
		return nil, verrors.Wrap(err, verrors.ErrCodeStorageRead, "open session store").
			WithRemediation("check storage.backend and storage.data_dir in your config")
	}
	a.store = store

	client, err := api.New(api.Options{
		BaseURL:   cfg.API.BaseURL,
		Tokens:    store,
		Logger:    a.logger,
		Hub:       a.hub,
		RateLimit: cfg.Network.RateLimit,
		Burst:     cfg.Network.Burst,
		Timeout:   cfg.RequestTimeout(),
		UserAgent: cfg.API.UserAgent + "/" + version,
	})
	if err != nil {
		a.Close()
		return nil, withExitCode(err, exitConfig)
	}
	a.client = client

	a.nav = nav.NewRecorder(nav.ViewEntry)
	sess, err := session.New(ctx, session.Deps{
		API:       client,
		Store:     store,
		Navigator: a.nav,
		Browser:   session.BrowserFunc(a.openBrowser),
		Logger:    a.logger,
		Hub:       a.hub,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session = sess

	sess.Start(ctx)
	if msg, ok := sess.Err(); ok {
		a.out.Warn("%s", msg)
		sess.ClearError()
	}
	if sess.Authenticated() {
		a.nav.Navigate(nav.ViewDashboard)
		a.expiryNotice.Store(true)
	}
	a.nav.OnNavigate(func(v nav.View) {
		if v == nav.ViewEntry && a.expiryNotice.Swap(false) {
			a.out.Warn("your session has expired; run 'vulnpilot login' to sign in again")
		}
	})
	return a, nil
}

func (a *app) openBrowser(url string) error {
	if a.noBrowser {
		return nil
	}
	return openBrowserFn(url)
}

// requireSignedIn fails with the auth exit code when bootstrap did not
// authenticate.
func (a *app) requireSignedIn() error {
	if a.session == nil || !a.session.Authenticated() {
		return withExitCode(errNotSignedIn, exitAuth)
	}
	return nil
}

// Close flushes the relay, tracer and logs.
func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	a.hub.Close()
	if a.relayDone != nil {
		select {
		case <-a.relayDone:
		case <-time.After(2 * time.Second):
		}
	}
	if a.natsConn != nil {
		_ = a.natsConn.Flush()
		a.natsConn.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.tracer.Shutdown(ctx)
		cancel()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// describeError reduces err to the line printed after "Error:".
func describeError(err error) string {
	if api.StatusCode(err) != 0 || errors.Is(err, api.ErrUnreachable) {
		return api.ErrorMessage(err)
	}
	if e, ok := verrors.As(err); ok {
		msg := err.Error()
		if um := strings.TrimSpace(e.UserMessage); um != "" {
			msg = um
		}
		if len(e.Remediation) > 0 {
			msg += "\n  hint: " + strings.Join(e.Remediation, "\n  hint: ")
		}
		return msg
	}
	return err.Error()
}
