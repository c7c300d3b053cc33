package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/vulnpilot/pkg/authcallback"
	"github.com/odvcencio/vulnpilot/pkg/nav"
	"github.com/odvcencio/vulnpilot/pkg/session"
)

func runLoginCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("login")
	noBrowser := fs.Bool("no-browser", false, "print the authorization URL instead of opening a browser")
	timeout := fs.Duration("timeout", 0, "how long to wait for the redirect (default callback.timeout_seconds)")
	if rest, err := parseFlags(fs, args); err != nil {
		return err
	} else if len(rest) > 0 {
		return fmt.Errorf("usage: vulnpilot login [--no-browser] [--timeout 5m]")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if *noBrowser {
		a.noBrowser = true
	}
	wait := a.cfg.LoginTimeout()
	if *timeout > 0 {
		wait = *timeout
	}

	handler := a.callbackHandler()
	handler.ExpectedState = a.session.PendingState
	srv := authcallback.NewServer(handler, a.cfg.Callback.Listen, a.logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("%w (set callback.listen or VULNPILOT_CALLBACK_ADDR to a free loopback port)", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// A failed login lands on entry; that is not an expiry.
	a.expiryNotice.Store(false)
	authURL, err := a.session.Login(ctx)
	if err != nil {
		if authURL == "" {
			if errors.Is(err, session.ErrNoAuthURL) {
				return withExitCode(err, exitAuth)
			}
			return err
		}
		a.out.Warn("could not open a browser: %v", err)
	}

	a.out.Info("Open this URL to sign in with GitHub:")
	a.out.Println("  %s", authURL)
	a.out.Dim("Waiting for the redirect on %s ...", srv.CallbackURL())

	waitCtx, cancelWait := context.WithTimeout(ctx, wait)
	defer cancelWait()
	res, err := srv.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return withExitCode(fmt.Errorf("timed out after %s waiting for sign-in", wait), exitAuth)
		}
		return err
	}
	return a.reportCallback(res)
}

func (a *app) callbackHandler() *authcallback.Handler {
	return &authcallback.Handler{
		Tokens:    a.store,
		API:       a.client,
		Session:   a.session,
		Navigator: a.nav,
		Logger:    a.logger,
		Hub:       a.hub,
	}
}

// reportCallback prints the outcome of one OAuth redirect.
func (a *app) reportCallback(res authcallback.Result) error {
	if res.Rejected {
		return withExitCode(fmt.Errorf("the backend rejected the sign-in token: %s", res.Err), exitAuth)
	}
	if res.View != nav.ViewDashboard || !res.TokenStored {
		msg := res.Err
		if msg == "" {
			msg = "sign-in did not complete: the redirect carried no token"
		}
		return withExitCode(errors.New(msg), exitAuth)
	}

	switch {
	case res.User != nil && res.User.Username != "":
		a.out.Success("Signed in as %s", res.User.Username)
	default:
		a.out.Success("Signed in")
	}
	if res.Err != "" {
		a.out.Warn("profile could not be loaded: %s", res.Err)
	}
	return nil
}

func runCallbackCommand(opts *globalOptions, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: vulnpilot callback <redirect-url>")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	a.expiryNotice.Store(false)
	res, err := a.callbackHandler().HandleURL(ctx, args[0])
	if err != nil {
		return err
	}
	return a.reportCallback(res)
}

func runLogoutCommand(opts *globalOptions, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: vulnpilot logout")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	a.expiryNotice.Store(false)
	if err := a.session.Logout(ctx); err != nil {
		return fmt.Errorf("clear local session: %w", err)
	}
	a.out.Success("Signed out")
	return nil
}

func runWhoamiCommand(opts *globalOptions, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: vulnpilot whoami")
	}

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

	user := a.session.User()
	pairs := [][2]string{{"user", user.Username}}
	if id := user.ID.String(); id != "" {
		pairs = append(pairs, [2]string{"id", id})
	}
	if user.Email != "" {
		pairs = append(pairs, [2]string{"email", user.Email})
	}
	pairs = append(pairs, [2]string{"backend", a.cfg.API.BaseURL})

	token, err := a.store.Token(ctx)
	if err == nil {
		if info, derr := session.DescribeToken(token); derr == nil {
			if info.Subject != "" {
				pairs = append(pairs, [2]string{"subject", info.Subject})
			}
			if !info.IssuedAt.IsZero() {
				pairs = append(pairs, [2]string{"issued", info.IssuedAt.Local().Format(time.RFC1123)})
			}
			if !info.ExpiresAt.IsZero() {
				exp := info.ExpiresAt.Local().Format(time.RFC1123)
				if info.Expired(time.Now()) {
					exp += " (expired)"
				}
				pairs = append(pairs, [2]string{"expires", exp})
			}
		} else {
			pairs = append(pairs, [2]string{"token", "opaque"})
		}
	}

	a.out.KeyValue(pairs)
	return nil
}
