package authcallback

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/nav"
)

func startServer(t *testing.T, h *harness) *Server {
	t.Helper()
	srv := NewServer(h.handler, "127.0.0.1:0", nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestServerCallbackRedirectsAndDelivers(t *testing.T) {
	h := newHarness(&api.User{ID: "1", Username: "alice"}, nil)
	srv := startServer(t, h)
	assert.Equal(t, "http://"+srv.Addr()+"/auth/callback", srv.CallbackURL())

	resp, err := noRedirectClient().Get(srv.CallbackURL() + "?token=abc123")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	assert.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := srv.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, nav.ViewDashboard, res.View)
	assert.Equal(t, "alice", res.User.Username)

	resp, err = noRedirectClient().Get("http://" + srv.Addr() + "/dashboard")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "Signed in as alice")
}

func TestServerCallbackWithoutToken(t *testing.T) {
	h := newHarness(nil, nil)
	srv := startServer(t, h)

	resp, err := noRedirectClient().Get(srv.CallbackURL())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Zero(t, h.api.calls)
}

func TestServerPages(t *testing.T) {
	srv := startServer(t, newHarness(nil, nil))
	for _, path := range []string{"/", "/dashboard", "/metrics"} {
		resp, err := noRedirectClient().Get("http://" + srv.Addr() + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"), path)
	}
}

func TestServerWaitEndsOnShutdownOrCancel(t *testing.T) {
	srv := startServer(t, newHarness(nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := srv.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
	_, err = srv.Wait(context.Background())
	assert.ErrorIs(t, err, ErrServerClosed)
}

func TestServerStartTwice(t *testing.T) {
	srv := startServer(t, newHarness(nil, nil))
	assert.Error(t, srv.Start())
}

func TestServerRejectsMismatchedState(t *testing.T) {
	h := newHarness(&api.User{ID: "1", Username: "alice"}, nil)
	h.handler.ExpectedState = func() string { return "xyz" }
	srv := startServer(t, h)

	resp, err := noRedirectClient().Get(srv.CallbackURL() + "?token=planted&state=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = srv.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a mismatched redirect is not delivered")
	tok, _ := h.store.Token(context.Background())
	assert.Empty(t, tok)

	resp, err = noRedirectClient().Get(srv.CallbackURL() + "?token=abc123&state=xyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	res, err := srv.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.ViewDashboard, res.View)
}
