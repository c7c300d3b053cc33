package authcallback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/nav"
)

// ErrServerClosed is returned by Wait once the server has shut down
// without receiving a callback.
var ErrServerClosed = errors.New("callback server closed")

// Server is the loopback endpoint the backend redirects the browser to.
type Server struct {
	handler *Handler
	addr    string
	logger  *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	last     *Result

	results chan Result
	done    chan struct{}
	once    sync.Once
}

// NewServer prepares a server bound to addr (host:port; port 0 picks one).
func NewServer(handler *Handler, addr string, logger *logging.Logger) *Server {
	return &Server{
		handler: handler,
		addr:    addr,
		logger:  logger,
		results: make(chan Result, 1),
		done:    make(chan struct{}),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(securityHeaders)
	router.Get("/", s.handleEntry)
	router.Get("/dashboard", s.handleDashboard)
	router.Get("/auth/callback", s.handleCallback)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)
	return router
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("callback server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
	srv := s.srv
	go func() {
		_ = s.logger.Info(logging.CategoryCallback, "listening", "callback server started", map[string]any{"addr": ln.Addr().String()})
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = s.logger.Error(logging.CategoryCallback, "serve_failed", err.Error(), nil)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// CallbackURL is the redirect target the backend should be configured with.
func (s *Server) CallbackURL() string {
	return "http://" + s.Addr() + nav.ViewAuth.Path()
}

// Wait blocks until the first callback has been handled.
func (s *Server) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-s.results:
		return res, nil
	case <-s.done:
		return Result{}, ErrServerClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Shutdown stops the server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	res := s.handler.Handle(r.Context(), r.URL.Query())
	if res.StateMismatch {
		http.Error(w, res.Err, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
	select {
	case s.results <- res:
	default:
	}

	http.Redirect(w, r, res.View.Path(), http.StatusFound)
}

func (s *Server) handleEntry(w http.ResponseWriter, _ *http.Request) {
	renderPage(w, pageData{
		Title: "VulnPilot",
		Body:  "You are not signed in. Run `vulnpilot login` in your terminal to start.",
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	data := pageData{Title: "VulnPilot", Body: "Signed in. You can close this window and return to the terminal."}
	if last != nil && last.User != nil && last.User.Username != "" {
		data.Body = "Signed in as " + last.User.Username + ". You can close this window and return to the terminal."
	}
	renderPage(w, data)
}

type pageData struct {
	Title string
	Body  string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; display: flex; align-items: center; justify-content: center; min-height: 100vh;">
<main style="text-align: center;"><h2>{{.Title}}</h2><p>{{.Body}}</p></main>
</body>
</html>
`))

func renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = pageTemplate.Execute(w, data)
}

// securityHeaders keeps the token-bearing callback out of referrers and frames.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none';")
		next.ServeHTTP(w, r)
	})
}
