package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
)

const defaultUserAgent = "vulnpilot-cli"

// TokenSource supplies the bearer token for outgoing requests. An empty
// token means no credential is attached.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// UnauthorizedEvent is emitted once for every 401 response.
type UnauthorizedEvent struct {
	Method    string
	Path      string
	RequestID string
	At        time.Time
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	Logger     *logging.Logger
	Hub        *telemetry.Hub
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// Timeout bounds each request when the HTTP client has none.
	Timeout   time.Duration
	UserAgent string
}

// Client is the single pipeline every backend call flows through.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
	hub        *telemetry.Hub
	userAgent  string

	mu          sync.RWMutex
	subscribers map[uint64]func(UnauthorizedEvent)
	nextSubID   uint64
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, verrors.New(verrors.ErrCodeConfigInvalid, "api base URL is required")
	}

	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	if hc.Timeout == 0 && opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:     base,
		tokens:      opts.Tokens,
		httpClient:  &hc,
		limiter:     limiter,
		logger:      opts.Logger,
		hub:         opts.Hub,
		userAgent:   userAgent,
		subscribers: make(map[uint64]func(UnauthorizedEvent)),
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnUnauthorized registers handler for 401 responses. Handlers run
// synchronously, before the failing call returns to its caller.
func (c *Client) OnUnauthorized(handler func(UnauthorizedEvent)) (unsubscribe func()) {
	if handler == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = handler
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) emitUnauthorized(ev UnauthorizedEvent) {
	c.mu.RLock()
	handlers := make([]func(UnauthorizedEvent), 0, len(c.subscribers))
	for _, h := range c.subscribers {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	metricUnauthorized.Inc()
	c.hub.Emit(telemetry.EventUnauthorized, map[string]any{"method": ev.Method, "path": ev.Path})
	for _, h := range handlers {
		h(ev)
	}
}

// endpoint names a backend route; route is the metric and span label.
type endpoint struct {
	method string
	route  string
}

// do issues one request and decodes the payload into out when out is non-nil.
func (c *Client) do(ctx context.Context, ep endpoint, path string, body any, out any) error {
	raw, err := c.doRaw(ctx, ep, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodePayload(raw, out)
}

// doRaw issues one request and returns the successful response body as-is.
func (c *Client) doRaw(ctx context.Context, ep endpoint, path string, body any) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "api."+ep.method+" "+ep.route)
	defer span.End()
	span.SetAttributes(telemetry.AttrMethod.String(ep.method), telemetry.AttrEndpoint.String(ep.route))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, verrors.Wrap(err, verrors.ErrCodeInvalidInput, "encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, c.baseURL+path, reader)
	if err != nil {
		return nil, verrors.Wrap(err, verrors.ErrCodeInvalidInput, "build request")
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	span.SetAttributes(telemetry.AttrRequestID.String(requestID))

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, verrors.Wrap(err, verrors.ErrCodeStorageRead, "read session token")
		}
		if token = strings.TrimSpace(token); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metricRequestDuration.WithLabelValues(ep.route).Observe(time.Since(start).Seconds())
	if err != nil {
		metricRequests.WithLabelValues(ep.route, statusLabel(0)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "no response")
		if ctx.Err() != nil {
			return nil, err
		}
		_ = c.logger.Warn(logging.CategoryNetwork, "request_unreachable", ErrUnreachable.Error(), map[string]any{
			"method":     ep.method,
			"path":       path,
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, verrors.Wrap(fmt.Errorf("%w: %v", ErrUnreachable, err), verrors.ErrCodeUnreachable, ep.method+" "+path).
			WithRetryable(true).
			WithContext("request_id", requestID)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	metricRequests.WithLabelValues(ep.route, statusLabel(resp.StatusCode)).Inc()
	span.SetAttributes(telemetry.AttrStatusCode.Int(resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if readErr != nil {
			return nil, verrors.Wrap(readErr, verrors.ErrCodeMalformedResponse, "read response body")
		}
		return raw, nil
	}

	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		Method:     ep.method,
		Path:       path,
		RequestID:  requestID,
	}
	if env, _, ok := parseEnvelope(raw); ok {
		statusErr.ErrorField = env.Error
		statusErr.MessageField = env.Message
	}
	span.SetStatus(codes.Error, statusErr.Error())
	c.classify(statusErr)
	return nil, statusErr
}

// classify runs the side effects for a failed response. Only 401 changes
// anything outside the client, and only through subscribers.
func (c *Client) classify(se *StatusError) {
	details := map[string]any{
		"method":     se.Method,
		"path":       se.Path,
		"status":     se.StatusCode,
		"request_id": se.RequestID,
	}
	switch se.Code() {
	case verrors.ErrCodeUnauthorized:
		_ = c.logger.Warn(logging.CategoryAuth, "unauthorized", "session rejected by backend", details)
		c.emitUnauthorized(UnauthorizedEvent{
			Method:    se.Method,
			Path:      se.Path,
			RequestID: se.RequestID,
			At:        time.Now(),
		})
		return
	case verrors.ErrCodeForbidden:
		_ = c.logger.Warn(logging.CategoryNetwork, "forbidden", "forbidden - insufficient permissions", details)
	case verrors.ErrCodeNotFound:
		_ = c.logger.Warn(logging.CategoryNetwork, "not_found", "resource not found", details)
	case verrors.ErrCodeBackendFault:
		_ = c.logger.Error(logging.CategoryNetwork, "server_error", "server error - please try again later", details)
	default:
		_ = c.logger.Warn(logging.CategoryNetwork, "request_failed", se.Error(), details)
	}
	c.hub.Emit(telemetry.EventRequestFailed, details)
}
