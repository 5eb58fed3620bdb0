// Package api is the gateway to the calendar backend. Every outbound request
// goes through Client, which attaches the bearer token, validates the request
// against the backend contract and normalizes success and error shapes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/log"
	"github.com/felixgeelhaar/calsync/internal/metrics"
	"github.com/felixgeelhaar/calsync/internal/telemetry"
	"github.com/felixgeelhaar/calsync/internal/version"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// TokenSource yields the bearer token of the current session together with
// the session epoch it belongs to. *session.Store implements it.
type TokenSource interface {
	Token() (token string, epoch uint64, ok bool)
}

// UnauthenticatedHandler is told when an authenticated request is rejected
// with 401. epoch is the session epoch the rejected token belonged to.
type UnauthenticatedHandler func(ctx context.Context, epoch uint64)

// Client is the calendar backend API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	contract   *Contract
	logger     *log.Logger
	metrics    *metrics.Metrics

	mu       sync.RWMutex
	onUnauth UnauthenticatedHandler
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithContract validates requests against contract before sending them.
func WithContract(contract *Contract) Option {
	return func(c *Client) { c.contract = contract }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for baseURL. tokens may be nil for a client
// that only makes unauthenticated calls.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "api")
	return c
}

// BaseURL returns the resolved service address.
func (c *Client) BaseURL() string { return c.baseURL }

// OnUnauthenticated installs the handler for rejected authenticated calls.
func (c *Client) OnUnauthenticated(h UnauthenticatedHandler) {
	c.mu.Lock()
	c.onUnauth = h
	c.mu.Unlock()
}

// Call sends one request. body, when non-nil, is sent as JSON. On success the
// response is decoded into out: raw text when out is a *string, JSON
// otherwise. out may be nil.
func (c *Client) Call(ctx context.Context, method, endpoint string, body any, authenticated bool, out any) error {
	route := endpoint
	if i := strings.IndexByte(route, '?'); i >= 0 {
		route = route[:i]
	}
	if c.contract != nil {
		if tmpl, ok := c.contract.Template(route); ok {
			route = tmpl
		}
	}
	return c.do(ctx, request{
		method: method,
		route:  route,
		path:   endpoint,
		body:   body,
		auth:   authenticated,
		out:    out,
	})
}

type request struct {
	method string
	// route is the path template, used for contract lookup, spans and metrics
	route string
	path  string
	query map[string]string
	body  any
	auth  bool
	out   any
}

func (c *Client) do(ctx context.Context, r request) error {
	ctx, span := telemetry.StartRequestSpan(ctx, r.method, r.route)
	defer span.End()

	start := time.Now()
	status := "not_sent"
	defer func() {
		c.metrics.RecordRequest(r.method, r.route, status, time.Since(start))
	}()

	var token string
	var epoch uint64
	if r.auth {
		var ok bool
		if c.tokens != nil {
			token, epoch, ok = c.tokens.Token()
		}
		if !ok || token == "" {
			err := errors.NewUnauthenticated("not signed in")
			telemetry.RecordError(span, err)
			return err
		}
	}

	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return errors.NewValidationFailure("", fmt.Sprintf("failed to encode request body: %v", err))
		}
	}

	if c.contract != nil {
		if err := c.contract.ValidateRequest(ctx, r.method, r.route, r.query, payload); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		if !r.auth && c.contract.RequiresAuth(r.method, r.route) {
			err := errors.NewValidationFailure("", fmt.Sprintf("%s %s needs a signed-in session", r.method, r.route))
			telemetry.RecordError(span, err)
			return err
		}
	}

	req, err := c.newRequest(ctx, r, payload, token)
	if err != nil {
		return errors.Wrap(errors.ErrCodeRequestFailed, "failed to create request", err)
	}
	reqID := req.Header.Get("X-Request-ID")
	logger := c.logger.With("method", r.method, "endpoint", r.route, "request_id", reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status = "network_error"
		nerr := errors.NewNetworkFailure(err)
		telemetry.RecordError(span, nerr)
		logger.WithError(nerr).DebugContext(ctx, "request failed")
		return nerr
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	logger.DebugContext(ctx, "response", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := responseError(resp)
		telemetry.RecordError(span, apiErr)
		if r.auth && resp.StatusCode == http.StatusUnauthorized {
			c.reportUnauthenticated(ctx, epoch)
		}
		return apiErr
	}

	if err := decodeBody(resp, r.out); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

func (c *Client) newRequest(ctx context.Context, r request, payload []byte, token string) (*http.Request, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reqBody)
	if err != nil {
		return nil, err
	}

	if len(r.query) > 0 {
		q := req.URL.Query()
		for k, v := range r.query {
			if v != "" {
				q.Set(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	telemetry.InjectHeaders(ctx, req.Header)
	return req, nil
}

func (c *Client) reportUnauthenticated(ctx context.Context, epoch uint64) {
	c.mu.RLock()
	h := c.onUnauth
	c.mu.RUnlock()
	if h != nil {
		h(ctx, epoch)
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// responseError maps a non-2xx response onto the error taxonomy.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var msg string
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		msg = errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
	}

	var e *errors.CalsyncError
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		e = errors.NewUnauthenticated(msg)
	case http.StatusForbidden:
		e = errors.NewForbidden(msg)
	default:
		e = errors.NewRequestFailed(resp.StatusCode, msg)
	}
	if msg != "" {
		e.FromServer()
	}
	return e
}

func decodeBody(resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkFailure(err)
	}

	if s, ok := out.(*string); ok {
		*s = string(data)
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if !isJSON(resp) && !json.Valid(data) {
		return errors.NewRequestFailed(resp.StatusCode, "unexpected non-JSON response")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(errors.ErrCodeRequestFailed, "failed to decode response", err).
			WithStatus(resp.StatusCode)
	}
	return nil
}

func isJSON(resp *http.Response) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
