// Package dataservice is the HTTP client for the provider REST API.
//
// Every entity lives under /{scope}/{entity}. Lists are fetched with GET,
// records are created with POST, updated with POST /{id} (the API accepts
// multipart bodies there) and removed with DELETE /{id}. Failures come back
// as *TransportError or *ServerError; the client never retries.
package dataservice

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nimburion/providerdesk/pkg/observability/logger"
	"github.com/nimburion/providerdesk/pkg/observability/metrics"
	"github.com/nimburion/providerdesk/pkg/observability/tracing"
	"github.com/nimburion/providerdesk/pkg/resilience"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

const maxErrorMessage = 200

// Config configures a Client.
type Config struct {
	BaseURL string
	// Scope is the provider path prefix, e.g. "provider".
	Scope   string
	Timeout time.Duration
	// RateLimit caps requests per second; zero disables the limiter.
	RateLimit float64
	Burst     int
	// BreakerFailures consecutive transport or 5xx failures open the
	// breaker for BreakerCooldown. Zero disables the breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
	UserAgent       string
}

// Client talks to the data service. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	scope     string
	http      *http.Client
	tokens    TokenSource
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
	timeout   time.Duration
	userAgent string
	logger    logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenSource sets the bearer token source.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		if ts != nil {
			c.tokens = ts
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("data service base url is required")
	}
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse data service base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("data service base url must be http or https: %q", cfg.BaseURL)
	}

	c := &Client{
		base:      base,
		scope:     strings.Trim(cfg.Scope, "/"),
		http:      &http.Client{},
		tokens:    NewStaticToken(""),
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		logger:    logger.NewNop(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, cfg.Burst))
	}
	if cfg.BreakerFailures > 0 {
		c.breaker = resilience.NewCircuitBreaker(resilience.BreakerConfig{
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
			IsFailure:   tripsBreaker,
			OnStateChange: func(from, to resilience.State) {
				metrics.SetBreakerState(c.base.String(), int(to))
				c.logger.Warn("data service breaker changed state", "from", from.String(), "to", to.String())
			},
		})
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// List fetches a collection and returns the raw response body.
func (c *Client) List(ctx context.Context, res Resource, p Params) ([]byte, error) {
	return c.do(ctx, http.MethodGet, res, "", p.values(), nil)
}

// Create posts a new record and returns the raw response body.
func (c *Client) Create(ctx context.Context, res Resource, body Body) ([]byte, error) {
	return c.do(ctx, http.MethodPost, res, "", nil, &body)
}

// Update posts a replacement payload to /{id}.
func (c *Client) Update(ctx context.Context, res Resource, id string, body Body) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("update requires an id")
	}
	return c.do(ctx, http.MethodPost, res, id, nil, &body)
}

// Delete removes a record. Deleting a missing id yields a 404 ServerError.
func (c *Client) Delete(ctx context.Context, res Resource, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("delete requires an id")
	}
	_, err := c.do(ctx, http.MethodDelete, res, id, nil, nil)
	return err
}

// CheckImage sends a HEAD request for an image URL and returns a
// *ServerError when the response is not 2xx. Media hosts are not the data
// service, so no token is sent and the breaker is not consulted.
func (c *Client) CheckImage(ctx context.Context, imageURL string) error {
	const op, res = http.MethodHead, "media"
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: op, Resource: res, Err: err}
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, op, imageURL, nil)
	if err != nil {
		return &TransportError{Op: op, Resource: res, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordClientRequest(op, res, 0, time.Since(started))
		return &TransportError{Op: op, Resource: res, Err: err}
	}
	_ = resp.Body.Close()
	metrics.RecordClientRequest(op, res, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("image check failed", "url", imageURL, "status", resp.StatusCode)
		return &ServerError{Status: resp.StatusCode}
	}
	return nil
}

// Endpoint returns the absolute URL of res, or of one record when id is set.
func (c *Client) Endpoint(res Resource, id string, query url.Values) string {
	segments := []string{}
	if c.scope != "" {
		segments = append(segments, c.scope)
	}
	segments = append(segments, string(res))
	prefix := strings.TrimSuffix(c.base.Path, "/") + "/" + strings.Join(segments, "/")

	u := *c.base
	u.Path = prefix
	u.RawPath = ""
	if id != "" {
		u.Path = prefix + "/" + id
		u.RawPath = prefix + "/" + url.PathEscape(id)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method string, res Resource, id string, query url.Values, body *Body) ([]byte, error) {
	endpoint := c.Endpoint(res, id, query)
	var out []byte
	call := func() error {
		var err error
		out, err = c.roundTrip(ctx, method, res, endpoint, body)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		return nil, &TransportError{Op: method, Resource: string(res), Err: err}
	}
	return out, err
}

func (c *Client) roundTrip(ctx context.Context, method string, res Resource, endpoint string, body *Body) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return nil, serverErr
		}
		return nil, &TransportError{Op: method, Resource: string(res), Err: fmt.Errorf("obtain token: %w", err)}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: method, Resource: string(res), Err: err}
		}
	}

	requestID := uuid.NewString()
	ctx = logger.ContextWithRequestID(ctx, requestID)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var payload io.Reader
	if body != nil {
		payload = body.reader()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return nil, &TransportError{Op: method, Resource: string(res), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil && body.ContentType != "" {
		req.Header.Set("Content-Type", body.ContentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	ctx, span := tracing.StartClientSpan(ctx, req, string(res))
	defer span.End()
	req = req.WithContext(ctx)
	log := c.logger.WithContext(ctx)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordClientRequest(method, string(res), 0, time.Since(started))
		tracing.RecordError(span, err)
		log.Warn("data service request failed", "method", method, "resource", res, "error", err)
		return nil, &TransportError{Op: method, Resource: string(res), Err: err}
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	elapsed := time.Since(started)
	if err != nil {
		metrics.RecordClientRequest(method, string(res), 0, elapsed)
		tracing.RecordError(span, err)
		return nil, &TransportError{Op: method, Resource: string(res), Err: fmt.Errorf("read response: %w", err)}
	}
	metrics.RecordClientRequest(method, string(res), resp.StatusCode, elapsed)
	tracing.SetHTTPStatus(span, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serverErr := &ServerError{Status: resp.StatusCode, Message: errorMessage(raw), Body: raw}
		log.Info("data service rejected request", "method", method, "resource", res, "status", resp.StatusCode)
		return nil, serverErr
	}
	log.Debug("data service request done", "method", method, "resource", res, "status", resp.StatusCode, "duration", elapsed)
	return raw, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

func errorMessage(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '{' {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &payload); err == nil {
			if payload.Message != "" {
				return payload.Message
			}
			return payload.Error
		}
	}
	if len(trimmed) > maxErrorMessage || bytes.ContainsAny(trimmed, "<>") {
		return ""
	}
	return string(trimmed)
}
