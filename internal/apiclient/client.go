// Package apiclient performs single HTTP calls against the fintrack REST API.
// It attaches the right bearer token, speaks JSON and turns every failure into
// one of the apierror types. It never retries.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"go-fintrack/pkg/apierror"
)

const (
	DefaultTimeout = 30 * time.Second

	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerUserAgent     = "User-Agent"
	headerRequestID     = "X-Request-ID"
	contentTypeJSON     = "application/json"
	defaultUserAgent    = "fintrack-go/1.0"

	maxErrorBody = 64 << 10
)

// TokenSource supplies the bearer credentials. *tokenstore.Store satisfies it.
// An empty string means no token is stored.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
	GetRefreshToken(ctx context.Context) (string, error)
}

// Request describes one API call. Path is relative to the base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    []byte
	Headers map[string]string

	// Refresh authenticates with the refresh token instead of the access token.
	Refresh bool
	// Anonymous sends no Authorization header at all.
	Anonymous bool
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	metrics    *Metrics
	logger     *slog.Logger
	userAgent  string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the request timeout on a copy of the current HTTP client,
// so a client passed to WithHTTPClient is never modified.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			cp := *c.httpClient
			cp.Timeout = timeout
			c.httpClient = &cp
		}
	}
}

// WithRateLimit throttles outgoing calls to requestsPerMinute. Zero disables
// throttling.
func WithRateLimit(requestsPerMinute int) Option {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			c.limiter = nil
			return
		}
		burst := requestsPerMinute / 6
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		logger:     slog.Default(),
		userAgent:  defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// DoJSON marshals in as the request body and then behaves like Do.
func (c *Client) DoJSON(ctx context.Context, req Request, in any, out any) error {
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		req.Body = body
	}
	return c.Do(ctx, req, out)
}

// Do issues req and decodes a 2xx JSON body into out (which may be nil).
// Non-2xx answers become *apierror.APIError, or *apierror.AuthExpiredError
// when the server reports an expired token; anything that prevents a usable
// answer becomes *apierror.NetworkError.
func (c *Client) Do(ctx context.Context, req Request, out any) (err error) {
	start := time.Now()
	route := metricsRoute(req.Path)
	defer func() {
		if c.metrics != nil {
			c.metrics.observe(req.Method, route, outcome(err), start)
		}
	}()

	if c.limiter != nil {
		if waitErr := c.limiter.Wait(ctx); waitErr != nil {
			return &apierror.NetworkError{Op: "rate limit wait", Err: waitErr}
		}
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return err
	}

	requestID := httpReq.Header.Get(headerRequestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("api request failed", "method", req.Method, "path", req.Path, "request_id", requestID, "error", err)
		return &apierror.NetworkError{Op: req.Method + " " + req.Path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseError(resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apierror.NetworkError{Op: "read response", Err: err}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &apierror.NetworkError{Op: "decode response", Err: err}
	}

	return nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	reqURL := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		reqURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)
	httpReq.Header.Set(headerUserAgent, c.userAgent)
	httpReq.Header.Set(headerRequestID, uuid.NewString())

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if !req.Anonymous {
		token, err := c.token(ctx, req.Refresh)
		if err != nil {
			return nil, err
		}
		if token != "" {
			httpReq.Header.Set(headerAuthorization, "Bearer "+token)
		}
	}

	return httpReq, nil
}

func (c *Client) token(ctx context.Context, refresh bool) (string, error) {
	if c.tokens == nil {
		return "", nil
	}

	var (
		token string
		err   error
	)
	if refresh {
		token, err = c.tokens.GetRefreshToken(ctx)
	} else {
		token, err = c.tokens.GetAccessToken(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}

	return token, nil
}

// errorEnvelope covers every error shape the API and its auth layer emit:
// {"error":"..."}, {"error":{"code":...}}, {"msg":"..."}, {"message":"..."}
// with an optional top-level code and details.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

type nestedError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func parseError(status int, body []byte) error {
	apiErr := &apierror.APIError{HTTPStatus: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Code = env.Code
		apiErr.Details = rawText(env.Details)

		if len(env.Error) > 0 {
			var s string
			var nested nestedError
			switch {
			case json.Unmarshal(env.Error, &s) == nil:
				apiErr.Message = s
			case json.Unmarshal(env.Error, &nested) == nil:
				apiErr.Message = nested.Message
				if nested.Code != "" {
					apiErr.Code = nested.Code
				}
				if d := rawText(nested.Details); d != "" {
					apiErr.Details = d
				}
			}
		}

		if apiErr.Message == "" {
			apiErr.Message = firstNonEmpty(env.Message, env.Msg)
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = apierror.DefaultMessage
	}

	if apiErr.Code == apierror.CodeTokenExpired {
		return &apierror.AuthExpiredError{APIError: apiErr}
	}

	return apiErr
}

func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apierror.ErrAuthExpired):
		return "auth_expired"
	case apierror.IsNetwork(err):
		return "network_error"
	}
	if _, ok := apierror.AsAPIError(err); ok {
		return "api_error"
	}
	return "client_error"
}
