package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/avvvet/naturalcheck/internal/models"
)

const (
	// DefaultTimeout bounds each of connect, read and write.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "naturalcheck/1.0"
)

// HTTPClient talks to an OpenAI-compatible chat-completions API. It holds no
// per-call state, so one instance serves concurrent analyses.
type HTTPClient struct {
	http    *http.Client
	log     logrus.FieldLogger
	limiter *rate.Limiter
	timeout time.Duration
	debug   bool
}

// Option customizes the client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client. Debug tracing wraps its transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the connect/read/write bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *HTTPClient) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithDebugTrace logs every request and response at debug level.
func WithDebugTrace(enabled bool) Option {
	return func(c *HTTPClient) {
		c.debug = enabled
	}
}

// WithRateLimit throttles outbound requests. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewHTTPClient(opts ...Option) *HTTPClient {
	c := &HTTPClient{
		log:     logrus.StandardLogger(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = newHTTPClient(c.timeout)
	}
	if c.debug {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		traced := *c.http
		traced.Transport = &traceTransport{next: base, log: c.log}
		c.http = &traced
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		// connect + write + read
		Timeout: 3 * timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Send issues one chat-completion request. It does not retry.
//
// Errors are *TransportError when no response arrived, *HTTPError for non-2xx
// statuses (errors.Is(err, ErrAuth) for 401/403), ErrMalformedResponse when
// a 2xx body cannot be decoded, and ctx.Err() when the caller cancelled.
func (c *HTTPClient) Send(ctx context.Context, cfg models.AnalysisConfig, conv models.Conversation) (*ChatCompletionResponse, error) {
	endpoint, err := JoinEndpoint(cfg.Endpoint, ChatCompletionsPath)
	if err != nil {
		return nil, err
	}

	reqBody := ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    conv,
		Temperature: cfg.Temperature,
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, endpoint, bearerToken(cfg), encoded)
	if err != nil {
		return nil, err
	}

	var out ChatCompletionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// do performs a single request and returns the body of a 2xx response.
// bearerToken is the trimmed API key, or "" when no Authorization header
// should be sent.
func bearerToken(cfg models.AnalysisConfig) string {
	if !cfg.HasAPIKey() {
		return ""
	}
	return strings.TrimSpace(cfg.APIKey)
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint, apiKey string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: method, URL: endpoint, Err: err}
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"url":      endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("LLM API response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
