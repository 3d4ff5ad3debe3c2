// Package api is the HTTP/JSON client for the storage backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/vaultfm/vaultfm/internal/config"
	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/http"
	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/metrics"
	"github.com/vaultfm/vaultfm/internal/ratelimit"
)

// retryLogger implements the retryablehttp.LeveledLogger interface on top of zerolog.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client talks to the storage backend. Every request carries the bearer token
// and a fresh X-Request-ID, and waits on the session rate limiter.
//
// JSON calls go through retryablehttp. Uploads use the plain transport: their
// bodies are streamed and must not be buffered for replay, chunk retries are
// handled per part by the upload package.
type Client struct {
	httpClient   *nethttp.Client // retrying, JSON calls
	uploadClient *nethttp.Client // non-retrying, streamed bodies
	retry        *retryablehttp.Client
	baseURL      string
	token        string
	limiter      *ratelimit.Limiter
	logger       *logging.Logger

	mu             sync.RWMutex
	onUnauthorized func(path string)
}

// NewClient creates a new API client.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, fmt.Errorf("server url is empty")
	}
	logger = logging.OrNop(logger).Component("api")

	transport := http.NewClient()

	limiter := ratelimit.NewSession()
	limiter.SetLogger(logger)

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = transport
	retryClient.RetryMax = constants.APIRetryMax
	retryClient.RetryWaitMin = constants.APIRetryWaitMin
	retryClient.RetryWaitMax = constants.APIRetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.CheckRetry = checkRetry
	// Hand back the last response once retries are exhausted so callers see the status
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.ResponseLogHook = func(_ retryablehttp.Logger, resp *nethttp.Response) {
		if resp.StatusCode == nethttp.StatusTooManyRequests {
			if d := retryAfter(resp.Header.Get("Retry-After")); d > 0 {
				limiter.SetCooldown(d)
			} else {
				limiter.Drain()
			}
		}
	}

	return &Client{
		httpClient:   retryClient.StandardClient(),
		uploadClient: transport,
		retry:        retryClient,
		baseURL:      strings.TrimSuffix(cfg.ServerURL, "/"),
		token:        cfg.Token,
		limiter:      limiter,
		logger:       logger,
	}, nil
}

// SetUnauthorizedHandler registers the hook fired when the backend rejects
// the token. The hook runs on the calling goroutine.
func (c *Client) SetUnauthorizedHandler(fn func(path string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// SetRetryPolicy overrides the retryablehttp attempt count and wait bounds.
func (c *Client) SetRetryPolicy(max int, waitMin, waitMax time.Duration) {
	c.retry.RetryMax = max
	c.retry.RetryWaitMin = waitMin
	c.retry.RetryWaitMax = waitMax
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// checkRetry is retryablehttp.DefaultRetryPolicy, except that a POST which
// reached the server is only retried on 429. Copies, folder creation, links
// and upload completion are not idempotent.
func checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.Request != nil &&
		resp.Request.Method == nethttp.MethodPost &&
		resp.StatusCode != nethttp.StatusTooManyRequests {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := nethttp.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// doRequest performs a JSON request with authentication and rate limiting.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := c.newRequest(ctx, method, path, query, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(c.httpClient, req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*nethttp.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := nethttp.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(constants.RequestIDHeader, uuid.New().String())
	return req, nil
}

// send waits for the limiter, executes req and handles 401.
func (c *Client) send(hc *nethttp.Client, req *nethttp.Request) (*nethttp.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("request_id", req.Header.Get(constants.RequestIDHeader)).
			Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	metrics.RecordAPIRequest(req.Method, resp.StatusCode, time.Since(start))

	if resp.StatusCode == nethttp.StatusUnauthorized {
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook(req.URL.Path)
		}
	}
	return resp, nil
}

// doJSON performs a request and decodes a 2xx JSON response into out.
// out may be nil when the response body is not needed.
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return decodeResponse(op, resp, out)
}

func decodeResponse(op string, resp *nethttp.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty response body", op)
		}
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
