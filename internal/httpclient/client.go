// Package httpclient is the rate limited, retrying HTTP client shared by
// every repository protocol.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/ratelimit"
)

const (
	DefaultMaxBody   = 64 << 20
	DefaultUserAgent = "metadata-harvester/1.0"
)

// ErrBodyTooLarge is returned when a response exceeds the configured limit.
var ErrBodyTooLarge = errors.New("response body too large")

// HTTPError is a non-200 response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth retrying.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRemoved reports whether err is a 404 or 410 response, which sources
// treat as confirmation that a record is gone.
func IsRemoved(err error) bool {
	var herr *HTTPError
	if !errors.As(err, &herr) {
		return false
	}
	return herr.StatusCode == http.StatusNotFound || herr.StatusCode == http.StatusGone
}

type Client struct {
	http       *http.Client
	limiter    ratelimit.Limiter
	maxRetries int
	maxBody    int64
	userAgent  string
	header     http.Header
	log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }
func WithMaxBody(n int64) Option           { return func(c *Client) { c.maxBody = n } }
func WithUserAgent(ua string) Option       { return func(c *Client) { c.userAgent = ua } }
func WithLogger(l *zap.Logger) Option      { return func(c *Client) { c.log = l } }

// WithHeader adds a header to every request, e.g. a CKAN API key.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.header.Set(key, value)
		}
	}
}

// New returns a client that waits on limiter before every attempt and
// retries transient failures up to maxRetries times.
func New(limiter ratelimit.Limiter, maxRetries int, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		http:       &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: max(maxRetries, 0),
		maxBody:    DefaultMaxBody,
		userAgent:  DefaultUserAgent,
		header:     http.Header{},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL with query merged into its query string and returns
// the whole body.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	u, err := buildURL(rawURL, query)
	if err != nil {
		return nil, err
	}

	op := func() ([]byte, error) {
		return c.do(ctx, u)
	}
	notify := func(err error, wait time.Duration) {
		c.log.Debug("retrying request", zap.String("url", u), zap.Duration("wait", wait), zap.Error(err))
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(ratelimit.NewBackoff(c.limiter, c.maxRetries)),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(notify),
	)
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	for k, vs := range c.header {
		req.Header[k] = vs
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, backoff.Permanent(fmt.Errorf("%w: %s exceeds %s", ErrBodyTooLarge, u, humanize.IBytes(uint64(c.maxBody))))
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	herr := &HTTPError{StatusCode: resp.StatusCode, URL: u, Body: snippet(body)}
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			c.log.Warn("server asked to slow down", zap.String("url", u), zap.Int("retry_after", secs))
			return nil, backoff.RetryAfter(secs)
		}
	}
	if herr.Temporary() {
		return nil, herr
	}
	return nil, backoff.Permanent(herr)
}

func buildURL(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q[k] = append([]string(nil), vs...)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func snippet(body []byte) string {
	const n = 200
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
