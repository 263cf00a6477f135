package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
	"lofterscraper/pkg/cache"
	"lofterscraper/pkg/config"
	apperrors "lofterscraper/pkg/errors"
	"lofterscraper/pkg/logger"
	"lofterscraper/pkg/metrics"
	"lofterscraper/pkg/ratelimit"
)

// Client retrieves listing pages, posts and images
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration
	limiter    ratelimit.Limiter
	cache      *cache.Cache
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter paces every outgoing request through l
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithCache puts a document cache in front of Document
func WithCache(dc *cache.Cache) Option {
	return func(c *Client) { c.cache = dc }
}

// WithMetrics records fetch and cache metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client using the site and crawl settings of cfg
func NewClient(cfg *config.Config, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{},
		headers: map[string]string{
			"User-Agent":      cfg.Site.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		},
		timeout: cfg.Crawl.FetchTimeout,
		limiter: ratelimit.Unlimited{},
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs a GET with the configured headers. The caller owns the
// response body on success; non-2xx responses are closed and returned as errors.
func (c *Client) doRequest(ctx context.Context, addr string, wrap func(string, int, error) error) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrap(addr, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, wrap(addr, 0, err)
	}
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"url": addr,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrap(addr, 0, err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      addr,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if !apperrors.IsSuccessStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, wrap(addr, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}
	return resp, nil
}

// Fetch returns the decoded text of the document at addr
func (c *Client) Fetch(ctx context.Context, addr string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.doRequest(ctx, addr, apperrors.Fetch)
	if err != nil {
		c.metrics.ObserveFetch(false, time.Since(start))
		return "", err
	}
	defer resp.Body.Close()

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		c.metrics.ObserveFetch(false, time.Since(start))
		return "", apperrors.Fetch(addr, resp.StatusCode, err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		c.metrics.ObserveFetch(false, time.Since(start))
		return "", apperrors.Fetch(addr, resp.StatusCode, err)
	}

	c.metrics.ObserveFetch(true, time.Since(start))
	return string(data), nil
}

// Document returns the document at addr, consulting the cache first. Any
// failure is logged and reported as absent; only successful fetches are cached.
func (c *Client) Document(ctx context.Context, addr string) (string, bool) {
	if c.cache != nil {
		if doc, ok := c.cache.Get(addr); ok {
			c.metrics.CacheLookup(true)
			return doc, true
		}
		c.metrics.CacheLookup(false)
	}

	doc, err := c.Fetch(ctx, addr)
	if err != nil {
		c.logger.WithError(err).WarnWithFields("Cannot access document", map[string]interface{}{
			"url":  addr,
			"kind": string(apperrors.KindOf(err)),
		})
		return "", false
	}

	if c.cache != nil {
		c.cache.Put(addr, doc)
	}
	return doc, true
}

// Stream opens addr for a streamed download bounded by timeout. Closing the
// returned body releases the request.
func (c *Client) Stream(ctx context.Context, addr string, timeout time.Duration) (io.ReadCloser, error) {
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	resp, err := c.doRequest(ctx, addr, apperrors.Download)
	if err != nil {
		cancel()
		return nil, err
	}
	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
