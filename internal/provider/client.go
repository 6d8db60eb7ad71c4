package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/collectorvault/appraise/internal/resilience"
)

// ClientOptions configures the shared provider HTTP client.
type ClientOptions struct {
	UserAgent string
	Timeout   time.Duration

	// PerHostRate is a politeness floor applied per host, independent of
	// each provider's sliding-window budget. Zero means 10 req/s.
	PerHostRate  rate.Limit
	PerHostBurst int
}

// Client is the HTTP client shared by all provider adapters. Retry, circuit
// breaking, and the per-provider request budget live in the resilience
// guard; the client only handles transport, decoding, and per-host pacing.
type Client struct {
	http *http.Client
	opts ClientOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a provider HTTP client with the given options.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "appraise/1.0"
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 10
	}
	if opts.PerHostBurst == 0 {
		opts.PerHostBurst = 10
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(c.opts.PerHostRate, c.opts.PerHostBurst)
		c.limiters[host] = lim
	}
	return lim
}

// GetJSON performs a GET and decodes the JSON response into v. Non-2xx
// statuses are returned as *resilience.HTTPError so the guard can classify
// them; decode failures are not transient and fail immediately.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	if err := c.limiterFor(rawURL).Wait(ctx); err != nil {
		return eris.Wrap(err, "provider: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "provider: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &resilience.HTTPError{Status: resp.StatusCode, URL: rawURL}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return eris.Wrapf(err, "provider: decode response from %s", rawURL)
	}
	return nil
}
