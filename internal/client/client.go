// Package client talks to a remote Tables server over its JSON/HTTP API.
//
// Every call goes through Client.Do, which places parameters in the query
// string or the JSON body, adds Basic auth and the OCS headers, and turns
// any failure into a *core.Error. The per-resource methods (tables, views,
// columns, rows, shares, import) only build paths and parameters; row writes
// additionally fetch the target's columns and run the values through
// core.Format first.
package client

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/tablelink/internal/core"
	"golang.org/x/time/rate"
)

// APIPath is the v1 API root below the server URL.
const APIPath = "/index.php/apps/tables/api/1"

// Config holds the connection settings for one remote server.
type Config struct {
	// BaseURL is the server root, e.g. https://cloud.example.com
	BaseURL string

	// Username and Password are sent as Basic auth. Use an app password.
	Username string
	Password string

	// Timeout bounds a single HTTP exchange (default: 30s)
	Timeout time.Duration

	// RateLimit is the maximum number of requests per second; 0 disables
	// client-side throttling.
	RateLimit float64

	// RateBurst is the number of requests allowed at once (default: 1)
	RateBurst int

	// Format controls value conversion for row writes and projection.
	Format core.FormatOptions
}

// Client is safe for concurrent use.
type Client struct {
	base     *url.URL
	username string
	password string

	http     *http.Client
	limiter  *rate.Limiter
	observer observerChain
	format   core.FormatOptions
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithObserver adds a telemetry observer. Observers are called in the order
// they were added.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = c.observer.with(o)
	}
}

// WithRateLimit throttles outgoing requests to rps per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = newLimiter(rps, burst)
	}
}

// New validates cfg and returns a ready Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("client: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, &core.Error{Kind: core.KindValidation, Field: "baseURL", Value: cfg.BaseURL, Message: "invalid base URL", Cause: err}
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, core.NewValidationError("baseURL", cfg.BaseURL, "base URL must use http or https")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	format := cfg.Format
	if format.DateTimeFormat == "" {
		format.DateTimeFormat = core.DateTimeISO
	}

	c := &Client{
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		limiter:  newLimiter(cfg.RateLimit, cfg.RateBurst),
		format:   format,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FormatOptions returns the options used for row writes.
func (c *Client) FormatOptions() core.FormatOptions {
	return c.format
}

// WithFormat returns a shallow copy of c that formats row values with opts.
// The copy shares the HTTP client, limiter and observers.
func (c *Client) WithFormat(opts core.FormatOptions) *Client {
	cp := *c
	if opts.DateTimeFormat == "" {
		opts.DateTimeFormat = core.DateTimeISO
	}
	cp.format = opts
	return &cp
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
