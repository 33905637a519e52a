package vci

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vnmarket/internal/httpx"
	"vnmarket/internal/provider/ratelimit"
)

const (
	// Name identifies this provider in errors and logs.
	Name = "vci"

	defaultBaseURL = "https://trading.vietcap.com.vn"

	// DefaultMaxSymbolsPerRequest bounds the symbol list of one chart request.
	DefaultMaxSymbolsPerRequest = 50
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=vci_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Vietcap (VCI) trading API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header

	limiter     ratelimit.Limiter
	retry       httpx.RetryPolicy
	randomAgent bool
	logger      *log.Logger
	maxSymbols  int
	now         func() time.Time

	transport *httpx.Client
}

// Option is a configuration option for the VCI client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithLimiter gates every outbound request, retries included.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p httpx.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithRandomAgent toggles user agent rotation.
func WithRandomAgent(on bool) Option {
	return func(c *Client) {
		c.randomAgent = on
	}
}

// WithLogger sets the logger for retry and decode diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMaxSymbolsPerRequest bounds how many symbols share one chart request.
func WithMaxSymbolsPerRequest(n int) Option {
	return func(c *Client) {
		c.maxSymbols = n
	}
}

// WithClock overrides the current time used for default end dates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new VCI client.
func NewClient(options ...Option) (*Client, error) {
	var c = &Client{
		baseURL:     defaultBaseURL,
		httpClient:  httpx.NewHTTPClient(30 * time.Second),
		header:      http.Header{},
		retry:       httpx.DefaultRetryPolicy(),
		randomAgent: true,
		logger:      log.Default(),
		maxSymbols:  DefaultMaxSymbolsPerRequest,
		now:         time.Now,
	}
	for _, option := range options {
		option(c)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", c.baseURL)
	}
	if c.maxSymbols <= 0 {
		c.maxSymbols = DefaultMaxSymbolsPerRequest
	}

	headers := httpx.BrowserHeaders(defaultBaseURL+"/", defaultBaseURL)
	headers["Content-Type"] = "application/json"
	for key := range c.header {
		headers[key] = c.header.Get(key)
	}
	c.transport = &httpx.Client{
		HTTP:        c.httpClient,
		RandomAgent: c.randomAgent,
		Headers:     headers,
		Limiter:     c.limiter,
		Retry:       c.retry,
		Provider:    Name,
		Logger:      c.logger,
	}
	if !c.randomAgent {
		c.transport.UserAgent = httpx.DefaultUserAgent
	}
	return c, nil
}

func (c *Client) Name() string { return Name }
