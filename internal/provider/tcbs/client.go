package tcbs

import (
	"context"
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
	Name = "tcbs"

	defaultBaseURL = "https://apipubaws.tcbs.com.vn"
	siteURL        = "https://www.tcbs.com.vn"

	// DefaultBatchConcurrency bounds the parallel requests of BatchHistory.
	DefaultBatchConcurrency = 2
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=tcbs_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the TCBS public REST API.
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
	concurrency int
	now         func() time.Time

	transport *httpx.Client
}

// Option is a configuration option for the TCBS client.
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

// WithBatchConcurrency bounds how many symbols BatchHistory fetches at once.
func WithBatchConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithClock overrides the current time used for default end dates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new TCBS client.
func NewClient(options ...Option) (*Client, error) {
	var c = &Client{
		baseURL:     defaultBaseURL,
		httpClient:  httpx.NewHTTPClient(30 * time.Second),
		header:      http.Header{},
		retry:       httpx.DefaultRetryPolicy(),
		randomAgent: true,
		logger:      log.Default(),
		concurrency: DefaultBatchConcurrency,
		now:         time.Now,
	}
	for _, option := range options {
		option(c)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", c.baseURL)
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultBatchConcurrency
	}

	headers := httpx.BrowserHeaders(siteURL+"/", siteURL)
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

// get decodes the JSON document at path with the given query into out.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.transport.JSON(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, out)
}
