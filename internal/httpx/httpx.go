package httpx

import (
	"context"
	"io"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"vnmarket/internal/provider/ratelimit"
)

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around an HTTP client with browser-like
// defaults, a per-request rate limiter and a retry policy.
type Client struct {
	HTTP      Doer
	UserAgent string
	// RandomAgent picks a user agent from the built-in pool per request
	// when no UserAgent is set, and again on every retry.
	RandomAgent bool
	Headers     map[string]string
	Limiter     ratelimit.Limiter
	Retry       RetryPolicy
	// Provider names the upstream in classified errors.
	Provider string
	Logger   *log.Logger

	mu    sync.Mutex
	agent string
}

// New returns a client with a tuned transport and the default retry policy.
func New(timeout time.Duration) *Client {
	return &Client{HTTP: NewHTTPClient(timeout), Retry: DefaultRetryPolicy()}
}

// NewHTTPClient returns an *http.Client with a tuned transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Do sends one request with the client's default headers applied.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		if ua := c.userAgent(); ua != "" {
			req.Header.Set("User-Agent", ua)
		}
	}
	return c.HTTP.Do(req)
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	if !c.RandomAgent {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.agent == "" {
		c.agent = userAgents[rand.IntN(len(userAgents))]
	}
	return c.agent
}

// rotateAgent draws a new user agent for the next attempt.
func (c *Client) rotateAgent() {
	if !c.RandomAgent || c.UserAgent != "" {
		return
	}
	c.mu.Lock()
	c.agent = userAgents[rand.IntN(len(userAgents))]
	c.mu.Unlock()
}

func (c *Client) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// maxBody caps how much of a response is read into memory.
const maxBody = 64 << 20

func readBody(res *http.Response) ([]byte, error) {
	defer res.Body.Close()
	return io.ReadAll(io.LimitReader(res.Body, maxBody))
}
