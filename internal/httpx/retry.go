package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"vnmarket/internal/provider"
)

// RetryPolicy bounds how often and how patiently a request is retried.
// The delay before retry n (starting at 0) is BaseDelay*2^n plus a random
// jitter below BaseDelay, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

// Backoff returns the delay before retry n.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 0; i < n && (p.MaxDelay <= 0 || d < p.MaxDelay); i++ {
		d *= 2
	}
	d += rand.N(p.BaseDelay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// RequestFunc builds a fresh request for each attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Send performs the request built by build, retrying transient failures,
// and returns the body of the first 2xx response. Failures are returned as
// *provider.Error.
func (c *Client) Send(ctx context.Context, op string, build RequestFunc) ([]byte, error) {
	return c.send(ctx, op, build, nil)
}

// JSON is Send followed by decoding the body into out. A body that does not
// decode is retried like a transient failure.
func (c *Client) JSON(ctx context.Context, op string, build RequestFunc, out any) error {
	_, err := c.send(ctx, op, build, func(b []byte) error { return json.Unmarshal(b, out) })
	return err
}

func (c *Client) send(ctx context.Context, op string, build RequestFunc, decode func([]byte) error) ([]byte, error) {
	attempts := max(c.Retry.MaxAttempts, 1)
	var lastErr *provider.Error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			d := c.Retry.Backoff(attempt - 2)
			c.logf("%s %s: attempt %d/%d failed: %v; retrying in %s", c.Provider, op, attempt-1, attempts, lastErr.Err, d.Round(time.Millisecond))
			c.rotateAgent()
			if err := sleep(ctx, d); err != nil {
				return nil, c.contextError(op, err)
			}
		}
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, c.contextError(op, err)
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, provider.NewError(provider.KindInvalidInput, c.Provider, op, fmt.Errorf("creating request: %w", err))
		}
		res, err := c.Do(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.contextError(op, ctx.Err())
			}
			kind := provider.KindOf(err)
			if kind != provider.KindTimeout {
				kind = provider.KindNetwork
			}
			lastErr = provider.NewError(kind, c.Provider, op, fmt.Errorf("performing request: %w", err))
			continue
		}

		body, err := readBody(res)
		if err != nil {
			lastErr = provider.NewError(provider.KindNetwork, c.Provider, op, fmt.Errorf("reading response: %w", err))
			continue
		}
		if res.StatusCode < 200 || res.StatusCode > 299 {
			lastErr = &provider.Error{
				Kind:     provider.KindForStatus(res.StatusCode),
				Provider: c.Provider,
				Op:       op,
				Status:   res.StatusCode,
				Err:      fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, snippet(body)),
			}
			if !retryableStatus(res.StatusCode) {
				return nil, lastErr
			}
			continue
		}
		if decode != nil {
			if err := decode(body); err != nil {
				lastErr = &provider.Error{
					Kind:     provider.KindDecode,
					Provider: c.Provider,
					Op:       op,
					Status:   res.StatusCode,
					Err:      fmt.Errorf("decoding response: %w (body %s)", err, snippet(body)),
				}
				continue
			}
		}
		return body, nil
	}
	if attempts > 1 {
		c.logf("%s %s: giving up after %d attempts: %v", c.Provider, op, attempts, lastErr.Err)
	}
	return nil, lastErr
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusForbidden, code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

func (c *Client) contextError(op string, err error) error {
	return provider.NewError(provider.KindOf(err), c.Provider, op, err)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	if s == "" {
		s = "<empty body>"
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
