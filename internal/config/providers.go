package config

import (
	"fmt"
	"log"
	"time"

	"vnmarket/internal/aggregate"
	"vnmarket/internal/httpx"
	"vnmarket/internal/provider"
	"vnmarket/internal/provider/cache"
	"vnmarket/internal/provider/ratelimit"
	"vnmarket/internal/provider/tcbs"
	"vnmarket/internal/provider/vci"
)

// BuildProvider assembles the enabled providers into a failover, wrapped
// in a cache when a TTL is configured.
func (c Config) BuildProvider(logger *log.Logger) (provider.Provider, error) {
	if logger == nil {
		logger = log.Default()
	}
	var providers []provider.Provider
	for _, name := range c.enabled() {
		var (
			p   provider.Provider
			err error
		)
		switch name {
		case vci.Name:
			src := c.VCI
			p, err = vci.NewClient(
				vci.WithBaseURL(src.BaseURL),
				vci.WithHTTPClient(httpx.NewHTTPClient(src.timeout())),
				vci.WithLimiter(src.limiter()),
				vci.WithRetryPolicy(src.retryPolicy()),
				vci.WithRandomAgent(src.RandomAgent),
				vci.WithLogger(logger),
				vci.WithMaxSymbolsPerRequest(src.MaxSymbolsPerRequest),
			)
		case tcbs.Name:
			src := c.TCBS
			p, err = tcbs.NewClient(
				tcbs.WithBaseURL(src.BaseURL),
				tcbs.WithHTTPClient(httpx.NewHTTPClient(src.timeout())),
				tcbs.WithLimiter(src.limiter()),
				tcbs.WithRetryPolicy(src.retryPolicy()),
				tcbs.WithRandomAgent(src.RandomAgent),
				tcbs.WithLogger(logger),
				tcbs.WithBatchConcurrency(src.BatchConcurrency),
			)
		}
		if err != nil {
			return nil, fmt.Errorf("%s client: %w", name, err)
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no enabled provider in %v", c.Providers)
	}

	var p provider.Provider = &aggregate.Failover{Providers: providers, Logger: logger}
	if c.Cache.TTLSeconds > 0 {
		p = &cache.Provider{P: p, TTL: time.Duration(c.Cache.TTLSeconds) * time.Second, MaxItems: c.Cache.MaxItems}
	}
	return p, nil
}

func (s Source) timeout() time.Duration {
	if s.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSec) * time.Second
}

// limiter prefers a token bucket when a burst is set, otherwise a sliding
// window. It returns nil when limiting is disabled.
func (s Source) limiter() ratelimit.Limiter {
	switch {
	case s.MaxRequestsPerMinute <= 0:
		return nil
	case s.Burst > 0:
		return ratelimit.PerMinute(s.MaxRequestsPerMinute, s.Burst)
	default:
		return ratelimit.NewWindow(s.MaxRequestsPerMinute)
	}
}

func (s Source) retryPolicy() httpx.RetryPolicy {
	p := httpx.DefaultRetryPolicy()
	if s.MaxRetries > 0 {
		p.MaxAttempts = s.MaxRetries
	}
	if s.RetryBaseDelayMs > 0 {
		p.BaseDelay = time.Duration(s.RetryBaseDelayMs) * time.Millisecond
	}
	if s.RetryMaxDelaySec > 0 {
		p.MaxDelay = time.Duration(s.RetryMaxDelaySec) * time.Second
	}
	return p
}
