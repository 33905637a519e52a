package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"vnmarket/internal/provider"
)

// entry stores one cached result with expiry.
type entry struct {
	expiresAt time.Time
	value     any
}

// Provider caches results per request for a TTL.
// Concurrent identical misses share one upstream call. Batch requests ask
// the underlying provider only for symbols that are not cached and combine
// cached + fresh results. Errors are never cached.
type Provider struct {
	P        provider.Provider
	TTL      time.Duration
	MaxItems int
	// Now defaults to time.Now.
	Now func() time.Time

	mu    sync.RWMutex
	items map[string]entry
	sf    singleflight.Group
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// CompanyInfo returns a copy of the cached company snapshot when still valid.
func (c *Provider) CompanyInfo(ctx context.Context, symbol string) (*provider.CompanyInfo, error) {
	sym, err := provider.NormalizeSymbol(symbol)
	if err != nil || c.TTL <= 0 {
		return c.P.CompanyInfo(ctx, symbol)
	}
	info, err := load(ctx, c, "company|"+sym, func(ctx context.Context) (*provider.CompanyInfo, error) {
		return c.P.CompanyInfo(ctx, sym)
	})
	return info.Clone(), err
}

// FinancialInfo returns a copy of the cached statements when still valid.
func (c *Provider) FinancialInfo(ctx context.Context, symbol string, period provider.Period) (*provider.FinancialInfo, error) {
	sym, err := provider.NormalizeSymbol(symbol)
	if err != nil || c.TTL <= 0 {
		return c.P.FinancialInfo(ctx, symbol, period)
	}
	fin, err := load(ctx, c, fmt.Sprintf("financial|%s|%s", sym, period), func(ctx context.Context) (*provider.FinancialInfo, error) {
		return c.P.FinancialInfo(ctx, sym, period)
	})
	return fin.Clone(), err
}

// History returns cached bars when still valid. The returned slice is a copy.
func (c *Provider) History(ctx context.Context, symbol string, q provider.HistoryQuery) ([]provider.Bar, error) {
	sym, err := provider.NormalizeSymbol(symbol)
	if err != nil || c.TTL <= 0 {
		return c.P.History(ctx, symbol, q)
	}
	nq, err := q.Normalize(c.now())
	if err != nil {
		return nil, err
	}
	bars, err := load(ctx, c, historyKey(sym, nq), func(ctx context.Context) ([]provider.Bar, error) {
		return c.P.History(ctx, sym, nq)
	})
	return slices.Clone(bars), err
}

// BatchHistory serves cached symbols from the cache and requests the rest.
// If the upstream call fails and some symbols were cached, the cached ones
// are returned and the failure is recorded for the others.
func (c *Provider) BatchHistory(ctx context.Context, symbols []string, q provider.HistoryQuery) (provider.BatchResult, error) {
	if c.TTL <= 0 {
		return c.P.BatchHistory(ctx, symbols, q)
	}
	syms, err := provider.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}
	nq, err := q.Normalize(c.now())
	if err != nil {
		return nil, err
	}

	// Split into cached and missing symbols
	out := make(provider.BatchResult, len(syms))
	missing := make([]string, 0, len(syms))
	for _, sym := range syms {
		if v, ok := c.get(historyKey(sym, nq)); ok {
			out[sym] = provider.BatchEntry{Bars: slices.Clone(v.([]provider.Bar))}
			continue
		}
		missing = append(missing, sym)
	}

	// If everything is cached, return quickly
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.P.BatchHistory(ctx, missing, nq)
	if err != nil && len(fresh) == 0 {
		// If we have at least some cached data, return it rather than failing entirely
		if len(out) == 0 {
			return nil, err
		}
		for _, sym := range missing {
			out[sym] = provider.BatchEntry{Err: err}
		}
		return out, nil
	}

	for _, sym := range missing {
		e, ok := fresh[sym]
		switch {
		case !ok && err != nil:
			e = provider.BatchEntry{Err: err}
		case !ok:
			e = provider.BatchEntry{Err: provider.Errorf(provider.KindNoData, c.P.Name(), "batch history", "no result for %s", sym)}
		case e.Err == nil:
			c.put(historyKey(sym, nq), slices.Clone(e.Bars))
		}
		out[sym] = e
	}
	if err != nil && ctx.Err() != nil {
		return out, err
	}
	return out, nil
}

func historyKey(sym string, q provider.HistoryQuery) string {
	return fmt.Sprintf("history|%s|%s|%s|%s|%d", sym, q.Interval,
		q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly), q.CountBack)
}

// load returns the cached value for key or calls fetch once for all
// concurrent callers of the same key. The shared call is detached from any
// single caller's cancellation; each caller stops waiting when its own ctx
// is done.
func load[T any](ctx context.Context, c *Provider, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.get(key); ok {
		return v.(T), nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		c.put(key, v)
		return v, nil
	})
	select {
	case <-ctx.Done():
		return zero, provider.NewError(provider.KindOf(ctx.Err()), c.P.Name(), "cache", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func (c *Provider) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Provider) put(key string, v any) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = entry{expiresAt: now.Add(c.TTL), value: v}

	// best-effort cap cache size
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// remove expired first, then arbitrary
		for k, e := range c.items {
			if !now.Before(e.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != key {
				delete(c.items, k)
			}
		}
	}
}

// Len returns the number of cached entries, expired ones included.
func (c *Provider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
