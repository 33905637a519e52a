package tcbs

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"vnmarket/internal/provider"
)

// BatchHistory fetches bars for many symbols. TCBS has no multi-symbol
// endpoint, so symbols are fetched concurrently, at most concurrency at a
// time, each request still passing the client's limiter. Per-symbol failures
// are reported in the result; the call itself fails only on invalid input or
// cancellation.
func (c *Client) BatchHistory(ctx context.Context, symbols []string, q provider.HistoryQuery) (provider.BatchResult, error) {
	syms, err := provider.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}
	q, err = q.Normalize(c.now())
	if err != nil {
		return nil, err
	}

	out := make(provider.BatchResult, len(syms))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, sym := range syms {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			bars, err := c.history(gctx, "batch history", sym, q)
			if err != nil && (ctx.Err() != nil || provider.KindOf(err) == provider.KindCanceled) {
				return err
			}
			mu.Lock()
			out[sym] = provider.BatchEntry{Bars: bars, Err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, provider.NewError(provider.KindOf(err), Name, "batch history", err)
	}
	return out, nil
}
