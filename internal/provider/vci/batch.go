package vci

import (
	"context"

	"vnmarket/internal/provider"
)

// BatchHistory fetches bars for many symbols, sharing one chart request per
// chunk of at most maxSymbols symbols. A 400 on a chunk splits it in halves
// until the offending symbol is isolated. Per-symbol failures are reported in
// the result; the call itself fails only on invalid input or cancellation.
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
	for start := 0; start < len(syms); start += c.maxSymbols {
		end := min(start+c.maxSymbols, len(syms))
		if err := c.batchChunk(ctx, syms[start:end], q, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *Client) batchChunk(ctx context.Context, chunk []string, q provider.HistoryQuery, out provider.BatchResult) error {
	items, err := c.chart(ctx, "batch history", chunk, q)
	if err != nil {
		switch kind := provider.KindOf(err); {
		case kind == provider.KindCanceled || ctx.Err() != nil:
			return err
		case kind == provider.KindInvalidInput && len(chunk) > 1:
			c.logger.Printf("vci: batch of %d rejected, splitting", len(chunk))
			mid := len(chunk) / 2
			if err := c.batchChunk(ctx, chunk[:mid], q, out); err != nil {
				return err
			}
			return c.batchChunk(ctx, chunk[mid:], q, out)
		}
		for _, sym := range chunk {
			out[sym] = provider.BatchEntry{Err: err}
		}
		return nil
	}

	matched := matchItems(chunk, items)
	for _, sym := range chunk {
		item, ok := matched[sym]
		if !ok {
			out[sym] = provider.BatchEntry{Err: provider.Errorf(provider.KindNoData, Name, "batch history", "no chart data for %s", sym)}
			continue
		}
		bars, err := c.finish(sym, item, q)
		out[sym] = provider.BatchEntry{Bars: bars, Err: err}
	}
	return nil
}

// matchItems pairs response items with requested symbols by their symbol
// field. Items are matched by position only when none carries a symbol and
// the response has exactly one item per requested symbol.
func matchItems(symbols []string, items []chartItem) map[string]chartItem {
	out := make(map[string]chartItem, len(items))
	labelled := false
	for _, it := range items {
		if it.Symbol != "" {
			labelled = true
			if _, dup := out[it.Symbol]; !dup {
				out[it.Symbol] = it
			}
		}
	}
	if !labelled && len(items) == len(symbols) {
		for i, sym := range symbols {
			out[sym] = items[i]
		}
	}
	return out
}
