// Package aggregate puts several providers behind one provider.Provider.
package aggregate

import (
	"context"
	"log"
	"strings"

	"vnmarket/internal/provider"
)

// Failover asks providers in order and returns the first success. It moves
// on to the next provider only when the failure is transient; invalid input
// and cancellation are returned as is.
type Failover struct {
	Providers []provider.Provider
	Logger    *log.Logger
}

// New returns a failover over providers, tried in the given order.
func New(providers ...provider.Provider) *Failover {
	return &Failover{Providers: providers}
}

func (f *Failover) Name() string {
	names := make([]string, 0, len(f.Providers))
	for _, p := range f.Providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

func (f *Failover) logf(format string, args ...any) {
	if f.Logger != nil {
		f.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (f *Failover) CompanyInfo(ctx context.Context, symbol string) (*provider.CompanyInfo, error) {
	return first(ctx, f, "company", func(p provider.Provider) (*provider.CompanyInfo, error) {
		return p.CompanyInfo(ctx, symbol)
	})
}

func (f *Failover) FinancialInfo(ctx context.Context, symbol string, period provider.Period) (*provider.FinancialInfo, error) {
	return first(ctx, f, "financials", func(p provider.Provider) (*provider.FinancialInfo, error) {
		return p.FinancialInfo(ctx, symbol, period)
	})
}

func (f *Failover) History(ctx context.Context, symbol string, q provider.HistoryQuery) ([]provider.Bar, error) {
	return first(ctx, f, "history", func(p provider.Provider) ([]provider.Bar, error) {
		return p.History(ctx, symbol, q)
	})
}

// BatchHistory sends all symbols to the first provider and only the symbols
// that failed transiently to each following one.
func (f *Failover) BatchHistory(ctx context.Context, symbols []string, q provider.HistoryQuery) (provider.BatchResult, error) {
	remaining, err := provider.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}
	if len(f.Providers) == 0 {
		return nil, provider.Errorf(provider.KindInvalidInput, "failover", "batch history", "no providers configured")
	}

	out := make(provider.BatchResult, len(remaining))
	for i, p := range f.Providers {
		res, err := p.BatchHistory(ctx, remaining, q)
		if err != nil {
			for _, sym := range remaining {
				out[sym] = provider.BatchEntry{Err: err}
			}
			if !fallThrough(ctx, err) {
				return out, err
			}
			f.logf("failover: batch history: %s failed for %d symbols: %v", p.Name(), len(remaining), err)
			continue
		}

		next := remaining[:0:0]
		for _, sym := range remaining {
			e, ok := res[sym]
			if !ok {
				e = provider.BatchEntry{Err: provider.Errorf(provider.KindNoData, p.Name(), "batch history", "no result for %s", sym)}
			}
			out[sym] = e
			if e.Err != nil && fallThrough(ctx, e.Err) {
				next = append(next, sym)
			}
		}
		if len(next) == 0 {
			break
		}
		if i+1 < len(f.Providers) {
			f.logf("failover: batch history: %d symbols failed on %s, trying %s", len(next), p.Name(), f.Providers[i+1].Name())
		}
		remaining = next
	}
	if err := ctx.Err(); err != nil {
		return out, provider.NewError(provider.KindOf(err), "failover", "batch history", err)
	}
	return out, nil
}

func first[T any](ctx context.Context, f *Failover, op string, call func(provider.Provider) (T, error)) (T, error) {
	var zero T
	if len(f.Providers) == 0 {
		return zero, provider.Errorf(provider.KindInvalidInput, "failover", op, "no providers configured")
	}
	var lastErr error
	for i, p := range f.Providers {
		v, err := call(p)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !fallThrough(ctx, err) {
			return zero, err
		}
		if i+1 < len(f.Providers) {
			f.logf("failover: %s: %s failed: %v; trying %s", op, p.Name(), err, f.Providers[i+1].Name())
		}
	}
	return zero, lastErr
}

func fallThrough(ctx context.Context, err error) bool {
	return ctx.Err() == nil && provider.KindOf(err).Transient()
}
