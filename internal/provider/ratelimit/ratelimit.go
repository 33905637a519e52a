package ratelimit

import (
	"context"
	"sync"
	"time"

	"vnmarket/internal/provider"
)

// Limiter blocks until the caller may issue one request. The HTTP clients
// wait on it before every attempt.
type Limiter interface {
	Wait(ctx context.Context) error
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = (*Window)(nil)
)

// MinInterval wraps a provider and enforces a minimum time between the end
// of one operation and the start of the next. Concurrent callers are
// serialized through the gate; a canceled context returns early.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	once sync.Once
	sem  chan struct{}
	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) CompanyInfo(ctx context.Context, symbol string) (*provider.CompanyInfo, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.P.CompanyInfo(ctx, symbol)
}

func (m *MinInterval) FinancialInfo(ctx context.Context, symbol string, period provider.Period) (*provider.FinancialInfo, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.P.FinancialInfo(ctx, symbol, period)
}

func (m *MinInterval) History(ctx context.Context, symbol string, q provider.HistoryQuery) ([]provider.Bar, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.P.History(ctx, symbol, q)
}

func (m *MinInterval) BatchHistory(ctx context.Context, symbols []string, q provider.HistoryQuery) (provider.BatchResult, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.P.BatchHistory(ctx, symbols, q)
}

func (m *MinInterval) acquire(ctx context.Context) error {
	if m.Interval <= 0 {
		return nil
	}
	m.once.Do(func() { m.sem = make(chan struct{}, 1) })
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return provider.NewError(provider.KindOf(ctx.Err()), m.P.Name(), "rate limit", ctx.Err())
	}
	m.mu.Lock()
	wait := time.Until(m.last.Add(m.Interval))
	m.mu.Unlock()
	if wait > 0 {
		if err := sleep(ctx, wait); err != nil {
			<-m.sem
			return provider.NewError(provider.KindOf(err), m.P.Name(), "rate limit", err)
		}
	}
	return nil
}

func (m *MinInterval) release() {
	if m.Interval <= 0 {
		return
	}
	m.mu.Lock()
	m.last = time.Now()
	m.mu.Unlock()
	<-m.sem
}
