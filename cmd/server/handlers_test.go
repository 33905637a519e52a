package main

import (
	"context"
	"compress/gzip"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vnmarket/internal/provider"
)

type fakeProvider struct {
	info    *provider.CompanyInfo
	bars    []provider.Bar
	batch   provider.BatchResult
	err     error
	queries []provider.HistoryQuery
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CompanyInfo(_ context.Context, symbol string) (*provider.CompanyInfo, error) {
	return f.info, f.err
}

func (f *fakeProvider) FinancialInfo(_ context.Context, symbol string, period provider.Period) (*provider.FinancialInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.FinancialInfo{
		Symbol: symbol,
		Period: period,
		Ratios: []provider.PeriodRecord{{Period: "2023", Values: map[string]float64{"pe": 15.2}}},
	}, nil
}

func (f *fakeProvider) History(_ context.Context, _ string, q provider.HistoryQuery) ([]provider.Bar, error) {
	f.queries = append(f.queries, q)
	return f.bars, f.err
}

func (f *fakeProvider) BatchHistory(_ context.Context, _ []string, q provider.HistoryQuery) (provider.BatchResult, error) {
	f.queries = append(f.queries, q)
	return f.batch, f.err
}

func newTestServer(p provider.Provider) http.Handler {
	s := &server{p: p, timeout: time.Second, logger: log.New(io.Discard, "", 0)}
	return chain(s.routes(), logRequests(s.logger), cors("*"), gzipResponses, s.recoverPanic, limitBody(1<<20))
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, r))
	return rr
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rr := do(t, newTestServer(&fakeProvider{}), http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestCompany(t *testing.T) {
	t.Parallel()

	// Arrange
	price := 91500.0
	p := &fakeProvider{info: &provider.CompanyInfo{Symbol: "VCB", CurrentPrice: &price}}

	// Act
	rr := do(t, newTestServer(p), http.MethodGet, "/api/company?symbol=vcb", "")

	// Assert
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	var got provider.CompanyInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "VCB", got.Symbol)
	require.InDelta(t, 91500, *got.CurrentPrice, 0)
}

func TestFinancials_Period(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeProvider{})

	rr := do(t, h, http.MethodGet, "/api/financials?symbol=VCB&period=year", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"period":"year"`)
	require.Contains(t, rr.Body.String(), `"summary":{"period":"2023","pe":15.2}`)

	rr = do(t, h, http.MethodGet, "/api/financials?symbol=VCB&period=weekly", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), `"kind":"invalid_input"`)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	// Arrange
	p := &fakeProvider{bars: []provider.Bar{{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 88.5}}}

	// Act
	rr := do(t, newTestServer(p), http.MethodGet,
		"/api/history?symbol=vcb&start=2024-01-01&end=2024-01-31&interval=1h&count=10", "")

	// Assert
	require.Equal(t, http.StatusOK, rr.Code)
	var got historyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "VCB", got.Symbol)
	require.Len(t, got.Bars, 1)
	require.Len(t, p.queries, 1)
	require.Equal(t, provider.Hour1, p.queries[0].Interval)
	require.Equal(t, 10, p.queries[0].CountBack)
}

func TestHistory_BadQuery(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeProvider{})
	for _, target := range []string{
		"/api/history?symbol=VCB",
		"/api/history?symbol=VCB&start=01/02/2024",
		"/api/history?symbol=VCB&start=2024-01-01&interval=2D",
		"/api/history?symbol=VCB&start=2024-01-01&count=-1",
	} {
		rr := do(t, h, http.MethodGet, target, "")
		require.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind provider.Kind
		want int
	}{
		{provider.KindInvalidInput, http.StatusBadRequest},
		{provider.KindNotFound, http.StatusNotFound},
		{provider.KindNoData, http.StatusNotFound},
		{provider.KindRateLimited, http.StatusTooManyRequests},
		{provider.KindTimeout, http.StatusGatewayTimeout},
		{provider.KindServer, http.StatusBadGateway},
		{provider.KindAccessDenied, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			p := &fakeProvider{err: provider.Errorf(tt.kind, "vci", "company", "boom")}

			rr := do(t, newTestServer(p), http.MethodGet, "/api/company?symbol=VCB", "")

			require.Equal(t, tt.want, rr.Code)
			var got errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			require.Equal(t, kindName(tt.kind), got.Kind)
		})
	}
}

func TestBatch_Get(t *testing.T) {
	t.Parallel()

	// Arrange
	p := &fakeProvider{batch: provider.BatchResult{
		"VCB": {Bars: []provider.Bar{{Close: 88.5}}},
		"BAD": {Err: provider.Errorf(provider.KindNotFound, "vci", "batch", "unknown symbol")},
	}}

	// Act
	rr := do(t, newTestServer(p), http.MethodGet, "/api/history/batch?symbols=VCB,BAD&start=2024-01-01", "")

	// Assert
	require.Equal(t, http.StatusOK, rr.Code)
	var got batchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, []string{"BAD"}, got.Failed)
	require.Len(t, got.Results["VCB"].Bars, 1)
	require.Equal(t, "not_found", got.Results["BAD"].Kind)
}

func TestBatch_AllFailed(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{batch: provider.BatchResult{
		"VCB": {Err: provider.Errorf(provider.KindRateLimited, "vci", "batch", "slow down")},
	}}

	rr := do(t, newTestServer(p), http.MethodGet, "/api/history/batch?symbols=VCB&start=2024-01-01", "")

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestBatch_Post(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{batch: provider.BatchResult{"VCB": {Bars: []provider.Bar{{Close: 1}}}}}
	h := newTestServer(p)

	rr := do(t, h, http.MethodPost, "/api/history/batch",
		`{"symbols":["VCB"],"start":"2024-01-01","interval":"1D","count":5}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 5, p.queries[0].CountBack)

	rr = do(t, h, http.MethodPost, "/api/history/batch", `{"symbols":[]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/history/batch", `{"tickers":["VCB"]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodDelete, "/api/history/batch", "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestBatch_TooManySymbols(t *testing.T) {
	t.Parallel()

	symbols := strings.Repeat("A,", maxBatchSymbols+1)

	rr := do(t, newTestServer(&fakeProvider{}), http.MethodGet, "/api/history/batch?start=2024-01-01&symbols="+symbols, "")

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "too many symbols")
}

func TestMiddleware_GzipAndCORS(t *testing.T) {
	t.Parallel()

	// Arrange
	h := newTestServer(&fakeProvider{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()

	// Act
	h.ServeHTTP(rr, req)

	// Assert
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	pre := do(t, h, http.MethodOptions, "/api/company", "")
	require.Equal(t, http.StatusNoContent, pre.Code)
}

type panicProvider struct{ fakeProvider }

func (panicProvider) CompanyInfo(context.Context, string) (*provider.CompanyInfo, error) {
	panic("boom")
}

func TestMiddleware_RecoverPanic(t *testing.T) {
	t.Parallel()

	rr := do(t, newTestServer(&panicProvider{}), http.MethodGet, "/api/company?symbol=VCB", "")

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "internal server error")
}
