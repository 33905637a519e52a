package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vnmarket/internal/provider"
)

const maxBatchSymbols = 1000

type server struct {
	p       provider.Provider
	timeout time.Duration
	logger  *log.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/company", s.get(s.handleCompany))
	mux.HandleFunc("/api/financials", s.get(s.handleFinancials))
	mux.HandleFunc("/api/history", s.get(s.handleHistory))
	mux.HandleFunc("/api/history/batch", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleGetBatch(w, r)
		case http.MethodPost:
			s.handlePostBatch(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		}
	})
	return mux
}

func (s *server) get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}
		h(w, r)
	}
}

func (s *server) context(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(r.Context(), s.timeout)
	}
	return context.WithCancel(r.Context())
}

func (s *server) handleCompany(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	info, err := s.p.CompanyInfo(ctx, r.URL.Query().Get("symbol"))
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	period, err := provider.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	fin, err := s.p.FinancialInfo(ctx, r.URL.Query().Get("symbol"), period)
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, financialsResponse{FinancialInfo: fin, Summary: fin.Summary()})
}

type financialsResponse struct {
	*provider.FinancialInfo
	Summary provider.FinancialSummary `json:"summary"`
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q, err := historyQuery(r.URL.Query().Get("start"), r.URL.Query().Get("end"),
		r.URL.Query().Get("interval"), r.URL.Query().Get("count"))
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	bars, err := s.p.History(ctx, r.URL.Query().Get("symbol"), q)
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Symbol: strings.ToUpper(r.URL.Query().Get("symbol")), Bars: bars})
}

type historyResponse struct {
	Symbol string         `json:"symbol"`
	Bars   []provider.Bar `json:"bars"`
}

type batchBody struct {
	Symbols  []string `json:"symbols"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Interval string   `json:"interval"`
	Count    int      `json:"count"`
}

func (s *server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	if strings.TrimSpace(v.Get("symbols")) == "" {
		writeError(w, http.StatusBadRequest, "missing symbols query param", kindName(provider.KindInvalidInput))
		return
	}
	q, err := historyQuery(v.Get("start"), v.Get("end"), v.Get("interval"), v.Get("count"))
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	s.writeBatch(w, r, splitCSV(v.Get("symbols")), q)
}

func (s *server) handlePostBatch(w http.ResponseWriter, r *http.Request) {
	var b batchBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", kindName(provider.KindInvalidInput))
		return
	}
	if len(b.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols cannot be empty", kindName(provider.KindInvalidInput))
		return
	}
	count := ""
	if b.Count != 0 {
		count = strconv.Itoa(b.Count)
	}
	q, err := historyQuery(b.Start, b.End, b.Interval, count)
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	s.writeBatch(w, r, b.Symbols, q)
}

type batchEntry struct {
	Bars  []provider.Bar `json:"bars,omitempty"`
	Error string         `json:"error,omitempty"`
	Kind  string         `json:"kind,omitempty"`
}

type batchResponse struct {
	Results map[string]batchEntry `json:"results"`
	Failed  []string              `json:"failed"`
}

func (s *server) writeBatch(w http.ResponseWriter, r *http.Request, symbols []string, q provider.HistoryQuery) {
	if len(symbols) > maxBatchSymbols {
		writeError(w, http.StatusBadRequest, "too many symbols (max 1000)", kindName(provider.KindInvalidInput))
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	res, err := s.p.BatchHistory(ctx, symbols, q)
	if err != nil {
		s.writeProviderError(w, err)
		return
	}

	resp := batchResponse{Results: make(map[string]batchEntry, len(res)), Failed: res.Failed()}
	if resp.Failed == nil {
		resp.Failed = []string{}
	}
	for sym, e := range res {
		entry := batchEntry{Bars: e.Bars}
		if e.Err != nil {
			entry.Error = e.Err.Error()
			entry.Kind = kindName(provider.KindOf(e.Err))
		}
		resp.Results[sym] = entry
	}
	status := http.StatusOK
	if len(resp.Failed) > 0 && len(resp.Failed) == len(res) {
		status = statusFor(res[resp.Failed[0]].Err)
	}
	writeJSON(w, status, resp)
}

func historyQuery(start, end, interval, count string) (provider.HistoryQuery, error) {
	var q provider.HistoryQuery
	if start == "" {
		return q, provider.Errorf(provider.KindInvalidInput, "", "history", "missing start date")
	}
	var err error
	if q.Start, err = provider.ParseDate(start); err != nil {
		return q, err
	}
	if end != "" {
		if q.End, err = provider.ParseDate(end); err != nil {
			return q, err
		}
	}
	if interval != "" {
		if q.Interval, err = provider.ParseInterval(interval); err != nil {
			return q, err
		}
	}
	if count != "" {
		n, err := strconv.Atoi(count)
		if err != nil || n < 0 {
			return q, provider.Errorf(provider.KindInvalidInput, "", "history", "invalid count %q", count)
		}
		q.CountBack = n
	}
	return q, nil
}

// statusFor maps an error kind to the HTTP status returned to clients.
func statusFor(err error) int {
	switch provider.KindOf(err) {
	case provider.KindInvalidInput:
		return http.StatusBadRequest
	case provider.KindNotFound, provider.KindNoData:
		return http.StatusNotFound
	case provider.KindRateLimited:
		return http.StatusTooManyRequests
	case provider.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func kindName(k provider.Kind) string {
	return strings.ReplaceAll(k.String(), " ", "_")
}

func (s *server) writeProviderError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("upstream error: %v", err)
	}
	writeError(w, status, err.Error(), kindName(provider.KindOf(err)))
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
