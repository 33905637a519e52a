package tcbs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vnmarket/internal/provider"
)

var resolutions = map[provider.Interval]string{
	provider.Minute1:  "1",
	provider.Minute5:  "5",
	provider.Minute15: "15",
	provider.Minute30: "30",
	provider.Hour1:    "60",
	provider.Day1:     "D",
	provider.Week1:    "W",
	provider.Month1:   "M",
}

// index tickers as TCBS spells them
var indexTickers = map[string]string{
	"VNINDEX":    "VNINDEX",
	"HNXINDEX":   "HNXIndex",
	"UPCOMINDEX": "UPCOM",
}

type barsResponse struct {
	Data json.RawMessage `json:"data"`
}

type barRow struct {
	TradingDate string `json:"tradingDate"`
	Open        any    `json:"open"`
	High        any    `json:"high"`
	Low         any    `json:"low"`
	Close       any    `json:"close"`
	Volume      any    `json:"volume"`
}

// History returns bars for one symbol.
func (c *Client) History(ctx context.Context, symbol string, q provider.HistoryQuery) ([]provider.Bar, error) {
	sym, err := provider.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	q, err = q.Normalize(c.now())
	if err != nil {
		return nil, err
	}
	return c.history(ctx, "history", sym, q)
}

// barsPath returns the endpoint path and asset type for sym at interval.
func barsPath(sym string, iv provider.Interval) (path, assetType string) {
	service, assetType := "stock-insight", "stock"
	if strings.HasPrefix(sym, "VN30F") {
		service, assetType = "futures-insight", "derivative"
	}
	endpoint := "bars"
	if !iv.Intraday() {
		endpoint = "bars-long-term"
	}
	return "/" + service + "/v2/stock/" + endpoint, assetType
}

func (c *Client) history(ctx context.Context, op, sym string, q provider.HistoryQuery) ([]provider.Bar, error) {
	ticker := sym
	if t, ok := indexTickers[sym]; ok {
		ticker = t
	}
	path, assetType := barsPath(sym, q.Interval)
	query := url.Values{
		"resolution": {resolutions[q.Interval]},
		"ticker":     {ticker},
		"type":       {assetType},
		"to":         {strconv.FormatInt(q.End.AddDate(0, 0, 1).Unix(), 10)},
		"countBack":  {strconv.Itoa(q.CountBack)},
	}

	var res barsResponse
	if err := c.get(ctx, op, path, query, &res); err != nil {
		return nil, err
	}
	bars, dropped, err := decodeBars(res.Data, q.Interval)
	if err != nil {
		return nil, provider.NewError(provider.KindDecode, Name, op, fmt.Errorf("%s: %w", sym, err))
	}
	if dropped > 0 {
		c.logger.Printf("tcbs: %s: dropped %d malformed bars", sym, dropped)
	}
	bars = provider.Since(bars, q.Start)
	provider.SortBars(bars)
	if len(bars) == 0 {
		return nil, provider.Errorf(provider.KindNoData, Name, op, "no bars for %s since %s", sym, q.Start.Format(time.DateOnly))
	}
	return bars, nil
}

// decodeBars accepts either a list of row objects or parallel arrays.
func decodeBars(raw json.RawMessage, iv provider.Interval) ([]provider.Bar, int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, 0, nil
	}
	if raw[0] == '{' {
		var cols provider.Columns
		if err := json.Unmarshal(raw, &cols); err != nil {
			return nil, 0, err
		}
		return cols.Bars()
	}

	var rows []barRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, 0, err
	}
	bars := make([]provider.Bar, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		ts, ok := parseTradingDate(r.TradingDate, iv)
		o, ok2 := provider.Float(r.Open)
		h, ok3 := provider.Float(r.High)
		l, ok4 := provider.Float(r.Low)
		cl, ok5 := provider.Float(r.Close)
		if !ok || !ok2 || !ok3 || !ok4 || !ok5 {
			dropped++
			continue
		}
		vol, _ := provider.Float(r.Volume)
		b := provider.Bar{Time: ts, Open: o, High: h, Low: l, Close: cl, Volume: int64(math.Round(vol))}
		if !b.Valid() {
			dropped++
			continue
		}
		bars = append(bars, b)
	}
	return bars, dropped, nil
}

// parseTradingDate reads "2024-01-02" or "2024-01-02T09:15:00.000Z". Daily
// and longer bars keep only the date, at midnight UTC.
func parseTradingDate(s string, iv provider.Interval) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if iv.Intraday() && strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), true
		}
	}
	datePart, _, _ := strings.Cut(s, "T")
	t, err := time.Parse(time.DateOnly, datePart)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
