package vci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vnmarket/internal/provider"
	"vnmarket/internal/resample"
)

const chartPath = "/api/chart/OHLCChart/gap-chart"

// Chart time frames understood by the gap-chart endpoint.
const (
	frameMinute = "ONE_MINUTE"
	frameHour   = "ONE_HOUR"
	frameDay    = "ONE_DAY"
)

var timeFrames = map[provider.Interval]string{
	provider.Minute1:  frameMinute,
	provider.Minute5:  frameMinute,
	provider.Minute15: frameMinute,
	provider.Minute30: frameMinute,
	provider.Hour1:    frameHour,
	provider.Day1:     frameDay,
	provider.Week1:    frameDay,
	provider.Month1:   frameDay,
}

// symbolFields are the keys a chart item may carry its ticker under.
var symbolFields = []string{"symbol", "ticker", "Symbol", "Ticker", "s"}

type chartRequest struct {
	TimeFrame string   `json:"timeFrame"`
	Symbols   []string `json:"symbols"`
	To        int64    `json:"to"`
	CountBack int      `json:"countBack"`
}

// chartItem is one element of the gap-chart response.
type chartItem struct {
	Symbol string
	provider.Columns
}

func (it *chartItem) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, key := range symbolFields {
		if v, ok := raw[key]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err == nil && s != "" {
				it.Symbol = strings.ToUpper(strings.TrimSpace(s))
				break
			}
		}
	}
	return json.Unmarshal(b, &it.Columns)
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

	items, err := c.chart(ctx, "history", []string{sym}, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, provider.Errorf(provider.KindNoData, Name, "history", "no chart data for %s", sym)
	}
	item := items[0]
	for _, it := range items {
		if it.Symbol == sym {
			item = it
			break
		}
	}
	return c.finish(sym, item, q)
}

// chart posts one gap-chart request for symbols.
func (c *Client) chart(ctx context.Context, op string, symbols []string, q provider.HistoryQuery) ([]chartItem, error) {
	frame := timeFrames[q.Interval]
	payload, err := json.Marshal(chartRequest{
		TimeFrame: frame,
		Symbols:   symbols,
		To:        q.End.AddDate(0, 0, 1).Unix(),
		CountBack: countBack(q.Start, q.End, frame),
	})
	if err != nil {
		return nil, provider.NewError(provider.KindInvalidInput, Name, op, err)
	}

	var items []chartItem
	err = c.transport.JSON(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chartPath, bytes.NewReader(payload))
	}, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// finish turns a chart item into the bars the query asked for.
func (c *Client) finish(sym string, item chartItem, q provider.HistoryQuery) ([]provider.Bar, error) {
	bars, dropped, err := item.Bars()
	if err != nil {
		return nil, provider.NewError(provider.KindDecode, Name, "history", fmt.Errorf("%s: %w", sym, err))
	}
	if dropped > 0 {
		c.logger.Printf("vci: %s: dropped %d malformed bars", sym, dropped)
	}
	bars = provider.Since(bars, q.Start)
	provider.SortBars(bars)
	bars = resample.Resample(bars, q.Interval)
	if len(bars) == 0 {
		return nil, provider.Errorf(provider.KindNoData, Name, "history", "no bars for %s since %s", sym, q.Start.Format(time.DateOnly))
	}
	return bars, nil
}

// countBack sizes the lookback window from the business days in
// [start, end] so the response covers the whole range.
func countBack(start, end time.Time, frame string) int {
	days := businessDays(start, end)
	switch frame {
	case frameHour:
		return int(float64(days)*6.5) + 10
	case frameMinute:
		return int(float64(days)*6.5*60) + 10
	}
	return days + 10
}

// businessDays counts Monday to Friday dates in [start, end].
func businessDays(start, end time.Time) int {
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
