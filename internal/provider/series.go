package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Valid reports whether the bar's prices are internally consistent.
func (b Bar) Valid() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.High >= math.Max(b.Open, b.Close) && b.Low <= math.Min(b.Open, b.Close) && b.Volume >= 0
}

// ValidateSeries checks that timestamps never decrease and every bar is valid.
func ValidateSeries(bars []Bar) error {
	for i, b := range bars {
		if !b.Valid() {
			return fmt.Errorf("bar %d at %s: inconsistent prices o=%v h=%v l=%v c=%v",
				i, b.Time.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
		}
		if i > 0 && b.Time.Before(bars[i-1].Time) {
			return fmt.Errorf("bar %d at %s: earlier than previous bar", i, b.Time.Format(time.RFC3339))
		}
	}
	return nil
}

// SortBars orders bars chronologically, keeping the input order of equal times.
func SortBars(bars []Bar) {
	slices.SortStableFunc(bars, func(a, b Bar) int { return a.Time.Compare(b.Time) })
}

// Since returns the bars at or after start. The input is not modified.
func Since(bars []Bar, start time.Time) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Time.Before(start) {
			out = append(out, b)
		}
	}
	return out
}

// Columns is a column-oriented OHLCV payload as returned by chart APIs:
// parallel arrays of times (unix seconds) and prices. Values may be JSON
// numbers, numeric strings or null.
type Columns struct {
	Time   []any `json:"t"`
	Open   []any `json:"o"`
	High   []any `json:"h"`
	Low    []any `json:"l"`
	Close  []any `json:"c"`
	Volume []any `json:"v"`
}

// Bars converts the columns to bars. Rows with a missing price or time and
// rows with inconsistent prices are skipped and counted in dropped. Arrays of
// unequal length are an error.
func (c Columns) Bars() (bars []Bar, dropped int, err error) {
	n := len(c.Time)
	for name, col := range map[string][]any{"o": c.Open, "h": c.High, "l": c.Low, "c": c.Close} {
		if len(col) != n {
			return nil, 0, fmt.Errorf("column %s has %d values, expected %d", name, len(col), n)
		}
	}
	if len(c.Volume) != 0 && len(c.Volume) != n {
		return nil, 0, fmt.Errorf("column v has %d values, expected %d", len(c.Volume), n)
	}
	bars = make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		ts, ok1 := Float(c.Time[i])
		o, ok2 := Float(c.Open[i])
		h, ok3 := Float(c.High[i])
		l, ok4 := Float(c.Low[i])
		cl, ok5 := Float(c.Close[i])
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			dropped++
			continue
		}
		var vol float64
		if len(c.Volume) > 0 {
			vol, _ = Float(c.Volume[i])
		}
		b := Bar{
			Time:   time.Unix(int64(ts), 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  cl,
			Volume: int64(math.Round(vol)),
		}
		if !b.Valid() {
			dropped++
			continue
		}
		bars = append(bars, b)
	}
	return bars, dropped, nil
}

// Float converts a decoded JSON scalar to float64.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
