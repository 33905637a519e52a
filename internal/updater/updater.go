// Package updater keeps a bar store in sync with a provider.
package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"vnmarket/internal/provider"
)

// IndexSymbol is always part of the watchlist.
const IndexSymbol = "VNINDEX"

// indexSymbols are quoted in index points and never price-scaled.
var indexSymbols = map[string]bool{
	"VNINDEX":    true,
	"HNXINDEX":   true,
	"UPCOMINDEX": true,
}

const (
	// DefaultThreshold is the average stored/fetched close ratio above which
	// a symbol's history is treated as adjusted.
	DefaultThreshold = 1.02

	recentDays   = 30
	compareFrom  = 14
	compareTo    = 7
	minCompared  = 3
	tradingHours = 6.5
)

// Store is the subset of the bar store the updater needs.
type Store interface {
	Load(ctx context.Context, symbol string, iv provider.Interval, from, to time.Time) ([]provider.Bar, error)
	Latest(ctx context.Context, symbol string, iv provider.Interval) (provider.Bar, bool, error)
	Upsert(ctx context.Context, symbol string, iv provider.Interval, bars []provider.Bar) error
	Replace(ctx context.Context, symbol string, iv provider.Interval, bars []provider.Bar) error
}

// Outcome is what happened to one symbol during an update.
type Outcome string

const (
	New       Outcome = "new"
	Adjusted  Outcome = "adjusted"
	Updated   Outcome = "updated"
	Unchanged Outcome = "unchanged"
	Failed    Outcome = "failed"
)

// Result reports the outcome of one symbol. Bars is the number of bars
// written.
type Result struct {
	Symbol  string
	Outcome Outcome
	Bars    int
	Err     error
}

// Updater downloads new bars for a watchlist into a Store.
type Updater struct {
	Provider provider.Provider
	Store    Store
	// Interval defaults to daily bars.
	Interval provider.Interval
	// StartDate is where full downloads begin.
	StartDate time.Time
	// Threshold defaults to DefaultThreshold.
	Threshold float64
	// PriceScale divides stock OHLC prices before they are stored, e.g. 1000
	// to keep prices in thousands of VND. Zero or one stores raw prices.
	PriceScale float64
	// Precision rounds scaled prices to that many decimals. Zero disables
	// rounding.
	Precision int
	Now       func() time.Time
	Logger    *log.Logger
}

func (u *Updater) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

func (u *Updater) logf(format string, args ...any) {
	if u.Logger != nil {
		u.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (u *Updater) interval() provider.Interval {
	if u.Interval == "" {
		return provider.Day1
	}
	return u.Interval
}

func (u *Updater) threshold() float64 {
	if u.Threshold <= 0 {
		return DefaultThreshold
	}
	return u.Threshold
}

// LoadGroups reads a watchlist file mapping group names to tickers and
// returns the distinct tickers, sorted, with VNINDEX included.
func LoadGroups(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	var groups map[string][]string
	if err := json.Unmarshal(b, &groups); err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", path, err)
	}
	all := []string{IndexSymbol}
	for _, tickers := range groups {
		all = append(all, tickers...)
	}
	syms, err := provider.NormalizeSymbols(all)
	if err != nil {
		return nil, fmt.Errorf("watchlist %s: %w", path, err)
	}
	slices.Sort(syms)
	return syms, nil
}

// UpdateAll fetches the last 30 days of every symbol in one batch and
// brings each symbol's stored history up to date. A failing symbol is
// reported in its Result and does not stop the others. The error is
// non-nil only for invalid symbols or cancellation.
func (u *Updater) UpdateAll(ctx context.Context, symbols []string) ([]Result, error) {
	syms, err := provider.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}
	now := u.now()
	iv := u.interval()
	windowStart := provider.Day(now).AddDate(0, 0, -recentDays)

	recent, err := u.Provider.BatchHistory(ctx, syms, provider.HistoryQuery{
		Start:     windowStart,
		End:       now,
		Interval:  iv,
		CountBack: countBack(windowStart, now, iv),
	})
	if err != nil {
		u.logf("updater: recent batch failed: %v", err)
	}

	results := make([]Result, 0, len(syms))
	for i, sym := range syms {
		if ctx.Err() != nil {
			for _, rest := range syms[i:] {
				results = append(results, Result{Symbol: rest, Outcome: Failed, Err: ctx.Err()})
			}
			return results, provider.NewError(provider.KindOf(ctx.Err()), "", "update", ctx.Err())
		}
		entry, ok := recent[sym]
		if !ok {
			entry = provider.BatchEntry{Err: err}
			if err == nil {
				entry.Err = provider.Errorf(provider.KindNoData, u.Provider.Name(), "batch history", "no result for %s", sym)
			}
		}
		res := u.update(ctx, sym, entry, windowStart, now)
		if res.Err != nil {
			u.logf("updater: %s failed: %v", sym, res.Err)
		} else {
			u.logf("updater: %s %s (%d bars)", sym, res.Outcome, res.Bars)
		}
		results = append(results, res)
	}
	return results, nil
}

func (u *Updater) update(ctx context.Context, sym string, recent provider.BatchEntry, windowStart, now time.Time) Result {
	iv := u.interval()
	failed := func(err error) Result { return Result{Symbol: sym, Outcome: Failed, Err: err} }
	recent.Bars = u.scale(sym, recent.Bars)

	latest, ok, err := u.Store.Latest(ctx, sym, iv)
	if err != nil {
		return failed(err)
	}
	if !ok {
		n, err := u.full(ctx, sym, now)
		if err != nil {
			return failed(err)
		}
		return Result{Symbol: sym, Outcome: New, Bars: n}
	}
	if recent.Err != nil {
		return failed(recent.Err)
	}

	adjusted, err := u.adjusted(ctx, sym, recent.Bars, now)
	if err != nil {
		return failed(err)
	}
	if adjusted {
		n, err := u.full(ctx, sym, now)
		if err != nil {
			return failed(err)
		}
		return Result{Symbol: sym, Outcome: Adjusted, Bars: n}
	}

	bars := recent.Bars
	if latest.Time.Before(windowStart) {
		bars, err = u.download(ctx, sym, latest.Time, now)
		if err != nil {
			return failed(err)
		}
	}
	// The latest stored bar may have been incomplete, so it is rewritten.
	fresh := provider.Since(bars, latest.Time)
	if len(fresh) == 0 || (len(fresh) == 1 && sameBar(fresh[0], latest)) {
		return Result{Symbol: sym, Outcome: Unchanged}
	}
	if err := u.Store.Upsert(ctx, sym, iv, fresh); err != nil {
		return failed(err)
	}
	return Result{Symbol: sym, Outcome: Updated, Bars: len(fresh)}
}

func sameBar(a, b provider.Bar) bool {
	return a.Time.Equal(b.Time) && a.Open == b.Open && a.High == b.High &&
		a.Low == b.Low && a.Close == b.Close && a.Volume == b.Volume
}

// full replaces the stored history of sym with a download from StartDate.
func (u *Updater) full(ctx context.Context, sym string, now time.Time) (int, error) {
	if u.StartDate.IsZero() {
		return 0, errors.New("updater: start date is not set")
	}
	bars, err := u.download(ctx, sym, u.StartDate, now)
	if err != nil {
		return 0, err
	}
	if err := u.Store.Replace(ctx, sym, u.interval(), bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}

// download fetches sym from start to end one window at a time and returns
// the merged, scaled series. Windows without data are skipped; the call
// fails with NoData only when every window was empty.
func (u *Updater) download(ctx context.Context, sym string, start, end time.Time) ([]provider.Bar, error) {
	iv := u.interval()
	var all []provider.Bar
	var noData error
	for _, w := range windows(start, end, iv) {
		bars, err := u.Provider.History(ctx, sym, provider.HistoryQuery{
			Start:     w.start,
			End:       w.end,
			Interval:  iv,
			CountBack: countBack(w.start, w.end, iv),
		})
		if errors.Is(err, provider.KindNoData) {
			noData = err
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, bars...)
	}
	if len(all) == 0 && noData != nil {
		return nil, noData
	}
	return u.scale(sym, merge(all)), nil
}

type window struct {
	start, end time.Time
}

// windows splits [start, end] into calendar years for hourly bars and
// calendar months for minute bars. Windows do not overlap: each one ends
// the day before the next begins. Other intervals use a single window.
func windows(start, end time.Time, iv provider.Interval) []window {
	var next func(time.Time) time.Time
	switch iv {
	case provider.Hour1:
		next = func(t time.Time) time.Time {
			return time.Date(t.Year()+1, time.January, 1, 0, 0, 0, 0, t.Location())
		}
	case provider.Minute1, provider.Minute5, provider.Minute15, provider.Minute30:
		next = func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
		}
	default:
		return []window{{start, end}}
	}
	var out []window
	for s := start; !s.After(end); {
		n := next(s)
		e := n.AddDate(0, 0, -1)
		if e.After(end) {
			e = end
		}
		out = append(out, window{s, e})
		s = n
	}
	return out
}

// merge sorts bars and keeps the last bar for each timestamp.
func merge(bars []provider.Bar) []provider.Bar {
	provider.SortBars(bars)
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// scale converts provider prices to stored units. Index levels are kept
// as quoted. The input is not modified.
func (u *Updater) scale(sym string, bars []provider.Bar) []provider.Bar {
	if u.PriceScale <= 0 || u.PriceScale == 1 || indexSymbols[sym] {
		return bars
	}
	out := make([]provider.Bar, len(bars))
	for i, b := range bars {
		b.Open = u.round(b.Open / u.PriceScale)
		b.High = u.round(b.High / u.PriceScale)
		b.Low = u.round(b.Low / u.PriceScale)
		b.Close = u.round(b.Close / u.PriceScale)
		out[i] = b
	}
	return out
}

func (u *Updater) round(v float64) float64 {
	if u.Precision <= 0 {
		return v
	}
	p := math.Pow(10, float64(u.Precision))
	return math.Round(v*p) / p
}

// adjusted compares stored and fetched closes between two weeks and one
// week ago. Prices adjusted for a dividend or split make the stored closes
// consistently higher than the fetched ones.
func (u *Updater) adjusted(ctx context.Context, sym string, fetched []provider.Bar, now time.Time) (bool, error) {
	from := now.AddDate(0, 0, -compareFrom)
	to := now.AddDate(0, 0, -compareTo)
	stored, err := u.Store.Load(ctx, sym, u.interval(), from, to)
	if err != nil {
		return false, err
	}
	byTime := make(map[int64]float64, len(stored))
	for _, b := range stored {
		byTime[b.Time.Unix()] = b.Close
	}

	var sum float64
	var n int
	for _, b := range fetched {
		if b.Time.Before(from) || b.Time.After(to) {
			continue
		}
		old, ok := byTime[b.Time.Unix()]
		if !ok || old <= 0 || b.Close <= 0 {
			continue
		}
		sum += old / b.Close
		n++
	}
	if n < minCompared {
		return false, nil
	}
	avg := sum / float64(n)
	if avg > u.threshold() {
		u.logf("updater: %s history adjusted (average ratio %.4f)", sym, avg)
		return true, nil
	}
	return false, nil
}

// countBack sizes the lookback window so that every bar between start and
// end is covered.
func countBack(start, end time.Time, iv provider.Interval) int {
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	minutes := map[provider.Interval]float64{
		provider.Minute1:  1,
		provider.Minute5:  5,
		provider.Minute15: 15,
		provider.Minute30: 30,
		provider.Hour1:    60,
	}
	if m, ok := minutes[iv]; ok {
		return int(float64(days)*tradingHours*60/m) + 10
	}
	return days + 10
}

// Schedule runs UpdateAll for symbols on a cron spec with a seconds field.
// The returned cron is started; callers stop it when done.
func (u *Updater) Schedule(ctx context.Context, spec string, symbols []string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		results, err := u.UpdateAll(ctx, symbols)
		if err != nil {
			u.logf("updater: scheduled run: %v", err)
			return
		}
		u.logf("updater: scheduled run done: %s", Summary(results))
	}); err != nil {
		return nil, fmt.Errorf("register update task: %w", err)
	}
	c.Start()
	u.logf("updater: scheduled %q for %d symbols", spec, len(symbols))
	return c, nil
}

// Summary counts results per outcome, e.g. "new=1 updated=3 failed=0".
func Summary(results []Result) string {
	counts := map[Outcome]int{}
	for _, r := range results {
		counts[r.Outcome]++
	}
	return fmt.Sprintf("new=%d adjusted=%d updated=%d unchanged=%d failed=%d",
		counts[New], counts[Adjusted], counts[Updated], counts[Unchanged], counts[Failed])
}
