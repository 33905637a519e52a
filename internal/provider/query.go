package provider

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the bar width of a history request.
type Interval string

const (
	Minute1  Interval = "1m"
	Minute5  Interval = "5m"
	Minute15 Interval = "15m"
	Minute30 Interval = "30m"
	Hour1    Interval = "1H"
	Day1     Interval = "1D"
	Week1    Interval = "1W"
	Month1   Interval = "1M"
)

var intervals = []Interval{Minute1, Minute5, Minute15, Minute30, Hour1, Day1, Week1, Month1}

// ParseInterval accepts the canonical interval names. "1h", "1d" and "1w"
// are accepted as aliases; "1m" is always minutes and "1M" always months.
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return Day1, nil
	case "1h":
		return Hour1, nil
	case "1d":
		return Day1, nil
	case "1w":
		return Week1, nil
	}
	for _, iv := range intervals {
		if string(iv) == s {
			return iv, nil
		}
	}
	return "", NewError(KindInvalidInput, "", "parse interval", fmt.Errorf("unsupported interval %q", s))
}

// Intraday reports whether bars of this interval are shorter than a day.
func (iv Interval) Intraday() bool {
	switch iv {
	case Minute1, Minute5, Minute15, Minute30, Hour1:
		return true
	}
	return false
}

// Period selects quarterly or yearly financial statements.
type Period string

const (
	Quarter Period = "quarter"
	Year    Period = "year"
)

func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quarter", "q", "quarterly":
		return Quarter, nil
	case "year", "y", "yearly", "annual":
		return Year, nil
	}
	return "", NewError(KindInvalidInput, "", "parse period", fmt.Errorf("unsupported period %q", s))
}

// ICT is the exchange calendar zone (UTC+7, no daylight saving).
var ICT = time.FixedZone("ICT", 7*60*60)

// ParseDate parses YYYY-MM-DD as midnight in ICT.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), ICT)
	if err != nil {
		return time.Time{}, NewError(KindInvalidInput, "", "parse date", err)
	}
	return t, nil
}

// Day truncates t to midnight of its ICT calendar date.
func Day(t time.Time) time.Time {
	t = t.In(ICT)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ICT)
}

// DefaultCountBack is the lookback window used when a query leaves it unset.
const DefaultCountBack = 365

// HistoryQuery describes a history request. Start is required; a zero End
// means today; a zero Interval means daily bars.
type HistoryQuery struct {
	Start     time.Time
	End       time.Time
	Interval  Interval
	CountBack int
}

// Normalize validates q and fills defaults relative to now.
func (q HistoryQuery) Normalize(now time.Time) (HistoryQuery, error) {
	if q.Interval == "" {
		q.Interval = Day1
	}
	if _, err := ParseInterval(string(q.Interval)); err != nil {
		return q, err
	}
	if q.Start.IsZero() {
		return q, NewError(KindInvalidInput, "", "history query", fmt.Errorf("start date is required"))
	}
	q.Start = Day(q.Start)
	if q.End.IsZero() {
		q.End = Day(now)
	} else {
		q.End = Day(q.End)
	}
	if q.End.Before(q.Start) {
		return q, NewError(KindInvalidInput, "", "history query",
			fmt.Errorf("end date %s is before start date %s", q.End.Format(time.DateOnly), q.Start.Format(time.DateOnly)))
	}
	if q.CountBack < 0 {
		return q, NewError(KindInvalidInput, "", "history query", fmt.Errorf("negative count back %d", q.CountBack))
	}
	if q.CountBack == 0 {
		q.CountBack = DefaultCountBack
	}
	return q, nil
}

// NormalizeSymbol trims and upper-cases a ticker and rejects anything that
// is not a plain alphanumeric code.
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if sym == "" {
		return "", NewError(KindInvalidInput, "", "symbol", fmt.Errorf("empty symbol"))
	}
	for _, r := range sym {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", NewError(KindInvalidInput, "", "symbol", fmt.Errorf("invalid symbol %q", s))
		}
	}
	return sym, nil
}

// NormalizeSymbols normalizes and de-duplicates symbols, keeping order.
func NormalizeSymbols(symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, NewError(KindInvalidInput, "", "symbols", fmt.Errorf("no symbols"))
	}
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		sym, err := NormalizeSymbol(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, nil
}
