package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"vnmarket/internal/provider"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// vnd formats an amount in dong, e.g. "91,500 ₫".
func vnd(amount decimal.Decimal) string {
	return money.New(amount.Round(0).IntPart(), money.VND).Display()
}

func vndFloat(amount float64) string {
	return vnd(decimal.NewFromFloat(amount))
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func printCompany(w io.Writer, info *provider.CompanyInfo) {
	fmt.Fprintf(w, "%s\n", info.Symbol)
	if o := info.Overview; o != nil {
		fmt.Fprintf(w, "  name:      %s\n", orDash(o.ShortName))
		fmt.Fprintf(w, "  exchange:  %s\n", orDash(o.Exchange))
		fmt.Fprintf(w, "  industry:  %s\n", orDash(o.Industry))
		if o.OutstandingShares != nil {
			fmt.Fprintf(w, "  shares:    %d\n", *o.OutstandingShares)
		}
		if o.Website != nil {
			fmt.Fprintf(w, "  website:   %s\n", *o.Website)
		}
	}
	if info.CurrentPrice != nil {
		fmt.Fprintf(w, "  price:     %s\n", vndFloat(*info.CurrentPrice))
	}
	if info.MarketCap != nil {
		fmt.Fprintf(w, "  cap:       %s\n", vnd(*info.MarketCap))
	}
	if info.High52W != nil && info.Low52W != nil {
		fmt.Fprintf(w, "  52w:       %s - %s\n", vndFloat(*info.Low52W), vndFloat(*info.High52W))
	}
	if info.PE != nil || info.PB != nil {
		fmt.Fprintf(w, "  p/e, p/b:  %s, %s\n", ratio(info.PE), ratio(info.PB))
	}
	if len(info.Shareholders) > 0 {
		fmt.Fprintf(w, "  shareholders:\n")
		for _, s := range first(info.Shareholders, 5) {
			fmt.Fprintf(w, "    %-40s %6.2f%%\n", s.Name, s.Ownership*100)
		}
	}
	if len(info.Officers) > 0 {
		fmt.Fprintf(w, "  officers:\n")
		for _, o := range first(info.Officers, 5) {
			fmt.Fprintf(w, "    %-30s %s\n", o.Name, o.Position)
		}
	}
}

func first[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func printFinancial(w io.Writer, fin *provider.FinancialInfo) {
	fmt.Fprintf(w, "%s (%s)\n", fin.Symbol, fin.Period)
	sections := []struct {
		name    string
		records []provider.PeriodRecord
	}{
		{"balance sheet", fin.BalanceSheet},
		{"income statement", fin.IncomeStatement},
		{"cash flow", fin.CashFlow},
		{"ratios", fin.Ratios},
	}
	for _, s := range sections {
		if len(s.records) == 0 {
			fmt.Fprintf(w, "  %-17s -\n", s.name+":")
			continue
		}
		latest := s.records[0]
		fmt.Fprintf(w, "  %-17s %d periods, latest %s (%d values)\n", s.name+":", len(s.records), latest.Period, len(latest.Values))
	}

	sum := fin.Summary()
	if sum.Period == "" {
		return
	}
	fmt.Fprintf(w, "  summary %s:\n", sum.Period)
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"revenue", sum.Revenue},
		{"net income", sum.NetIncome},
		{"total assets", sum.TotalAssets},
		{"equity", sum.ShareholdersEquity},
		{"p/e", sum.PE},
		{"p/b", sum.PB},
		{"roe", sum.ROE},
		{"roa", sum.ROA},
		{"debt/equity", sum.DebtToEquity},
	} {
		if f.v != nil {
			fmt.Fprintf(w, "    %-13s %s\n", f.name+":", ratio(f.v))
		}
	}
}

func ratio(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// printBars writes a table of bars; limit > 0 keeps only the last limit bars.
func printBars(w io.Writer, symbol string, bars []provider.Bar, limit int) {
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\ttime\topen\thigh\tlow\tclose\tvolume\t\n", symbol)
	for _, b := range bars {
		fmt.Fprintf(tw, "\t%s\t%s\t%s\t%s\t%s\t%d\t\n", barTime(b.Time),
			price(b.Open), price(b.High), price(b.Low), price(b.Close), b.Volume)
	}
	tw.Flush()
}

func barTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.In(provider.ICT).Format("2006-01-02 15:04")
}

func price(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func printBatch(w io.Writer, res provider.BatchResult) {
	syms := make([]string, 0, len(res))
	for sym := range res {
		syms = append(syms, sym)
	}
	slices.Sort(syms)
	for _, sym := range syms {
		e := res[sym]
		switch {
		case e.Err != nil:
			fmt.Fprintf(w, "%-10s error: %v\n", sym, e.Err)
		case len(e.Bars) == 0:
			fmt.Fprintf(w, "%-10s no bars\n", sym)
		default:
			last := e.Bars[len(e.Bars)-1]
			fmt.Fprintf(w, "%-10s %4d bars  last %s close %s\n", sym, len(e.Bars), barTime(last.Time), price(last.Close))
		}
	}
}

type batchEntryJSON struct {
	Bars  []provider.Bar `json:"bars,omitempty"`
	Error string         `json:"error,omitempty"`
	Kind  string         `json:"kind,omitempty"`
}

func batchJSON(res provider.BatchResult) map[string]batchEntryJSON {
	out := make(map[string]batchEntryJSON, len(res))
	for sym, e := range res {
		entry := batchEntryJSON{Bars: e.Bars}
		if e.Err != nil {
			entry.Error = e.Err.Error()
			entry.Kind = strings.ReplaceAll(provider.KindOf(e.Err).String(), " ", "_")
		}
		out[sym] = entry
	}
	return out
}
