package tcbs

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"vnmarket/internal/provider"
)

// non-metric keys of a statement record
var recordMeta = map[string]bool{"ticker": true, "year": true, "quarter": true}

// FinancialInfo fetches the balance sheet, income statement, cash flow and
// ratio reports. Metric names are converted to snake_case. A report that
// fails is left nil; the call fails only when every report failed.
func (c *Client) FinancialInfo(ctx context.Context, symbol string, period provider.Period) (*provider.FinancialInfo, error) {
	sym, err := provider.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	yearly := "1"
	switch period {
	case provider.Quarter, "":
		period = provider.Quarter
	case provider.Year:
		yearly = "0"
	default:
		return nil, provider.Errorf(provider.KindInvalidInput, Name, "financials", "unsupported period %q", period)
	}

	secs := &sections{c: c, sym: sym}
	query := url.Values{"yearly": {yearly}, "isAll": {"true"}}
	report := func(name string) []provider.PeriodRecord {
		var records []map[string]any
		if !secs.fetch(ctx, name, "/tcanalysis/v1/finance/"+sym+"/"+name, query, &records) {
			return nil
		}
		recs, err := statement(records, period)
		if err != nil {
			secs.fail(name, provider.NewError(provider.KindDecode, Name, name, fmt.Errorf("%s: %w", sym, err)))
			return nil
		}
		return recs
	}

	info := &provider.FinancialInfo{Symbol: sym, Period: period}
	for _, r := range []struct {
		name string
		dst  *[]provider.PeriodRecord
	}{
		{"balance_sheet", &info.BalanceSheet},
		{"income_statement", &info.IncomeStatement},
		{"cash_flow", &info.CashFlow},
		{"financialratio", &info.Ratios},
	} {
		*r.dst = report(r.name)
	}

	if secs.ok == 0 {
		return nil, secs.firstErr
	}
	if info.BalanceSheet == nil && info.IncomeStatement == nil && info.CashFlow == nil && info.Ratios == nil {
		return nil, provider.Errorf(provider.KindNoData, Name, "financials", "no financial reports for %s", sym)
	}
	return info, nil
}

// statement converts report records to period records, newest first as
// served. Records without numeric metrics are skipped.
func statement(records []map[string]any, period provider.Period) ([]provider.PeriodRecord, error) {
	var out []provider.PeriodRecord
	for _, rec := range records {
		year, ok := provider.Float(rec["year"])
		if !ok {
			return nil, fmt.Errorf("record without year")
		}
		label := fmt.Sprintf("%d", int(year))
		if period == provider.Quarter {
			quarter, ok := provider.Float(rec["quarter"])
			if !ok || quarter < 1 || quarter > 4 {
				return nil, fmt.Errorf("record %d has invalid quarter %v", int(year), rec["quarter"])
			}
			label = fmt.Sprintf("%d-Q%d", int(year), int(quarter))
		}

		values := map[string]float64{}
		for key, raw := range rec {
			if recordMeta[key] {
				continue
			}
			if v, ok := provider.Float(raw); ok {
				values[snakeCase(key)] = v
			}
		}
		if len(values) > 0 {
			out = append(out, provider.PeriodRecord{Period: label, Values: values})
		}
	}
	return out, nil
}

// snakeCase converts camelCase to snake_case: shortAsset -> short_asset,
// ebitdaTTM -> ebitda_ttm, industryIDv2 -> industry_i_dv2.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
