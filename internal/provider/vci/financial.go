package vci

import (
	"context"
	"fmt"
	"strings"

	"vnmarket/internal/provider"
)

// non-metric keys of a ratio record
var ratioMeta = map[string]bool{
	"ticker": true, "yearReport": true, "lengthReport": true, "updateDate": true, "__typename": true,
}

// income statement summary metrics carried alongside the IS* codes
var incomeExtras = map[string]bool{
	"revenue": true, "netProfit": true, "grossMargin": true, "netProfitMargin": true,
}

// FinancialInfo returns statements derived from the company financial ratio
// query: every record is split by metric code prefix into balance sheet
// (BSA, BSB), income statement (ISA, ISB, ISS, ISI plus headline figures) and
// cash flow (CFA, CFB, CFS). Ratios keep every numeric metric.
func (c *Client) FinancialInfo(ctx context.Context, symbol string, period provider.Period) (*provider.FinancialInfo, error) {
	sym, err := provider.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	code := "Q"
	switch period {
	case provider.Quarter, "":
		period = provider.Quarter
	case provider.Year:
		code = "Y"
	default:
		return nil, provider.Errorf(provider.KindInvalidInput, Name, "financials", "unsupported period %q", period)
	}

	doc, err := c.graphql(ctx, "financials", financialRatioQuery, map[string]string{"ticker": sym, "period": code})
	if err != nil {
		return nil, err
	}
	records := objects(doc, "$.data.CompanyFinancialRatio.ratio")
	if len(records) == 0 {
		return nil, provider.Errorf(provider.KindNoData, Name, "financials", "no financial ratios for %s", sym)
	}

	info := &provider.FinancialInfo{Symbol: sym, Period: period}
	for _, rec := range records {
		label, err := periodLabel(rec, period)
		if err != nil {
			return nil, provider.NewError(provider.KindDecode, Name, "financials", fmt.Errorf("%s: %w", sym, err))
		}
		all := map[string]float64{}
		bs := map[string]float64{}
		is := map[string]float64{}
		cf := map[string]float64{}
		for key, raw := range rec {
			if ratioMeta[key] {
				continue
			}
			v, ok := provider.Float(raw)
			if !ok {
				continue
			}
			all[key] = v
			switch {
			case hasPrefix(key, "BSA", "BSB"):
				bs[key] = v
			case hasPrefix(key, "ISA", "ISB", "ISS", "ISI") || incomeExtras[key]:
				is[key] = v
			case hasPrefix(key, "CFA", "CFB", "CFS"):
				cf[key] = v
			}
		}
		info.Ratios = appendRecord(info.Ratios, label, all)
		info.BalanceSheet = appendRecord(info.BalanceSheet, label, bs)
		info.IncomeStatement = appendRecord(info.IncomeStatement, label, is)
		info.CashFlow = appendRecord(info.CashFlow, label, cf)
	}
	return info, nil
}

func periodLabel(rec map[string]any, period provider.Period) (string, error) {
	year, ok := provider.Float(rec["yearReport"])
	if !ok {
		return "", fmt.Errorf("record without yearReport")
	}
	if period == provider.Year {
		return fmt.Sprintf("%d", int(year)), nil
	}
	quarter, ok := provider.Float(rec["lengthReport"])
	if !ok || quarter < 1 || quarter > 4 {
		return "", fmt.Errorf("record %d has invalid lengthReport %v", int(year), rec["lengthReport"])
	}
	return fmt.Sprintf("%d-Q%d", int(year), int(quarter)), nil
}

func appendRecord(list []provider.PeriodRecord, label string, values map[string]float64) []provider.PeriodRecord {
	if len(values) == 0 {
		return list
	}
	return append(list, provider.PeriodRecord{Period: label, Values: values})
}

func hasPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
