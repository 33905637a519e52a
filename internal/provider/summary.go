package provider

import (
	"maps"
	"slices"
)

// FinancialSummary holds headline figures from the latest period of a
// FinancialInfo. Figures a provider does not report are nil.
type FinancialSummary struct {
	Period             string   `json:"period,omitempty"`
	Revenue            *float64 `json:"revenue,omitempty"`
	NetIncome          *float64 `json:"net_income,omitempty"`
	TotalAssets        *float64 `json:"total_assets,omitempty"`
	ShareholdersEquity *float64 `json:"shareholders_equity,omitempty"`
	PE                 *float64 `json:"pe,omitempty"`
	PB                 *float64 `json:"pb,omitempty"`
	ROE                *float64 `json:"roe,omitempty"`
	ROA                *float64 `json:"roa,omitempty"`
	DebtToEquity       *float64 `json:"debt_to_equity,omitempty"`
	CurrentRatio       *float64 `json:"current_ratio,omitempty"`
	GrossMargin        *float64 `json:"gross_margin,omitempty"`
	NetMargin          *float64 `json:"net_margin,omitempty"`
}

// Summary picks the headline figures out of the latest period of each
// statement. VCI reports them under its metric codes (BSA1, de, netProfit)
// and TCBS under snake_case names, so each figure has several keys.
func (f *FinancialInfo) Summary() FinancialSummary {
	ratios := latest(f.Ratios)
	bs := latest(f.BalanceSheet)
	is := latest(f.IncomeStatement)

	s := FinancialSummary{
		PE:           pick(ratios, "pe", "price_to_earning"),
		PB:           pick(ratios, "pb", "price_to_book"),
		ROE:          pick(ratios, "roe"),
		ROA:          pick(ratios, "roa"),
		DebtToEquity: pick(ratios, "de", "debt_on_equity", "debt_to_equity"),
		CurrentRatio: pick(ratios, "currentRatio", "current_payment", "current_ratio"),
		GrossMargin:  pick(ratios, "grossMargin", "gross_profit_margin"),
		NetMargin:    pick(ratios, "netProfitMargin", "net_profit_margin", "post_tax_on_revenue"),
		Revenue:      pick(is, "revenue", "net_sale"),
		NetIncome:    pick(is, "netProfit", "post_tax_profit", "profit_after_tax", "net_income"),
		TotalAssets:  pick(bs, "BSA1", "asset", "total_asset"),
	}
	s.ShareholdersEquity = pick(bs, "equity", "total_equity")
	// VCI carries revenue and profit on the ratio record as well.
	if s.Revenue == nil {
		s.Revenue = pick(ratios, "revenue")
	}
	if s.NetIncome == nil {
		s.NetIncome = pick(ratios, "netProfit")
	}
	if s.TotalAssets == nil {
		s.TotalAssets = pick(ratios, "BSA1")
	}
	for _, r := range []*PeriodRecord{ratios, is, bs} {
		if r != nil && r.Period > s.Period {
			s.Period = r.Period
		}
	}
	return s
}

// latest returns the record with the greatest period label. Labels are
// "2024" or "2024-Q2" and sort chronologically as strings.
func latest(records []PeriodRecord) *PeriodRecord {
	if len(records) == 0 {
		return nil
	}
	i := 0
	for j := range records {
		if records[j].Period > records[i].Period {
			i = j
		}
	}
	return &records[i]
}

func pick(r *PeriodRecord, keys ...string) *float64 {
	if r == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := r.Values[k]; ok {
			return &v
		}
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *CompanyInfo) Clone() *CompanyInfo {
	if c == nil {
		return nil
	}
	out := *c
	if c.Overview != nil {
		o := *c.Overview
		o.Exchange = clonePtr(o.Exchange)
		o.Industry = clonePtr(o.Industry)
		o.CompanyType = clonePtr(o.CompanyType)
		o.ShortName = clonePtr(o.ShortName)
		o.EstablishedYear = clonePtr(o.EstablishedYear)
		o.Employees = clonePtr(o.Employees)
		o.OutstandingShares = clonePtr(o.OutstandingShares)
		o.Website = clonePtr(o.Website)
		o.Profile = clonePtr(o.Profile)
		out.Overview = &o
	}
	out.MarketCap = clonePtr(c.MarketCap)
	out.CurrentPrice = clonePtr(c.CurrentPrice)
	out.High52W = clonePtr(c.High52W)
	out.Low52W = clonePtr(c.Low52W)
	out.PE = clonePtr(c.PE)
	out.PB = clonePtr(c.PB)
	out.Shareholders = slices.Clone(c.Shareholders)
	for i := range out.Shareholders {
		out.Shareholders[i].Quantity = clonePtr(out.Shareholders[i].Quantity)
	}
	out.Officers = slices.Clone(c.Officers)
	for i := range out.Officers {
		out.Officers[i].Ownership = clonePtr(out.Officers[i].Ownership)
	}
	return &out
}

// Clone returns a deep copy of f.
func (f *FinancialInfo) Clone() *FinancialInfo {
	if f == nil {
		return nil
	}
	out := *f
	out.BalanceSheet = cloneRecords(f.BalanceSheet)
	out.IncomeStatement = cloneRecords(f.IncomeStatement)
	out.CashFlow = cloneRecords(f.CashFlow)
	out.Ratios = cloneRecords(f.Ratios)
	return &out
}

func cloneRecords(records []PeriodRecord) []PeriodRecord {
	out := slices.Clone(records)
	for i := range out {
		out[i].Values = maps.Clone(out[i].Values)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
