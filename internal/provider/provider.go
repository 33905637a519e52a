package provider

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLCV price bar. Times are UTC.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// CompanyOverview holds the descriptive fields of a listed company.
// Providers fill them inconsistently, so every field is optional.
type CompanyOverview struct {
	Exchange          *string `json:"exchange,omitempty"`
	Industry          *string `json:"industry,omitempty"`
	CompanyType       *string `json:"company_type,omitempty"`
	ShortName         *string `json:"short_name,omitempty"`
	EstablishedYear   *int    `json:"established_year,omitempty"`
	Employees         *int    `json:"employees,omitempty"`
	OutstandingShares *int64  `json:"outstanding_shares,omitempty"`
	Website           *string `json:"website,omitempty"`
	Profile           *string `json:"profile,omitempty"`
}

type Shareholder struct {
	Name      string  `json:"name"`
	Ownership float64 `json:"ownership"`
	Quantity  *int64  `json:"quantity,omitempty"`
}

type Officer struct {
	Name      string   `json:"name"`
	Position  string   `json:"position"`
	Ownership *float64 `json:"ownership,omitempty"`
}

// CompanyInfo is the normalized company snapshot returned by all providers.
// MarketCap is in VND.
type CompanyInfo struct {
	Symbol       string           `json:"symbol"`
	Overview     *CompanyOverview `json:"overview,omitempty"`
	MarketCap    *decimal.Decimal `json:"market_cap,omitempty"`
	CurrentPrice *float64         `json:"current_price,omitempty"`
	// High52W and Low52W are the trailing one-year price range.
	High52W *float64 `json:"high_52w,omitempty"`
	Low52W  *float64 `json:"low_52w,omitempty"`
	// PE and PB are the valuation ratios quoted with the price.
	PE           *float64      `json:"pe,omitempty"`
	PB           *float64      `json:"pb,omitempty"`
	Shareholders []Shareholder `json:"shareholders"`
	Officers     []Officer     `json:"officers"`
}

// PeriodRecord is one reporting period of a financial statement.
type PeriodRecord struct {
	Period string             `json:"period"`
	Values map[string]float64 `json:"values"`
}

// FinancialInfo groups the statements of one company for one period kind.
// A nil statement means the provider did not supply it.
type FinancialInfo struct {
	Symbol          string         `json:"symbol"`
	Period          Period         `json:"period"`
	BalanceSheet    []PeriodRecord `json:"balance_sheet,omitempty"`
	IncomeStatement []PeriodRecord `json:"income_statement,omitempty"`
	CashFlow        []PeriodRecord `json:"cash_flow,omitempty"`
	Ratios          []PeriodRecord `json:"ratios,omitempty"`
}

// BatchEntry is the outcome of one symbol in a batch history request.
type BatchEntry struct {
	Bars []Bar
	Err  error
}

// BatchResult maps each requested symbol to its outcome.
type BatchResult map[string]BatchEntry

// Failed returns the symbols whose entry carries an error.
func (r BatchResult) Failed() []string {
	var out []string
	for sym, e := range r {
		if e.Err != nil {
			out = append(out, sym)
		}
	}
	slices.Sort(out)
	return out
}

// Provider is implemented by every market data source and by the wrappers
// (rate limiting, caching, failover) layered on top of them.
type Provider interface {
	Name() string
	CompanyInfo(ctx context.Context, symbol string) (*CompanyInfo, error)
	FinancialInfo(ctx context.Context, symbol string, period Period) (*FinancialInfo, error)
	History(ctx context.Context, symbol string, q HistoryQuery) ([]Bar, error)
	BatchHistory(ctx context.Context, symbols []string, q HistoryQuery) (BatchResult, error)
}
