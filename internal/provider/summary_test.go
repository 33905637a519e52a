package provider_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"vnmarket/internal/provider"
)

func TestFinancialSummaryVCICodes(t *testing.T) {
	t.Parallel()

	// Arrange: VCI keeps statement codes and ratios on one record per
	// period; records arrive in any order.
	fin := &provider.FinancialInfo{
		Symbol: "VCB",
		Period: provider.Quarter,
		BalanceSheet: []provider.PeriodRecord{
			{Period: "2024-Q1", Values: map[string]float64{"BSA1": 1800}},
			{Period: "2024-Q2", Values: map[string]float64{"BSA1": 1950}},
		},
		Ratios: []provider.PeriodRecord{
			{Period: "2023-Q4", Values: map[string]float64{"pe": 14}},
			{Period: "2024-Q2", Values: map[string]float64{
				"pe": 15.2, "pb": 2.8, "roe": 0.21, "de": 11.5, "netProfitMargin": 0.5,
				"revenue": 16519, "netProfit": 8470,
			}},
		},
	}

	// Act
	s := fin.Summary()

	// Assert
	require.Equal(t, "2024-Q2", s.Period)
	require.Equal(t, 15.2, *s.PE)
	require.Equal(t, 2.8, *s.PB)
	require.Equal(t, 0.21, *s.ROE)
	require.Equal(t, 11.5, *s.DebtToEquity)
	require.Equal(t, 0.5, *s.NetMargin)
	require.Equal(t, 16519.0, *s.Revenue)
	require.Equal(t, 8470.0, *s.NetIncome)
	require.Equal(t, 1950.0, *s.TotalAssets)
	require.Nil(t, s.ROA)
	require.Nil(t, s.ShareholdersEquity)
}

func TestFinancialSummaryTCBSNames(t *testing.T) {
	t.Parallel()

	fin := &provider.FinancialInfo{
		Symbol:          "FPT",
		Period:          provider.Year,
		BalanceSheet:    []provider.PeriodRecord{{Period: "2023", Values: map[string]float64{"asset": 60000, "equity": 30000}}},
		IncomeStatement: []provider.PeriodRecord{{Period: "2023", Values: map[string]float64{"revenue": 52000, "post_tax_profit": 7800}}},
		Ratios:          []provider.PeriodRecord{{Period: "2023", Values: map[string]float64{"price_to_earning": 22.5, "price_to_book": 5.1, "roa": 0.12}}},
	}

	s := fin.Summary()

	require.Equal(t, "2023", s.Period)
	require.Equal(t, 22.5, *s.PE)
	require.Equal(t, 5.1, *s.PB)
	require.Equal(t, 0.12, *s.ROA)
	require.Equal(t, 52000.0, *s.Revenue)
	require.Equal(t, 7800.0, *s.NetIncome)
	require.Equal(t, 60000.0, *s.TotalAssets)
	require.Equal(t, 30000.0, *s.ShareholdersEquity)
}

func TestFinancialSummaryEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t, provider.FinancialSummary{}, (&provider.FinancialInfo{Symbol: "X"}).Summary())
}

func TestCompanyInfoCloneIsDeep(t *testing.T) {
	t.Parallel()

	// Arrange
	name, price := "Vietcombank", 91500.0
	qty, own := int64(10), 0.5
	mc := decimal.NewFromInt(100)
	orig := &provider.CompanyInfo{
		Symbol:       "VCB",
		Overview:     &provider.CompanyOverview{ShortName: &name},
		CurrentPrice: &price,
		MarketCap:    &mc,
		Shareholders: []provider.Shareholder{{Name: "SBV", Ownership: 0.75, Quantity: &qty}},
		Officers:     []provider.Officer{{Name: "A", Ownership: &own}},
	}

	// Act
	c := orig.Clone()
	*c.Overview.ShortName = "changed"
	*c.CurrentPrice = 1
	*c.Shareholders[0].Quantity = 99
	c.Shareholders[0].Name = "changed"
	*c.Officers[0].Ownership = 0

	// Assert
	require.Equal(t, "Vietcombank", *orig.Overview.ShortName)
	require.Equal(t, 91500.0, *orig.CurrentPrice)
	require.Equal(t, int64(10), *orig.Shareholders[0].Quantity)
	require.Equal(t, "SBV", orig.Shareholders[0].Name)
	require.Equal(t, 0.5, *orig.Officers[0].Ownership)
	require.Nil(t, (*provider.CompanyInfo)(nil).Clone())
}

func TestFinancialInfoCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &provider.FinancialInfo{Ratios: []provider.PeriodRecord{{Period: "2024", Values: map[string]float64{"pe": 10}}}}

	c := orig.Clone()
	c.Ratios[0].Values["pe"] = 1
	c.Ratios[0].Period = "1999"

	require.Equal(t, 10.0, orig.Ratios[0].Values["pe"])
	require.Equal(t, "2024", orig.Ratios[0].Period)
}
