package vci_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"vnmarket/internal/provider"
)

func TestFinancialInfoSplitsStatements(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			var body graphqlBody
			decodeBody(t, req, &body)
			require.Equal(t, map[string]string{"ticker": "VCB", "period": "Q"}, body.Variables)
			require.Contains(t, body.Query, "CompanyFinancialRatio(ticker: $ticker, period: $period)")
			return respond(http.StatusOK, fixture(t, "financial_ratio.json")), nil
		}).
		Times(1)
	client := newClient(t, httpClient)

	// Act
	info, err := client.FinancialInfo(t.Context(), "VCB", provider.Quarter)

	// Assert
	require.NoError(t, err)
	require.Equal(t, "VCB", info.Symbol)
	require.Equal(t, provider.Quarter, info.Period)

	require.Len(t, info.BalanceSheet, 2)
	require.Equal(t, "2024-Q2", info.BalanceSheet[0].Period)
	require.Equal(t, map[string]float64{"BSA1": 1950000000000000, "BSA2": 14500000000000, "BSB97": 1200000000000}, info.BalanceSheet[0].Values)

	require.Equal(t, map[string]float64{
		"ISA1": 16519000000000, "ISB25": 5400000000000, "revenue": 16519000000000, "netProfit": 8470000000000,
	}, info.IncomeStatement[0].Values)
	require.Equal(t, "2024-Q1", info.IncomeStatement[1].Period)

	// the Q1 record has no cash flow codes
	require.Len(t, info.CashFlow, 1)
	require.Equal(t, -250000000000.0, info.CashFlow[0].Values["CFS200"])

	require.Len(t, info.Ratios, 2)
	require.Equal(t, 15.2, info.Ratios[0].Values["pe"])
	require.NotContains(t, info.Ratios[0].Values, "yearReport")
	require.NotContains(t, info.Ratios[0].Values, "ISA20")
}

func TestFinancialInfoYearly(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			var body graphqlBody
			decodeBody(t, req, &body)
			require.Equal(t, "Y", body.Variables["period"])
			return respond(http.StatusOK, `{"data":{"CompanyFinancialRatio":{"ratio":[{"yearReport":2023,"lengthReport":5,"pe":12.5}]}}}`), nil
		}).
		Times(1)
	client := newClient(t, httpClient)

	info, err := client.FinancialInfo(t.Context(), "FPT", provider.Year)

	require.NoError(t, err)
	require.Nil(t, info.BalanceSheet)
	require.Nil(t, info.IncomeStatement)
	require.Nil(t, info.CashFlow)
	require.Equal(t, []provider.PeriodRecord{{Period: "2023", Values: map[string]float64{"pe": 12.5}}}, info.Ratios)
}

func TestFinancialInfoNoRecords(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(respond(http.StatusOK, `{"data":{"CompanyFinancialRatio":null}}`), nil).
		Times(1)
	client := newClient(t, httpClient)

	_, err := client.FinancialInfo(t.Context(), "FPT", provider.Quarter)
	require.ErrorIs(t, err, provider.KindNoData)
}

func TestFinancialInfoInvalidPeriod(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := newClient(t, NewMockHTTPClient(ctrl))

	_, err := client.FinancialInfo(t.Context(), "FPT", provider.Period("month"))
	require.ErrorIs(t, err, provider.KindInvalidInput)
}
