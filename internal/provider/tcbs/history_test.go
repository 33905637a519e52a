package tcbs_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"vnmarket/internal/provider"
)

func TestHistoryRequestShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol     string
		interval   provider.Interval
		countBack  int
		wantPath   string
		wantTicker string
		wantType   string
		wantRes    string
		wantCount  string
	}{
		{"VCB", provider.Day1, 0, "/stock-insight/v2/stock/bars-long-term", "VCB", "stock", "D", "365"},
		{"vnindex", provider.Week1, 0, "/stock-insight/v2/stock/bars-long-term", "VNINDEX", "stock", "W", "365"},
		{"HNXINDEX", provider.Month1, 24, "/stock-insight/v2/stock/bars-long-term", "HNXIndex", "stock", "M", "24"},
		{"UPCOMINDEX", provider.Day1, 0, "/stock-insight/v2/stock/bars-long-term", "UPCOM", "stock", "D", "365"},
		{"FPT", provider.Hour1, 100, "/stock-insight/v2/stock/bars", "FPT", "stock", "60", "100"},
		{"VN30F2406", provider.Minute15, 0, "/futures-insight/v2/stock/bars", "VN30F2406", "derivative", "15", "365"},
	}
	for _, tt := range tests {
		t.Run(tt.symbol+"/"+string(tt.interval), func(t *testing.T) {
			t.Parallel()

			// Arrange
			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				DoAndReturn(func(req *http.Request) (*http.Response, error) {
					require.Equal(t, http.MethodGet, req.Method)
					require.Equal(t, tt.wantPath, req.URL.Path)
					q := req.URL.Query()
					require.Equal(t, tt.wantRes, q.Get("resolution"))
					require.Equal(t, tt.wantTicker, q.Get("ticker"))
					require.Equal(t, tt.wantType, q.Get("type"))
					// midnight after the end date in ICT
					require.Equal(t, "1704474000", q.Get("to"))
					require.Equal(t, tt.wantCount, q.Get("countBack"))
					return respond(http.StatusOK, fixture(t, "bars_daily.json")), nil
				}).
				Times(1)
			client := newClient(t, httpClient)

			// Act
			_, err := client.History(t.Context(), tt.symbol, provider.HistoryQuery{
				Start:     date(t, "2024-01-02"),
				End:       date(t, "2024-01-05"),
				Interval:  tt.interval,
				CountBack: tt.countBack,
			})

			// Assert
			require.NoError(t, err)
		})
	}
}

func TestHistoryDecodesRows(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(respond(http.StatusOK, fixture(t, "bars_daily.json")), nil).
		Times(1)
	client := newClient(t, httpClient)

	// Act
	bars, err := client.History(t.Context(), "VCB", provider.HistoryQuery{Start: date(t, "2024-01-02"), End: date(t, "2024-01-05")})

	// Assert: sorted, bad date and bad prices dropped, earlier bars filtered.
	require.NoError(t, err)
	require.NoError(t, provider.ValidateSeries(bars))
	require.Equal(t, []provider.Bar{
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 85, High: 86.5, Low: 84.8, Close: 86, Volume: 1500000},
		{Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 86, High: 87, Low: 85.5, Close: 86.8, Volume: 1300000},
		{Time: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Open: 87, High: 88, Low: 86.5, Close: 87.5, Volume: 1200000},
	}, bars)
}

func TestHistoryKeepsIntradayTimes(t *testing.T) {
	t.Parallel()

	// Arrange
	body := `{"data":[
		{"open":10,"high":11,"low":9.5,"close":10.5,"volume":100,"tradingDate":"2024-01-02T02:15:00.000Z"},
		{"open":10.5,"high":11,"low":10,"close":10.8,"volume":200,"tradingDate":"2024-01-02T02:30:00.000Z"}
	]}`
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(respond(http.StatusOK, body), nil).Times(1)
	client := newClient(t, httpClient)

	// Act
	bars, err := client.History(t.Context(), "FPT", provider.HistoryQuery{Start: date(t, "2024-01-02"), End: date(t, "2024-01-02"), Interval: provider.Minute15})

	// Assert
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, time.Date(2024, 1, 2, 2, 15, 0, 0, time.UTC), bars[0].Time)
	require.Equal(t, time.Date(2024, 1, 2, 2, 30, 0, 0, time.UTC), bars[1].Time)
}

func TestHistoryDecodesColumns(t *testing.T) {
	t.Parallel()

	// Arrange
	body := `{"data":{"t":[1704240000,1704153600],"o":[2,1],"h":[3,2],"l":[1.5,0.5],"c":[2.5,1.5],"v":[20,10]}}`
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(respond(http.StatusOK, body), nil).Times(1)
	client := newClient(t, httpClient)

	// Act
	bars, err := client.History(t.Context(), "VCB", provider.HistoryQuery{Start: date(t, "2024-01-02"), End: date(t, "2024-01-03")})

	// Assert
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, 1.5, bars[0].Close)
	require.Equal(t, 2.5, bars[1].Close)
}

func TestHistoryErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responses []*http.Response
		want      provider.Kind
	}{
		{"empty list", []*http.Response{respond(http.StatusOK, `{"data":[]}`)}, provider.KindNoData},
		{"missing data", []*http.Response{respond(http.StatusOK, `{}`)}, provider.KindNoData},
		{"wrong data type", []*http.Response{respond(http.StatusOK, `{"data":"oops"}`)}, provider.KindDecode},
		{"unequal arrays", []*http.Response{respond(http.StatusOK, `{"data":{"t":[1704153600],"o":[1,2],"h":[2],"l":[1],"c":[1],"v":[]}}`)}, provider.KindDecode},
		{"not found is not retried", []*http.Response{respond(http.StatusNotFound, `{"message":"not found"}`)}, provider.KindNotFound},
		{"server error", []*http.Response{respond(http.StatusInternalServerError, ``), respond(http.StatusBadGateway, ``)}, provider.KindServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			calls := make([]any, 0, len(tt.responses))
			for _, res := range tt.responses {
				calls = append(calls, httpClient.EXPECT().Do(gomock.Any()).Return(res, nil))
			}
			gomock.InOrder(calls...)
			client := newClient(t, httpClient)

			// Act
			_, err := client.History(t.Context(), "VCB", provider.HistoryQuery{Start: date(t, "2024-01-02")})

			// Assert
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHistoryInvalidInterval(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := newClient(t, NewMockHTTPClient(ctrl))

	_, err := client.History(t.Context(), "VCB", provider.HistoryQuery{Start: date(t, "2024-01-02"), Interval: "3D"})
	require.ErrorIs(t, err, provider.KindInvalidInput)
}
