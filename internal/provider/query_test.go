package provider_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"vnmarket/internal/provider"
)

func TestParseInterval(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]provider.Interval{
		"1m": provider.Minute1, "5m": provider.Minute5, "15m": provider.Minute15, "30m": provider.Minute30,
		"1H": provider.Hour1, "1h": provider.Hour1, "1D": provider.Day1, "1d": provider.Day1, "": provider.Day1,
		"1W": provider.Week1, "1w": provider.Week1, "1M": provider.Month1,
	} {
		got, err := provider.ParseInterval(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := provider.ParseInterval("2D")
	require.ErrorIs(t, err, provider.KindInvalidInput)
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	p, err := provider.ParsePeriod("Year")
	require.NoError(t, err)
	require.Equal(t, provider.Year, p)

	p, err = provider.ParsePeriod("")
	require.NoError(t, err)
	require.Equal(t, provider.Quarter, p)

	_, err = provider.ParsePeriod("month")
	require.ErrorIs(t, err, provider.KindInvalidInput)
}

func TestHistoryQueryNormalize(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 20, 0, 0, 0, time.UTC) // 2024-06-11 03:00 ICT

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		start, err := provider.ParseDate("2024-01-02")
		require.NoError(t, err)

		q, err := provider.HistoryQuery{Start: start}.Normalize(now)
		require.NoError(t, err)
		require.Equal(t, provider.Day1, q.Interval)
		require.Equal(t, provider.DefaultCountBack, q.CountBack)
		require.Equal(t, "2024-06-11", q.End.Format(time.DateOnly))
	})

	t.Run("missing start", func(t *testing.T) {
		t.Parallel()

		_, err := provider.HistoryQuery{}.Normalize(now)
		require.ErrorIs(t, err, provider.KindInvalidInput)
	})

	t.Run("end before start", func(t *testing.T) {
		t.Parallel()

		start, _ := provider.ParseDate("2024-03-01")
		end, _ := provider.ParseDate("2024-02-01")
		_, err := provider.HistoryQuery{Start: start, End: end}.Normalize(now)
		require.ErrorIs(t, err, provider.KindInvalidInput)
	})

	t.Run("bad interval", func(t *testing.T) {
		t.Parallel()

		start, _ := provider.ParseDate("2024-03-01")
		_, err := provider.HistoryQuery{Start: start, Interval: "7m"}.Normalize(now)
		require.ErrorIs(t, err, provider.KindInvalidInput)
	})
}

func TestNormalizeSymbols(t *testing.T) {
	t.Parallel()

	got, err := provider.NormalizeSymbols([]string{" vcb", "FPT", "VCB ", "vn30f2412"})
	require.NoError(t, err)
	require.Equal(t, []string{"VCB", "FPT", "VN30F2412"}, got)

	_, err = provider.NormalizeSymbols([]string{"VCB", "  "})
	require.ErrorIs(t, err, provider.KindInvalidInput)

	_, err = provider.NormalizeSymbol("VCB/../x")
	require.ErrorIs(t, err, provider.KindInvalidInput)

	_, err = provider.NormalizeSymbols(nil)
	require.ErrorIs(t, err, provider.KindInvalidInput)
}
