// Package resample aggregates OHLCV bars into wider buckets.
//
// Each bucket takes the first open, the highest high, the lowest low, the
// last close and the summed volume of its bars. Buckets without bars are not
// emitted. Minute buckets are aligned to the UTC clock. Daily-based buckets
// follow the exchange calendar date (ICT): weekly buckets end on Sunday and
// monthly buckets on the last day of the month, and each is labelled with
// that end date at midnight UTC.
package resample

import (
	"time"

	"vnmarket/internal/provider"
)

// Resample aggregates chronologically sorted bars to iv. Intervals the
// providers serve natively (1m, 1H, 1D) are returned unchanged.
func Resample(bars []provider.Bar, iv provider.Interval) []provider.Bar {
	switch iv {
	case provider.Minute5:
		return Aggregate(bars, floor(5*time.Minute))
	case provider.Minute15:
		return Aggregate(bars, floor(15*time.Minute))
	case provider.Minute30:
		return Aggregate(bars, floor(30*time.Minute))
	case provider.Week1:
		return Aggregate(bars, WeekEnding)
	case provider.Month1:
		return Aggregate(bars, MonthEnding)
	}
	return bars
}

// Aggregate groups consecutive bars that share a bucket label.
func Aggregate(bars []provider.Bar, label func(time.Time) time.Time) []provider.Bar {
	if len(bars) == 0 {
		return bars
	}
	out := make([]provider.Bar, 0, len(bars)/2+1)
	cur := bars[0]
	cur.Time = label(bars[0].Time)
	for _, b := range bars[1:] {
		key := label(b.Time)
		if !key.Equal(cur.Time) {
			out = append(out, cur)
			cur = b
			cur.Time = key
			continue
		}
		cur.High = max(cur.High, b.High)
		cur.Low = min(cur.Low, b.Low)
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return append(out, cur)
}

func floor(d time.Duration) func(time.Time) time.Time {
	return func(t time.Time) time.Time { return t.UTC().Truncate(d) }
}

// WeekEnding labels t with the Sunday closing its Monday to Sunday week.
func WeekEnding(t time.Time) time.Time {
	d := calendarDate(t)
	offset := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}

// MonthEnding labels t with the last day of its month.
func MonthEnding(t time.Time) time.Time {
	d := calendarDate(t)
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func calendarDate(t time.Time) time.Time {
	l := t.In(provider.ICT)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}
