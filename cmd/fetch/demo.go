package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"vnmarket/internal/provider"
	"vnmarket/internal/provider/ratelimit"
)

type demoCmd struct {
	symbol  string
	symbols string
	days    int
	spacing time.Duration
}

func (*demoCmd) Name() string     { return "demo" }
func (*demoCmd) Synopsis() string { return "run company, financial, history and batch calls in sequence" }
func (*demoCmd) Usage() string {
	return `fetch demo [-symbol VCB] [-symbols VCB,ACB,TCB] [-days 30] [-spacing 2s]

  Exercises every operation once, spacing calls to stay under provider limits.
`
}

func (c *demoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "VCB", "ticker for the single-symbol calls")
	f.StringVar(&c.symbols, "symbols", "VCB,ACB,TCB", "comma-separated tickers for the batch call")
	f.IntVar(&c.days, "days", 30, "history window in days")
	f.DurationVar(&c.spacing, "spacing", 2*time.Second, "minimum time between calls")
}

func (c *demoCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, _, err := openProvider()
	if err != nil {
		return exitStatus(err)
	}
	p = &ratelimit.MinInterval{P: p, Interval: c.spacing}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	end := provider.Day(time.Now())
	q := provider.HistoryQuery{Start: end.AddDate(0, 0, -c.days), End: end, Interval: provider.Day1}
	failures := 0

	log.Printf("demo: company info for %s", c.symbol)
	if info, err := p.CompanyInfo(ctx, c.symbol); err != nil {
		log.Printf("demo: company info: %v", err)
		failures++
	} else {
		printCompany(os.Stdout, info)
	}

	log.Printf("demo: quarterly financials for %s", c.symbol)
	if fin, err := p.FinancialInfo(ctx, c.symbol, provider.Quarter); err != nil {
		log.Printf("demo: financials: %v", err)
		failures++
	} else {
		printFinancial(os.Stdout, fin)
	}

	log.Printf("demo: %d days of history for %s", c.days, c.symbol)
	if bars, err := p.History(ctx, c.symbol, q); err != nil {
		log.Printf("demo: history: %v", err)
		failures++
	} else {
		printBars(os.Stdout, strings.ToUpper(c.symbol), bars, 5)
	}

	log.Printf("demo: batch history for %s", c.symbols)
	if res, err := p.BatchHistory(ctx, splitCSV(c.symbols), q); err != nil {
		log.Printf("demo: batch history: %v", err)
		failures++
	} else {
		printBatch(os.Stdout, res)
	}

	if failures > 0 {
		log.Printf("demo: %d of 4 calls failed", failures)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
