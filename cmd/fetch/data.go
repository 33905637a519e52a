package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"vnmarket/internal/provider"
)

type infoCmd struct {
	json bool
}

func (*infoCmd) Name() string     { return "info" }
func (*infoCmd) Synopsis() string { return "display the company snapshot of a ticker" }
func (*infoCmd) Usage() string {
	return `fetch info [-json] <symbol>

  Displays overview, market capitalization, shareholders and officers.
`
}

func (c *infoCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print the raw result as JSON")
}

func (c *infoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	p, _, err := openProvider()
	if err != nil {
		return exitStatus(err)
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	info, err := p.CompanyInfo(ctx, f.Arg(0))
	if err != nil {
		return exitStatus(err)
	}
	if c.json {
		return exitStatus(printJSON(os.Stdout, info))
	}
	printCompany(os.Stdout, info)
	return subcommands.ExitSuccess
}

type financialCmd struct {
	period string
	json   bool
}

func (*financialCmd) Name() string     { return "financial" }
func (*financialCmd) Synopsis() string { return "display the financial statements of a ticker" }
func (*financialCmd) Usage() string {
	return `fetch financial [-period quarter|year] [-json] <symbol>

  Displays balance sheet, income statement, cash flow and ratios.
`
}

func (c *financialCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "quarter", "reporting period: quarter or year")
	f.BoolVar(&c.json, "json", false, "print the raw result as JSON")
}

func (c *financialCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	period, err := provider.ParsePeriod(c.period)
	if err != nil {
		return exitStatus(err)
	}
	p, _, err := openProvider()
	if err != nil {
		return exitStatus(err)
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	fin, err := p.FinancialInfo(ctx, f.Arg(0), period)
	if err != nil {
		return exitStatus(err)
	}
	if c.json {
		return exitStatus(printJSON(os.Stdout, fin))
	}
	printFinancial(os.Stdout, fin)
	return subcommands.ExitSuccess
}

// queryFlags are shared by the history commands.
type queryFlags struct {
	start     string
	end       string
	interval  string
	countBack int
	json      bool
}

func (q *queryFlags) set(f *flag.FlagSet) {
	f.StringVar(&q.start, "start", "", "first date, YYYY-MM-DD (required)")
	f.StringVar(&q.end, "end", "", "last date, YYYY-MM-DD (defaults to today)")
	f.StringVar(&q.interval, "interval", "1D", "bar interval: 1m 5m 15m 30m 1H 1D 1W 1M")
	f.IntVar(&q.countBack, "count", 0, "lookback window in bars (0 for the default)")
	f.BoolVar(&q.json, "json", false, "print the raw result as JSON")
}

func (q *queryFlags) query() (provider.HistoryQuery, error) {
	var hq provider.HistoryQuery
	if q.start == "" {
		return hq, provider.Errorf(provider.KindInvalidInput, "", "history", "-start is required")
	}
	start, err := provider.ParseDate(q.start)
	if err != nil {
		return hq, err
	}
	hq.Start = start
	if q.end != "" {
		if hq.End, err = provider.ParseDate(q.end); err != nil {
			return hq, err
		}
	}
	iv, err := provider.ParseInterval(q.interval)
	if err != nil {
		return hq, err
	}
	hq.Interval = iv
	hq.CountBack = q.countBack
	return hq, nil
}

type historyCmd struct {
	queryFlags
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display price bars of a ticker" }
func (*historyCmd) Usage() string {
	return `fetch history -start <date> [-end <date>] [-interval <iv>] [-count <n>] [-json] <symbol>

  Displays OHLCV bars between two dates.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	q, err := c.query()
	if err != nil {
		return exitStatus(err)
	}
	p, _, err := openProvider()
	if err != nil {
		return exitStatus(err)
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	bars, err := p.History(ctx, f.Arg(0), q)
	if err != nil {
		return exitStatus(err)
	}
	if c.json {
		return exitStatus(printJSON(os.Stdout, bars))
	}
	printBars(os.Stdout, strings.ToUpper(f.Arg(0)), bars, 0)
	return subcommands.ExitSuccess
}

type batchCmd struct {
	queryFlags
}

func (*batchCmd) Name() string     { return "batch" }
func (*batchCmd) Synopsis() string { return "display price bars of several tickers" }
func (*batchCmd) Usage() string {
	return `fetch batch -start <date> [-end <date>] [-interval <iv>] [-count <n>] [-json] <symbol>...

  Fetches the bars of all symbols at once and reports failures per symbol.
`
}

func (c *batchCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *batchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	q, err := c.query()
	if err != nil {
		return exitStatus(err)
	}
	p, _, err := openProvider()
	if err != nil {
		return exitStatus(err)
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := p.BatchHistory(ctx, f.Args(), q)
	if err != nil {
		return exitStatus(err)
	}
	if c.json {
		return exitStatus(printJSON(os.Stdout, batchJSON(res)))
	}
	printBatch(os.Stdout, res)
	if failed := res.Failed(); len(failed) > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d symbols failed: %s\n", len(failed), len(res), strings.Join(failed, ", "))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
