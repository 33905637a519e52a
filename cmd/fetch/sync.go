package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"vnmarket/internal/provider"
	"vnmarket/internal/store"
	"vnmarket/internal/updater"
)

type syncCmd struct {
	watchlist string
	db        string
	cron      string
	once      bool
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "download new bars for a watchlist into the local store" }
func (*syncCmd) Usage() string {
	return `fetch sync [-watchlist ticker_group.json] [-db market.db] [-cron <spec>] [-once] [symbol...]

  Updates the stored history of every symbol, re-downloading symbols whose
  past prices were adjusted. Symbols default to the watchlist file. Without
  -once the update repeats on the cron schedule until interrupted.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.watchlist, "watchlist", "", "watchlist JSON file (defaults to the config)")
	f.StringVar(&c.db, "db", "", "SQLite database path (defaults to the config)")
	f.StringVar(&c.cron, "cron", "", "cron spec with seconds (defaults to the config)")
	f.BoolVar(&c.once, "once", false, "run one update and exit")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, cfg, err := openProvider()
	if err != nil {
		return exitStatus(err)
	}
	if c.watchlist == "" {
		c.watchlist = cfg.Updater.Watchlist
	}
	if c.db == "" {
		c.db = cfg.Store.SQLitePath
	}
	if c.cron == "" {
		c.cron = cfg.Updater.Cron
	}

	symbols := f.Args()
	if len(symbols) == 0 {
		if symbols, err = updater.LoadGroups(c.watchlist); err != nil {
			return exitStatus(err)
		}
	}
	start, err := provider.ParseDate(cfg.Updater.StartDate)
	if err != nil {
		return exitStatus(fmt.Errorf("updater.start_date: %w", err))
	}
	iv, err := provider.ParseInterval(cfg.Updater.Interval)
	if err != nil {
		return exitStatus(err)
	}

	if dir := filepath.Dir(c.db); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exitStatus(err)
		}
	}
	s, err := store.Open(c.db)
	if err != nil {
		return exitStatus(err)
	}
	defer s.Close()

	u := &updater.Updater{
		Provider:   p,
		Store:      s,
		Interval:   iv,
		StartDate:  start,
		Threshold:  cfg.Updater.Threshold,
		PriceScale: cfg.Updater.PriceScale,
		Precision:  cfg.Updater.Precision,
	}

	if c.once {
		ctx, cancel := withTimeout(ctx)
		defer cancel()
		results, err := u.UpdateAll(ctx, symbols)
		if err != nil {
			return exitStatus(err)
		}
		log.Printf("sync: %s", updater.Summary(results))
		for _, r := range results {
			if r.Outcome == updater.Failed {
				return subcommands.ExitFailure
			}
		}
		return subcommands.ExitSuccess
	}

	cr, err := u.Schedule(ctx, c.cron, symbols)
	if err != nil {
		return exitStatus(err)
	}
	<-ctx.Done()
	<-cr.Stop().Done()
	log.Printf("sync: stopped")
	return subcommands.ExitSuccess
}
