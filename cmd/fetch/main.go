package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"vnmarket/internal/config"
	"vnmarket/internal/provider"
)

var (
	configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	timeoutSec = flag.Int("timeout", 0, "overall timeout in seconds, 0 for none")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&infoCmd{}, "data")
	commander.Register(&financialCmd{}, "data")
	commander.Register(&historyCmd{}, "data")
	commander.Register(&batchCmd{}, "data")
	commander.Register(&demoCmd{}, "data")
	commander.Register(&syncCmd{}, "store")

	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(int(commander.Execute(ctx)))
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// openProvider builds the configured provider stack.
func openProvider() (provider.Provider, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, fmt.Errorf("config: %w", err)
	}
	p, err := cfg.BuildProvider(log.Default())
	if err != nil {
		return nil, cfg, err
	}
	return p, cfg, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if *timeoutSec > 0 {
		return context.WithTimeout(ctx, time.Duration(*timeoutSec)*time.Second)
	}
	return context.WithCancel(ctx)
}

// exitStatus logs err and maps invalid input to a usage error.
func exitStatus(err error) subcommands.ExitStatus {
	if err == nil {
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if provider.KindOf(err) == provider.KindInvalidInput {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}
