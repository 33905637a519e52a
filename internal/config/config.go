package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vnmarket/internal/provider"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	// AllowOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS headers.
	AllowOrigin string `yaml:"allow_origin"`
}

// Source configures one upstream provider.
type Source struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	RandomAgent bool   `yaml:"random_agent"`
	// MaxRequestsPerMinute caps outbound requests with a sliding window,
	// or a token bucket when Burst is set. Zero disables limiting.
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
	Burst                int `yaml:"burst"`
	MaxRetries           int `yaml:"max_retries"`
	RetryBaseDelayMs     int `yaml:"retry_base_delay_ms"`
	RetryMaxDelaySec     int `yaml:"retry_max_delay_sec"`
	// MaxSymbolsPerRequest applies to VCI chart requests.
	MaxSymbolsPerRequest int `yaml:"max_symbols_per_request"`
	// BatchConcurrency applies to TCBS batch fan-out.
	BatchConcurrency int `yaml:"batch_concurrency"`
}

type Cache struct {
	TTLSeconds int `yaml:"ttl_sec"`
	MaxItems   int `yaml:"max_items"`
}

type Store struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type Updater struct {
	Watchlist string  `yaml:"watchlist"`
	StartDate string  `yaml:"start_date"`
	Interval  string  `yaml:"interval"`
	Cron      string  `yaml:"cron"`
	Threshold float64 `yaml:"threshold"`
	// PriceScale divides stock prices before storing; index levels are
	// stored as quoted.
	PriceScale float64 `yaml:"price_scale"`
	Precision  int     `yaml:"precision"`
}

type Config struct {
	Server Server `yaml:"server"`
	// Providers lists provider names in failover order.
	Providers []string `yaml:"providers"`
	VCI       Source   `yaml:"vci"`
	TCBS      Source   `yaml:"tcbs"`
	Cache     Cache    `yaml:"cache"`
	Store     Store    `yaml:"store"`
	Updater   Updater  `yaml:"updater"`
}

func Default() Config {
	return Config{
		Server:    Server{Port: "8080", RequestTimeoutSec: 30, AllowOrigin: "*"},
		Providers: []string{"vci", "tcbs"},
		VCI: Source{
			Enabled:              true,
			BaseURL:              "https://trading.vietcap.com.vn",
			TimeoutSec:           30,
			RandomAgent:          true,
			MaxRequestsPerMinute: 10,
			MaxRetries:           5,
			RetryBaseDelayMs:     1000,
			RetryMaxDelaySec:     60,
			MaxSymbolsPerRequest: 50,
		},
		TCBS: Source{
			Enabled:              true,
			BaseURL:              "https://apipubaws.tcbs.com.vn",
			TimeoutSec:           30,
			RandomAgent:          true,
			MaxRequestsPerMinute: 10,
			MaxRetries:           5,
			RetryBaseDelayMs:     1000,
			RetryMaxDelaySec:     60,
			BatchConcurrency:     2,
		},
		Cache: Cache{TTLSeconds: 60, MaxItems: 10000},
		Store: Store{SQLitePath: "data/market.db"},
		Updater: Updater{
			Watchlist:  "ticker_group.json",
			StartDate:  "2015-01-05",
			Interval:   "1D",
			Cron:       "0 30 15 * * 1-5",
			Threshold:  1.02,
			PriceScale: 1000,
			Precision:  6,
		},
	}
}

// Load reads YAML config from path on top of Default. If path is empty,
// config.yaml is used when present. Variables from envFiles (default .env)
// are loaded first without overriding the environment; environment
// variables then override select fields. Missing files are skipped.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if len(b) > 0 {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Validate checks the fields every command depends on.
func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port %q is not a number", c.Server.Port)
	}
	if len(c.Providers) == 0 {
		return errors.New("providers must name at least one provider")
	}
	for _, name := range c.Providers {
		src, ok := c.source(name)
		if !ok {
			return fmt.Errorf("providers: unknown provider %q", name)
		}
		if !src.Enabled {
			continue
		}
		if src.MaxRequestsPerMinute < 0 {
			return fmt.Errorf("%s.max_requests_per_minute must not be negative", name)
		}
		if src.MaxRetries < 1 {
			return fmt.Errorf("%s.max_retries must be at least 1", name)
		}
	}
	if len(c.enabled()) == 0 {
		return errors.New("no enabled provider in providers")
	}
	if c.Updater.StartDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Updater.StartDate); err != nil {
			return fmt.Errorf("updater.start_date: %w", err)
		}
	}
	if _, err := provider.ParseInterval(c.Updater.Interval); err != nil {
		return fmt.Errorf("updater.interval: %w", err)
	}
	if c.Updater.Threshold != 0 && c.Updater.Threshold <= 1 {
		return fmt.Errorf("updater.threshold must be above 1, got %v", c.Updater.Threshold)
	}
	if c.Updater.PriceScale < 0 {
		return fmt.Errorf("updater.price_scale must not be negative, got %v", c.Updater.PriceScale)
	}
	if c.Updater.Precision < 0 {
		return fmt.Errorf("updater.precision must not be negative, got %d", c.Updater.Precision)
	}
	return nil
}

func (c Config) source(name string) (Source, bool) {
	switch strings.ToLower(name) {
	case "vci":
		return c.VCI, true
	case "tcbs":
		return c.TCBS, true
	}
	return Source{}, false
}

// enabled returns the enabled provider names in failover order.
func (c Config) enabled() []string {
	var out []string
	for _, name := range c.Providers {
		name = strings.ToLower(name)
		if src, ok := c.source(name); ok && src.Enabled && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.RequestTimeoutSec, "REQUEST_TIMEOUT_SEC", 1)
	setString(&cfg.Server.AllowOrigin, "ALLOW_ORIGIN")
	if v := os.Getenv("PROVIDERS"); v != "" {
		cfg.Providers = splitCSV(v)
	}
	applySourceEnv(&cfg.VCI, "VCI")
	applySourceEnv(&cfg.TCBS, "TCBS")
	setInt(&cfg.VCI.MaxSymbolsPerRequest, "VCI_MAX_SYMBOLS_PER_REQUEST", 1)
	setInt(&cfg.TCBS.BatchConcurrency, "TCBS_BATCH_CONCURRENCY", 1)

	setInt(&cfg.Cache.TTLSeconds, "CACHE_TTL_SEC", 0)
	setInt(&cfg.Cache.MaxItems, "CACHE_MAX_ITEMS", 0)
	setString(&cfg.Store.SQLitePath, "SQLITE_PATH")
	setString(&cfg.Updater.Watchlist, "WATCHLIST_FILE")
	setString(&cfg.Updater.StartDate, "UPDATE_START_DATE")
	setString(&cfg.Updater.Interval, "UPDATE_INTERVAL")
	setString(&cfg.Updater.Cron, "UPDATE_CRON")
	setInt(&cfg.Updater.Precision, "UPDATE_PRECISION", 0)
}

func applySourceEnv(s *Source, prefix string) {
	setBool(&s.Enabled, prefix+"_ENABLED")
	setString(&s.BaseURL, prefix+"_BASE_URL")
	setInt(&s.TimeoutSec, prefix+"_TIMEOUT_SEC", 1)
	setBool(&s.RandomAgent, prefix+"_RANDOM_AGENT")
	setInt(&s.MaxRequestsPerMinute, prefix+"_MAX_RPM", 0)
	setInt(&s.Burst, prefix+"_BURST", 0)
	setInt(&s.MaxRetries, prefix+"_MAX_RETRIES", 1)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt applies key when it parses to an integer no smaller than least.
func setInt(dst *int, key string, least int) {
	if v := os.Getenv(key); v != "" {
		if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x >= least {
			*dst = x
		}
	}
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
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
