package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"dashboard/internal/source"

	flag "github.com/spf13/pflag"
)

const (
	defaultListenAddr    = "0.0.0.0:8080"
	defaultSourcePath    = "census.csv"
	defaultSessionTTL    = 30 * time.Minute
	defaultSweepInterval = time.Minute
	defaultRateLimit     = 20
	defaultRateBurst     = 40
)

// Config is the server configuration.
type Config struct {
	ListenAddr string
	Source     source.Config

	SessionTTL    time.Duration
	SweepInterval time.Duration

	// RateLimit is the per-client input changes per second; zero disables it.
	RateLimit float64
	RateBurst int

	Verbose bool
}

func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if err := cfg.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if cfg.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		return errors.New("rate burst must be positive when rate limiting")
	}
	return nil
}

// Parse reads flags from args, then applies environment overrides from
// getenv, then validates.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)

	verboseFlag := fs.Bool("verbose", false, "enable verbose (debug) logging (or set DASHBOARD_VERBOSE=true)")
	listenAddrFlag := fs.String("listen-addr", defaultListenAddr, "HTTP listen address (or set DASHBOARD_LISTEN_ADDR env var)")

	// Dataset source
	sourceFlag := fs.String("source", string(source.KindCSV), "dataset source: csv, xlsx, arrow or postgres (or set DASHBOARD_SOURCE env var)")
	sourcePathFlag := fs.String("source-path", defaultSourcePath, "dataset file for file sources (or set DASHBOARD_SOURCE_PATH env var)")
	postgresDSNFlag := fs.String("postgres-dsn", "", "Postgres connection string (or set DASHBOARD_POSTGRES_DSN env var)")
	postgresTableFlag := fs.String("postgres-table", "census", "Postgres table holding the census extract (or set DASHBOARD_POSTGRES_TABLE env var)")

	// Sessions
	sessionTTLFlag := fs.Duration("session-ttl", defaultSessionTTL, "idle time before a dashboard session expires (or set DASHBOARD_SESSION_TTL env var)")
	sweepIntervalFlag := fs.Duration("sweep-interval", defaultSweepInterval, "how often idle sessions are swept")
	rateLimitFlag := fs.Float64("rate-limit", defaultRateLimit, "input changes per second per client, 0 disables (or set DASHBOARD_RATE_LIMIT env var)")
	rateBurstFlag := fs.Int("rate-burst", defaultRateBurst, "burst size for the input change rate limit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if v := getenv("DASHBOARD_LISTEN_ADDR"); v != "" {
		*listenAddrFlag = v
	}
	if v := getenv("DASHBOARD_SOURCE"); v != "" {
		*sourceFlag = v
	}
	if v := getenv("DASHBOARD_SOURCE_PATH"); v != "" {
		*sourcePathFlag = v
	}
	if v := getenv("DASHBOARD_POSTGRES_DSN"); v != "" {
		*postgresDSNFlag = v
	}
	if v := getenv("DASHBOARD_POSTGRES_TABLE"); v != "" {
		*postgresTableFlag = v
	}
	if v := getenv("DASHBOARD_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DASHBOARD_SESSION_TTL: %w", err)
		}
		*sessionTTLFlag = d
	}
	if v := getenv("DASHBOARD_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DASHBOARD_RATE_LIMIT: %w", err)
		}
		*rateLimitFlag = r
	}
	if getenv("DASHBOARD_VERBOSE") == "true" {
		*verboseFlag = true
	}

	cfg := &Config{
		ListenAddr: *listenAddrFlag,
		Source: source.Config{
			Kind:          source.Kind(*sourceFlag),
			Path:          *sourcePathFlag,
			PostgresDSN:   *postgresDSNFlag,
			PostgresTable: *postgresTableFlag,
		},
		SessionTTL:    *sessionTTLFlag,
		SweepInterval: *sweepIntervalFlag,
		RateLimit:     *rateLimitFlag,
		RateBurst:     *rateBurstFlag,
		Verbose:       *verboseFlag,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
