package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the rating service.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir        string
	DBDriver       string // "sqlite" or "postgres"
	DBDSN          string // postgres connection string
	HTTPPort       int
	LogLevel       string
	LogFormat      string        // log output format: "text" or "json"
	PrefixCacheTTL time.Duration // how long a country's prefix list is served before reloading
	BatchWorkers   int           // concurrent workers per rate-batch request
	MaxRewriteHops int           // PBX outbound rewrites fed back into outbound processing
	RateLimit      float64       // requests per second per client IP on the rating endpoints
}

// defaults
const (
	defaultDataDir        = "./data"
	defaultDBDriver       = "sqlite"
	defaultHTTPPort       = 8080
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultPrefixCacheTTL = 30 * time.Minute
	defaultBatchWorkers   = 8
	defaultMaxRewriteHops = 2
	defaultRateLimit      = 50
)

// envPrefix is the prefix for all environment variables.
const envPrefix = "TELRATE_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("telrate", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the sqlite database")
	fs.StringVar(&cfg.DBDriver, "db-driver", defaultDBDriver, "reference database driver (sqlite, postgres)")
	fs.StringVar(&cfg.DBDSN, "db-dsn", "", "postgres connection string (required with db-driver=postgres)")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.DurationVar(&cfg.PrefixCacheTTL, "prefix-cache-ttl", defaultPrefixCacheTTL, "time a country's operator prefixes are cached")
	fs.IntVar(&cfg.BatchWorkers, "batch-workers", defaultBatchWorkers, "concurrent workers per batch")
	fs.IntVar(&cfg.MaxRewriteHops, "max-rewrite-hops", defaultMaxRewriteHops, "maximum PBX outbound rewrites per call")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", defaultRateLimit, "requests per second per client IP on rating endpoints (0 disables)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"data-dir":         envPrefix + "DATA_DIR",
		"db-driver":        envPrefix + "DB_DRIVER",
		"db-dsn":           envPrefix + "DB_DSN",
		"http-port":        envPrefix + "HTTP_PORT",
		"log-level":        envPrefix + "LOG_LEVEL",
		"log-format":       envPrefix + "LOG_FORMAT",
		"prefix-cache-ttl": envPrefix + "PREFIX_CACHE_TTL",
		"batch-workers":    envPrefix + "BATCH_WORKERS",
		"max-rewrite-hops": envPrefix + "MAX_REWRITE_HOPS",
		"rate-limit":       envPrefix + "RATE_LIMIT",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "db-driver":
			cfg.DBDriver = val
		case "db-dsn":
			cfg.DBDSN = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "prefix-cache-ttl":
			if v, err := time.ParseDuration(val); err == nil {
				cfg.PrefixCacheTTL = v
			}
		case "batch-workers":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.BatchWorkers = v
			}
		case "max-rewrite-hops":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxRewriteHops = v
			}
		case "rate-limit":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				cfg.RateLimit = v
			}
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	c.DBDriver = strings.ToLower(c.DBDriver)
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("db-dsn is required when db-driver is postgres")
		}
	default:
		return fmt.Errorf("db-driver must be one of sqlite, postgres; got %q", c.DBDriver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if c.PrefixCacheTTL < time.Second {
		return fmt.Errorf("prefix-cache-ttl must be at least 1s, got %s", c.PrefixCacheTTL)
	}
	if c.BatchWorkers < 1 || c.BatchWorkers > 256 {
		return fmt.Errorf("batch-workers must be between 1 and 256, got %d", c.BatchWorkers)
	}
	if c.MaxRewriteHops < 1 || c.MaxRewriteHops > 10 {
		return fmt.Errorf("max-rewrite-hops must be between 1 and 10, got %d", c.MaxRewriteHops)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must not be negative, got %g", c.RateLimit)
	}

	return nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
