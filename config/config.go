package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// PriceBounds is the plausible price range for a normalized listing.
type PriceBounds struct {
	Min float64
	Max float64
}

// Config holds orchestrator configuration.
type Config struct {
	RequestsPerMinute int           // per-source request budget
	BaseDelay         time.Duration // adaptive delay floor
	MaxDelay          time.Duration // adaptive delay cap
	MaxAttempts       int           // fetch attempts per source per run
	FetchTimeout      time.Duration // hard timeout for one fetch
	Concurrency       int           // simultaneous source scrapes
	PriceBounds       PriceBounds
	UserAgent         string
	OutputFile        string
	OutputFormat      string // csv, json, or dual
	MetricsAddr       string
	Verbose           bool
}

// DefaultConfig returns conservative defaults suitable for adversarial targets.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerMinute: 30,
		BaseDelay:         1 * time.Second,
		MaxDelay:          60 * time.Second,
		MaxAttempts:       3,
		FetchTimeout:      30 * time.Second,
		Concurrency:       4,
		PriceBounds:       PriceBounds{Min: 1, Max: 10000},
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		OutputFile:        "output/listings.csv",
		OutputFormat:      "csv",
		MetricsAddr:       "",
		Verbose:           false,
	}
}

// SourceTimeout bounds one source's full scrape: every attempt's fetch plus the
// worst-case adaptive backoff between attempts.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.MaxAttempts)*c.FetchTimeout + time.Duration(c.MaxAttempts)*c.MaxDelay
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive")
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive")
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("max delay (%s) cannot be below base delay (%s)", c.MaxDelay, c.BaseDelay)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.PriceBounds.Min <= 0 {
		return fmt.Errorf("minimum price must be positive")
	}
	if c.PriceBounds.Max <= c.PriceBounds.Min {
		return fmt.Errorf("maximum price (%.2f) must exceed minimum price (%.2f)", c.PriceBounds.Max, c.PriceBounds.Min)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}

// EnvString reads an environment variable, reporting whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration reads a duration environment variable (e.g. "45s").
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}
