package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero requests per minute",
			mutate: func(cfg *Config) {
				cfg.RequestsPerMinute = 0
			},
			wantErr: "requests per minute",
		},
		{
			name: "negative base delay",
			mutate: func(cfg *Config) {
				cfg.BaseDelay = -1 * time.Second
			},
			wantErr: "base delay",
		},
		{
			name: "max delay below base",
			mutate: func(cfg *Config) {
				cfg.MaxDelay = cfg.BaseDelay / 2
			},
			wantErr: "max delay",
		},
		{
			name: "zero attempts",
			mutate: func(cfg *Config) {
				cfg.MaxAttempts = 0
			},
			wantErr: "max attempts",
		},
		{
			name: "zero fetch timeout",
			mutate: func(cfg *Config) {
				cfg.FetchTimeout = 0
			},
			wantErr: "fetch timeout",
		},
		{
			name: "zero concurrency",
			mutate: func(cfg *Config) {
				cfg.Concurrency = 0
			},
			wantErr: "concurrency",
		},
		{
			name: "zero minimum price",
			mutate: func(cfg *Config) {
				cfg.PriceBounds.Min = 0
			},
			wantErr: "minimum price",
		},
		{
			name: "inverted price bounds",
			mutate: func(cfg *Config) {
				cfg.PriceBounds = PriceBounds{Min: 100, Max: 10}
			},
			wantErr: "maximum price",
		},
		{
			name: "empty user agent",
			mutate: func(cfg *Config) {
				cfg.UserAgent = ""
			},
			wantErr: "user agent",
		},
		{
			name: "bad output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestSourceTimeoutCoversAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.FetchTimeout = 30 * time.Second
	cfg.MaxDelay = 60 * time.Second

	want := 3*30*time.Second + 3*60*time.Second
	if got := cfg.SourceTimeout(); got != want {
		t.Fatalf("SourceTimeout() = %v, want %v", got, want)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SCRAPER_TEST_INT", "12")
	t.Setenv("SCRAPER_TEST_DUR", "45s")
	t.Setenv("SCRAPER_TEST_STR", "hello")

	if v, ok, err := EnvInt("SCRAPER_TEST_INT"); err != nil || !ok || v != 12 {
		t.Fatalf("EnvInt = (%d, %v, %v), want (12, true, nil)", v, ok, err)
	}
	if v, ok, err := EnvDuration("SCRAPER_TEST_DUR"); err != nil || !ok || v != 45*time.Second {
		t.Fatalf("EnvDuration = (%v, %v, %v), want (45s, true, nil)", v, ok, err)
	}
	if v, ok := EnvString("SCRAPER_TEST_STR"); !ok || v != "hello" {
		t.Fatalf("EnvString = (%q, %v), want (hello, true)", v, ok)
	}

	t.Setenv("SCRAPER_TEST_INT", "nope")
	if _, _, err := EnvInt("SCRAPER_TEST_INT"); err == nil {
		t.Fatalf("expected parse error for non-numeric value")
	}
	if _, ok, err := EnvInt("SCRAPER_TEST_UNSET"); ok || err != nil {
		t.Fatalf("unset variable should report not-ok without error")
	}
}
