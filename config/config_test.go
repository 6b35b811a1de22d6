package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-price-watch/models"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty proxy endpoint",
			mutate: func(cfg *Config) {
				cfg.ProxyEndpoint = ""
			},
			wantErr: "proxy endpoint",
		},
		{
			name: "invalid endpoint format",
			mutate: func(cfg *Config) {
				cfg.ProxyEndpoint = "http://"
			},
			wantErr: "proxy endpoint",
		},
		{
			name: "zero attempts per tier",
			mutate: func(cfg *Config) {
				cfg.AttemptsPerTier = 0
			},
			wantErr: "attempts per tier",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above cap",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "negative floor",
			mutate: func(cfg *Config) {
				cfg.PriceFloor = decimal.NewFromInt(-1)
			},
			wantErr: "price floor",
		},
		{
			name: "unknown selection policy",
			mutate: func(cfg *Config) {
				cfg.PriceSelection = "median"
			},
			wantErr: "price selection",
		},
		{
			name: "bad endpoint pattern",
			mutate: func(cfg *Config) {
				cfg.EndpointPattern = "(["
			},
			wantErr: "endpoint pattern",
		},
		{
			name: "history limit too small",
			mutate: func(cfg *Config) {
				cfg.HistoryLimit = 1
			},
			wantErr: "history limit",
		},
		{
			name: "unknown timezone",
			mutate: func(cfg *Config) {
				cfg.Timezone = "Mars/Olympus"
			},
			wantErr: "timezone",
		},
		{
			name: "no sources",
			mutate: func(cfg *Config) {
				cfg.Sources = nil
			},
			wantErr: "source",
		},
		{
			name: "source without host",
			mutate: func(cfg *Config) {
				cfg.Sources = []Source{{Name: "x", URLs: []string{"/relative"}}}
			},
			wantErr: "invalid url",
		},
		{
			name: "bad report format",
			mutate: func(cfg *Config) {
				cfg.ReportFile = "out/report.csv"
				cfg.ReportFormat = "xml"
			},
			wantErr: "report format",
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

func TestSourcePageURLs(t *testing.T) {
	src := Source{
		Name:  "shop",
		URLs:  []string{"https://shop.test/list?page={page}", "https://mirror.test/list"},
		Pages: 3,
	}
	want := []string{
		"https://shop.test/list?page=1",
		"https://shop.test/list?page=2",
		"https://shop.test/list?page=3",
		"https://mirror.test/list",
	}
	if diff := cmp.Diff(want, src.PageURLs()); diff != "" {
		t.Fatalf("PageURLs mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceFloorOverride(t *testing.T) {
	def := decimal.NewFromInt(50)
	if got := (Source{}).Floor(def); !got.Equal(def) {
		t.Fatalf("floor = %s, want default %s", got, def)
	}
	if got := (Source{MinPrice: "120.5"}).Floor(def); !got.Equal(decimal.RequireFromString("120.5")) {
		t.Fatalf("floor = %s, want 120.5", got)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricewatch.yaml")
	body := `
proxy:
  start_tier: rendered
  attempts_per_tier: 3
  render_timeout: 2m
extract:
  price_floor: "75"
  price_selection: max
history:
  limit: 10
sources:
  - name: newegg
    urls: ["https://www.newegg.ca/p/pl?d=ddr5&page={page}"]
    pages: 2
    required_tokens: ["DDR5"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.StartTier != models.TierRendered {
		t.Fatalf("start tier = %s, want rendered", cfg.StartTier)
	}
	if cfg.AttemptsPerTier != 3 {
		t.Fatalf("attempts per tier = %d, want 3", cfg.AttemptsPerTier)
	}
	if cfg.RenderTimeout != 2*time.Minute {
		t.Fatalf("render timeout = %s, want 2m", cfg.RenderTimeout)
	}
	if !cfg.PriceFloor.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("price floor = %s, want 75", cfg.PriceFloor)
	}
	if cfg.PriceSelection != SelectMax {
		t.Fatalf("price selection = %q, want max", cfg.PriceSelection)
	}
	if cfg.HistoryLimit != 10 {
		t.Fatalf("history limit = %d, want 10", cfg.HistoryLimit)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "newegg" || cfg.Sources[0].Pages != 2 {
		t.Fatalf("unexpected sources: %+v", cfg.Sources)
	}
	if cfg.Timeout != DefaultConfig().Timeout {
		t.Fatalf("unset timeout should keep default, got %s", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("overlaid config should validate, got %v", err)
	}
}

func TestLoadFileRejectsUnknownTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("proxy:\n  start_tier: platinum\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := LoadFile(path, DefaultConfig()); err == nil || !strings.Contains(err.Error(), "start tier") {
		t.Fatalf("expected start tier error, got %v", err)
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv(EnvProxyAPIKey, "")
	t.Setenv(EnvWebhookURL, "")
	missing := filepath.Join(t.TempDir(), "absent.env")

	if _, err := LoadSecrets(true, missing); !errors.Is(err, ErrMissingSecret) || !strings.Contains(err.Error(), EnvProxyAPIKey) {
		t.Fatalf("expected missing %s, got %v", EnvProxyAPIKey, err)
	}

	t.Setenv(EnvProxyAPIKey, "key-123")
	if _, err := LoadSecrets(true, missing); !errors.Is(err, ErrMissingSecret) || !strings.Contains(err.Error(), EnvWebhookURL) {
		t.Fatalf("expected missing %s, got %v", EnvWebhookURL, err)
	}

	s, err := LoadSecrets(false, missing)
	if err != nil {
		t.Fatalf("dry run secrets: %v", err)
	}
	if s.ProxyAPIKey != "key-123" || s.WebhookURL != "" {
		t.Fatalf("unexpected secrets: %+v", s)
	}
}

func TestLoadSecretsFromDotEnv(t *testing.T) {
	t.Setenv(EnvProxyAPIKey, "")
	t.Setenv(EnvWebhookURL, "")
	os.Unsetenv(EnvProxyAPIKey)
	os.Unsetenv(EnvWebhookURL)

	path := filepath.Join(t.TempDir(), ".env")
	body := EnvProxyAPIKey + "=from-file\n" + EnvWebhookURL + "=https://discord.test/hook\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	s, err := LoadSecrets(true, path)
	if err != nil {
		t.Fatalf("load secrets: %v", err)
	}
	if s.ProxyAPIKey != "from-file" || s.WebhookURL != "https://discord.test/hook" {
		t.Fatalf("unexpected secrets: %+v", s)
	}
}
