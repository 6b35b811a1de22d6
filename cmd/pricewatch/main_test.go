package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/shopspring/decimal"
)

func TestBuildConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricewatch.yaml")
	body := "proxy:\n  start_tier: rendered\nparallelism: 3\nhistory:\n  timezone: UTC\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PRICEWATCH_PARALLEL", "4")
	t.Setenv("PRICEWATCH_ATTEMPTS_PER_TIER", "3")

	opts, fs, err := parseFlags([]string{"-config", path, "-parallel", "5", "-floor", "80.5", "-selection", "MAX"})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := buildConfig(opts, fs)
	if err != nil {
		t.Fatalf("build config: %v", err)
	}

	if cfg.StartTier != models.TierRendered {
		t.Errorf("start tier = %s, want rendered from file", cfg.StartTier)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("timezone = %s, want UTC from file", cfg.Timezone)
	}
	if cfg.AttemptsPerTier != 3 {
		t.Errorf("attempts per tier = %d, want 3 from env", cfg.AttemptsPerTier)
	}
	if cfg.Parallelism != 5 {
		t.Errorf("parallelism = %d, want 5 from flag", cfg.Parallelism)
	}
	if !cfg.PriceFloor.Equal(decimal.RequireFromString("80.5")) {
		t.Errorf("floor = %s, want 80.5", cfg.PriceFloor)
	}
	if cfg.PriceSelection != config.SelectMax {
		t.Errorf("selection = %q, want max", cfg.PriceSelection)
	}
	if cfg.HistoryFile != config.DefaultConfig().HistoryFile {
		t.Errorf("unset history flag should keep default, got %s", cfg.HistoryFile)
	}
}

func TestBuildConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr string
	}{
		{name: "bad floor", args: []string{"-floor", "cheap"}, wantErr: "invalid floor"},
		{name: "bad tier", args: []string{"-start-tier", "gold"}, wantErr: "unknown start tier"},
		{name: "bad env int", env: map[string]string{"PRICEWATCH_PARALLEL": "many"}, wantErr: "PRICEWATCH_PARALLEL"},
		{name: "invalid value", args: []string{"-parallel", "0"}, wantErr: "parallelism"},
		{name: "missing file", args: []string{"-config", "/nonexistent/pricewatch.yaml"}, wantErr: "read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts, fs, err := parseFlags(tt.args)
			if err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			if _, err := buildConfig(opts, fs); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRunExitsWithoutCredentials(t *testing.T) {
	t.Setenv(config.EnvProxyAPIKey, "")
	t.Setenv(config.EnvWebhookURL, "")
	dir := t.TempDir()
	historyFile := filepath.Join(dir, "history.json")

	code := run([]string{"-env-file", filepath.Join(dir, "absent.env"), "-history", historyFile})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if _, err := os.Stat(historyFile); !os.IsNotExist(err) {
		t.Fatalf("history should not be touched, stat err = %v", err)
	}
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	if code := run([]string{"-no-such-flag"}); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}
