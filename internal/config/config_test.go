package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Print.Heading != defaultHeading {
		t.Errorf("heading = %q, want %q", cfg.Print.Heading, defaultHeading)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perms = %o, want 600", perm)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "source:\n  base_url: https://cms.example.org\nsort_mode: sideways\nprint:\n  close_delay_ms: -4\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.BaseURL != "https://cms.example.org" {
		t.Errorf("base_url = %q", cfg.Source.BaseURL)
	}
	if cfg.SortMode != "legacy" {
		t.Errorf("sort_mode = %q, want legacy", cfg.SortMode)
	}
	if cfg.Print.CloseDelayMs != defaultCloseDelayMs {
		t.Errorf("close_delay_ms = %d, want %d", cfg.Print.CloseDelayMs, defaultCloseDelayMs)
	}
	if cfg.RefreshCron != "" {
		t.Errorf("refresh = %q, want empty (disabled)", cfg.RefreshCron)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CMSCAL_LISTEN":              ":9090",
		"CMSCAL_SORT_MODE":           "symmetric",
		"CMSCAL_PRINT_HEADLESS":      "true",
		"CMSCAL_BASIC_AUTH_USER":     "admin",
		"CMSCAL_BASIC_AUTH_PASSWORD": "secret",
	}
	cfg := DefaultConfig()
	ApplyEnv(cfg, func(k string) string { return env[k] })

	if cfg.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.SortMode != "symmetric" {
		t.Errorf("sort_mode = %q", cfg.SortMode)
	}
	if !cfg.Print.Headless {
		t.Error("headless not enabled")
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "admin" {
		t.Errorf("basic auth = %+v", cfg.BasicAuth)
	}
}

func TestValidateRequiresBaseURL(t *testing.T) {
	if err := DefaultConfig().Validate(); err == nil {
		t.Fatal("expected error for missing base_url")
	}
}
