package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "gpt-4o-mini" || cfg.MaxConcurrentRuns != 3 || cfg.MaxFiles != 60 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RunTimeout() != 10*time.Minute {
		t.Fatalf("unexpected default timeout: %s", cfg.RunTimeout())
	}
}

func TestConfig_SaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	in := DefaultConfig()
	in.APIKey = "secret"
	in.Model = "claude-3-5-sonnet-latest"
	in.RunTimeoutMinutes = 25

	if err := SaveConfig(in, path); err != nil {
		t.Fatal(err)
	}
	out, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.APIKey != "secret" || out.Model != "claude-3-5-sonnet-latest" {
		t.Fatalf("round trip lost values: %+v", out)
	}
	if out.RunTimeout() != 25*time.Minute {
		t.Fatalf("unexpected timeout: %s", out.RunTimeout())
	}
}

func TestLoadConfig_BackfillsZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("api_key: k\nmax_files: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model == "" || cfg.MaxFiles != 60 || cfg.MaxConcurrentRuns != 3 {
		t.Fatalf("zero values must fall back to defaults: %+v", cfg)
	}
}
