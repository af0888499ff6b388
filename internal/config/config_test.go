package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAppliesDefaultsAndHydratesMarket(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "market.yaml"), `
default: synthetic
providers:
  synthetic:
    type: synthetic
    seed: 7
    timeout: ${MKT_TIMEOUT}
`)
	t.Setenv("MKT_TIMEOUT", "3s")

	writeFile(t, filepath.Join(dir, "pfolio.yaml"), `
Name: pfolio-api
Mode: test
Market:
  File: market.yaml
`)

	cfg, err := Load(filepath.Join(dir, "pfolio.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "test" {
		t.Fatalf("Env default not applied, got %q", cfg.Env)
	}
	if cfg.ModelsPath != "models" {
		t.Fatalf("ModelsPath default not applied, got %q", cfg.ModelsPath)
	}
	if cfg.Benchmark != "SPY" {
		t.Fatalf("Benchmark default not applied, got %q", cfg.Benchmark)
	}
	if cfg.TTL.Short != 10 || cfg.TTL.Medium != 60 || cfg.TTL.Long != 300 {
		t.Fatalf("TTL defaults not applied, got %+v", cfg.TTL)
	}
	if !cfg.Market.Enabled() {
		t.Fatal("market section not hydrated")
	}
	provider := cfg.Market.Value.Providers["synthetic"]
	if provider == nil || provider.Timeout != 3*time.Second {
		t.Fatalf("market timeout env not expanded, got %+v", provider)
	}
	if got, want := cfg.ModelsDir(), filepath.Join(dir, "models"); got != want {
		t.Fatalf("ModelsDir = %q, want %q", got, want)
	}
}

func TestValidateRejectsUnknownEnv(t *testing.T) {
	cfg := Config{Env: "staging", ModelsPath: "models", TTL: CacheTTL{Short: 10, Medium: 60, Long: 300}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown env")
	}
}

func TestValidateRequiresPositiveTTL(t *testing.T) {
	cfg := Config{Env: "dev", ModelsPath: "models", TTL: CacheTTL{Short: 0, Medium: 60, Long: 300}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestValidateRequiresModelsPath(t *testing.T) {
	cfg := Config{Env: "dev", ModelsPath: "  ", TTL: CacheTTL{Short: 10, Medium: 60, Long: 300}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty models path")
	}
}
