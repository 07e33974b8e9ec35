package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lukeed/hrana/protocol"
)

const testConfig = `default: local
profiles:
  local:
    url: http://127.0.0.1:8080
  prod:
    url: https://db.example.turso.io
    token: secret-token
    mode: bigint
    timeout: 15s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Default != "local" {
		t.Errorf("expected default profile local, got %q", cfg.Default)
	}
	if len(cfg.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(cfg.Profiles))
	}
	if cfg.Profiles["prod"].Mode != "bigint" {
		t.Errorf("expected prod mode bigint, got %q", cfg.Profiles["prod"].Mode)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestConfigProfile(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	p, err := cfg.Profile("")
	if err != nil {
		t.Fatalf("default profile: %v", err)
	}
	if p.URL != "http://127.0.0.1:8080" {
		t.Errorf("expected local URL, got %q", p.URL)
	}

	p, err = cfg.Profile("prod")
	if err != nil {
		t.Fatalf("prod profile: %v", err)
	}
	if p.Token != "secret-token" {
		t.Errorf("expected prod token, got %q", p.Token)
	}

	if _, err := cfg.Profile("staging"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestResolveSettings_ProfileFillsGaps(t *testing.T) {
	t.Setenv("HRANA_CONFIG", writeConfig(t, testConfig))

	settings, err := resolveSettings("", "", "", 0, "prod")
	if err != nil {
		t.Fatalf("resolveSettings: %v", err)
	}
	if settings.url != "https://db.example.turso.io" {
		t.Errorf("expected profile URL, got %q", settings.url)
	}
	if settings.token != "secret-token" {
		t.Errorf("expected profile token, got %q", settings.token)
	}
	if settings.mode != protocol.ModeBigInt {
		t.Errorf("expected bigint mode, got %v", settings.mode)
	}
	if settings.timeout != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", settings.timeout)
	}
}

func TestResolveSettings_FlagsWin(t *testing.T) {
	t.Setenv("HRANA_CONFIG", writeConfig(t, testConfig))

	settings, err := resolveSettings("http://flag.example", "flag-token", "number", 5*time.Second, "prod")
	if err != nil {
		t.Fatalf("resolveSettings: %v", err)
	}
	if settings.url != "http://flag.example" {
		t.Errorf("expected flag URL to win, got %q", settings.url)
	}
	if settings.token != "flag-token" {
		t.Errorf("expected flag token to win, got %q", settings.token)
	}
	if settings.mode != protocol.ModeNumber {
		t.Errorf("expected number mode, got %v", settings.mode)
	}
	if settings.timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", settings.timeout)
	}
}

func TestResolveSettings_NoURL(t *testing.T) {
	t.Setenv("HRANA_CONFIG", filepath.Join(t.TempDir(), "missing.yml"))

	_, err := resolveSettings("", "", "", 0, "")
	if !errors.Is(err, errNoURL) {
		t.Errorf("expected errNoURL, got %v", err)
	}
}

func TestResolveSettings_UnknownProfile(t *testing.T) {
	t.Setenv("HRANA_CONFIG", writeConfig(t, testConfig))

	if _, err := resolveSettings("", "", "", 0, "staging"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestResolveSettings_BadMode(t *testing.T) {
	if _, err := resolveSettings("http://127.0.0.1:8080", "", "decimal", 0, ""); err == nil {
		t.Error("expected error for unknown integer mode")
	}
}

func TestResolveSettings_BadProfileTimeout(t *testing.T) {
	t.Setenv("HRANA_CONFIG", writeConfig(t, "profiles:\n  bad:\n    url: http://x\n    timeout: soon\n"))

	if _, err := resolveSettings("", "", "", 0, "bad"); err == nil {
		t.Error("expected error for unparsable profile timeout")
	}
}
