package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calidris/movetrack/internal/config"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// inTempDir moves the test into an empty working directory so any
// config.json in the repo cannot leak into resolution.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// ─── Load ─────────────────────────────────────────────────────────────────────

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != filepath.Join("data", "movebank") {
		t.Errorf("data dir: got %q", cfg.DataDir)
	}
	if cfg.Format != "table" {
		t.Errorf("format: got %q", cfg.Format)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("timeout: got %v", cfg.Timeout)
	}
	if cfg.Rate != 2.0 || cfg.ChunkSize != 10000 || cfg.Seed != 42 || cfg.Clusters != 5 || cfg.Bins != 30 {
		t.Errorf("numeric defaults wrong: %+v", cfg)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("no config.json was present, got path %q", cfg.ConfigPath)
	}
	if cfg.DBPath == "" {
		t.Error("db path should fall back to the home directory")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := inTempDir(t)
	writeConfig(t, dir, `{
  "data_dir": "tracks",
  "default_format": "json",
  "timeout": "90s",
  "rate": 5,
  "clusters": 3
}`)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "tracks" {
		t.Errorf("data dir: got %q", cfg.DataDir)
	}
	if cfg.Format != "json" {
		t.Errorf("format: got %q", cfg.Format)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("timeout: got %v", cfg.Timeout)
	}
	if cfg.Rate != 5 || cfg.Clusters != 3 {
		t.Errorf("rate/clusters: %g/%d", cfg.Rate, cfg.Clusters)
	}
	// unset keys keep their defaults
	if cfg.ChunkSize != 10000 || cfg.Bins != 30 {
		t.Errorf("unset keys changed: %+v", cfg)
	}
	if cfg.ConfigPath == "" {
		t.Error("config path should record the loaded file")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	writeConfig(t, dir, `{"data_dir": "from-file", "db_path": "/file/movetrack.db"}`)
	t.Setenv(config.EnvDataDir, "from-env")
	t.Setenv(config.EnvDBPath, "/env/movetrack.db")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "from-env" {
		t.Errorf("env should beat file: got %q", cfg.DataDir)
	}
	if cfg.DBPath != "/env/movetrack.db" {
		t.Errorf("db path: got %q", cfg.DBPath)
	}
}

func TestLoadFlagOverridesAll(t *testing.T) {
	dir := inTempDir(t)
	writeConfig(t, dir, `{"data_dir": "from-file"}`)
	t.Setenv(config.EnvDataDir, "from-env")

	cfg, err := config.Load("from-flag")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "from-flag" {
		t.Errorf("flag should win: got %q", cfg.DataDir)
	}
}

func TestLoadIgnoresBadTimeout(t *testing.T) {
	dir := inTempDir(t)
	writeConfig(t, dir, `{"timeout": "soon"}`)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("bad timeout should keep the default, got %v", cfg.Timeout)
	}
}

// ─── Validate ─────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	inTempDir(t)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero chunk size", func(c *config.Config) { c.ChunkSize = 0 }},
		{"zero clusters", func(c *config.Config) { c.Clusters = 0 }},
		{"zero bins", func(c *config.Config) { c.Bins = 0 }},
		{"negative rate", func(c *config.Config) { c.Rate = -1 }},
	}
	for _, tt := range tests {
		bad := *cfg
		tt.mutate(&bad)
		if err := bad.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

// ─── Template / WriteFile ─────────────────────────────────────────────────────

func TestTemplateRoundTrip(t *testing.T) {
	dir := inTempDir(t)
	if err := config.WriteFile(filepath.Join(dir, config.DefaultConfigFile), config.Template()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigPath == "" {
		t.Error("template config.json was not picked up")
	}
	// the template mirrors the built-in defaults
	if cfg.Format != "table" || cfg.Timeout != 60*time.Second || cfg.Rate != 2.0 {
		t.Errorf("template drifted from defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("template should validate: %v", err)
	}
}
