// Package config handles loading and resolving movetrack configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags (--data-dir, --timeout, --rate, ...)
//  2. Environment variables (MOVETRACK_DATA_DIR, MOVETRACK_DB_PATH)
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultConfigFile = "config.json"
	DefaultFormat     = "table"
	DefaultTimeout    = 60 * time.Second
	DefaultRate       = 2.0
	DefaultChunkSize  = 10000
	DefaultSeed       = 42
	DefaultClusters   = 5
	DefaultBins       = 30
	EnvDataDir        = "MOVETRACK_DATA_DIR"
	EnvDBPath         = "MOVETRACK_DB_PATH"
)

// File is the on-disk representation of config.json.
type File struct {
	DataDir       string  `json:"data_dir"`
	FiguresDir    string  `json:"figures_dir"`
	ReportsDir    string  `json:"reports_dir"`
	DBPath        string  `json:"db_path"`
	DefaultFormat string  `json:"default_format"`
	Timeout       string  `json:"timeout"`
	Rate          float64 `json:"rate"`
	ChunkSize     int     `json:"chunk_size"`
	Seed          int64   `json:"seed"`
	Clusters      int     `json:"clusters"`
	Bins          int     `json:"bins"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	DataDir    string
	FiguresDir string
	ReportsDir string
	DBPath     string
	Format     string
	Timeout    time.Duration
	Rate       float64
	ChunkSize  int
	Seed       int64
	Clusters   int
	Bins       int
	ConfigPath string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagDataDir is the value of --data-dir (empty string if not set).
func Load(flagDataDir string) (*Config, error) {
	cfg := &Config{
		DataDir:    filepath.Join("data", "movebank"),
		FiguresDir: "figures",
		ReportsDir: "reports",
		Format:     DefaultFormat,
		Timeout:    DefaultTimeout,
		Rate:       DefaultRate,
		ChunkSize:  DefaultChunkSize,
		Seed:       DefaultSeed,
		Clusters:   DefaultClusters,
		Bins:       DefaultBins,
	}

	// Layer 1: config.json (lowest priority)
	if f, path, err := loadFile(); err == nil {
		applyFile(cfg, f, path)
	}

	// Layer 2: environment variables
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flags (highest priority)
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".movetrack", "movetrack.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if resolved values are unusable.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.Clusters < 1 {
		return fmt.Errorf("clusters must be positive, got %d", c.Clusters)
	}
	if c.Bins < 1 {
		return fmt.Errorf("bins must be positive, got %d", c.Bins)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %g", c.Rate)
	}
	return nil
}

// loadFile attempts to read config.json from the current working directory.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s", path)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.FiguresDir != "" {
		cfg.FiguresDir = f.FiguresDir
	}
	if f.ReportsDir != "" {
		cfg.ReportsDir = f.ReportsDir
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.ChunkSize > 0 {
		cfg.ChunkSize = f.ChunkSize
	}
	if f.Seed != 0 {
		cfg.Seed = f.Seed
	}
	if f.Clusters > 0 {
		cfg.Clusters = f.Clusters
	}
	if f.Bins > 0 {
		cfg.Bins = f.Bins
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `movetrack config init`.
func Template() File {
	return File{
		DataDir:       filepath.Join("data", "movebank"),
		FiguresDir:    "figures",
		ReportsDir:    "reports",
		DefaultFormat: "table",
		Timeout:       "60s",
		Rate:          DefaultRate,
		ChunkSize:     DefaultChunkSize,
		Seed:          DefaultSeed,
		Clusters:      DefaultClusters,
		Bins:          DefaultBins,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
