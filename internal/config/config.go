package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/gnuledger/internal/logger"
)

// FileName is the config file looked up in the data directory.
const FileName = "gnuledger.yaml"

// Environment variables overriding the file.
const (
	EnvHome     = "GNULEDGER_HOME"
	EnvLogLevel = "GNULEDGER_LOG_LEVEL"
	EnvCurrency = "GNULEDGER_CURRENCY"
	EnvCache    = "GNULEDGER_CACHE"
)

// Config represents the top-level gnuledger.yaml configuration.
type Config struct {
	Data         DataConfig         `yaml:"data"`
	Currency     string             `yaml:"currency"`
	Log          logger.Config      `yaml:"log"`
	Transactions TransactionsConfig `yaml:"transactions"`
}

// DataConfig locates the books.
type DataConfig struct {
	Dir string `yaml:"dir"`
	// Cache keeps commodity and account records in memory.
	Cache bool `yaml:"cache"`
}

// TransactionsConfig holds defaults for recording and exporting.
type TransactionsConfig struct {
	DoubleEntry  bool   `yaml:"double_entry"`
	ExportDir    string `yaml:"export_dir,omitempty"`
	ImportFormat string `yaml:"import_format"`
}

// Load reads a gnuledger.yaml file from disk. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load returning Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir: DefaultHome(),
		},
		Currency: "USD",
		Log:      logger.Default(),
		Transactions: TransactionsConfig{
			DoubleEntry:  true,
			ImportFormat: "simple",
		},
	}
}

// DefaultHome is ~/.gnuledger, or .gnuledger when there is no home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gnuledger"
	}
	return filepath.Join(home, ".gnuledger")
}

// LoadEnv loads the .env files given, or ./.env when none are. Missing files
// are ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with the GNULEDGER_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvCurrency); v != "" {
		cfg.Currency = v
	}
	if v := os.Getenv(EnvCache); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvCache, err)
		}
		cfg.Data.Cache = b
	}
	return nil
}
