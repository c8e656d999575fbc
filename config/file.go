package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types accepted in the config file.
const (
	SourceSearch = "search"
	SourceRSS    = "rss"
)

// DefaultMaxRecords bounds the in-memory history unless configured.
const DefaultMaxRecords = 1000

// ErrInvalidConfig wraps every validation failure of a FileConfig.
var ErrInvalidConfig = errors.New("invalid config")

// SourceConfig selects and configures where entries come from.
type SourceConfig struct {
	Type     string `yaml:"type"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	EngineID string `yaml:"engine_id"`
	Results  int    `yaml:"results"`
}

// StorageConfig represents storage configuration from config file.
type StorageConfig struct {
	Settings struct {
		DSN string `yaml:"dsn"`
	} `yaml:"settings"`
}

// FileConfig represents the structure of ~/.newsmon/config.yaml.
type FileConfig struct {
	Query           string        `yaml:"query"`
	Timezone        string        `yaml:"timezone"`
	RefreshInterval string        `yaml:"refresh_interval"`
	Enrich          bool          `yaml:"enrich"`
	MaxRecords      int           `yaml:"max_records"`
	Listen          string        `yaml:"listen"`
	Source          SourceConfig  `yaml:"source"`
	Storage         StorageConfig `yaml:"storage"`
}

// Default returns the configuration used when no file exists.
func Default() *FileConfig {
	cfg := &FileConfig{
		Query:           "reforma ministerial",
		Timezone:        "America/Sao_Paulo",
		RefreshInterval: DefaultRefreshInterval.String(),
		MaxRecords:      DefaultMaxRecords,
		Listen:          ":8080",
		Source: SourceConfig{
			Type:    SourceSearch,
			Results: 10,
		},
	}
	cfg.Storage.Settings.DSN = "newsmon.db"
	return cfg
}

// Path returns the location of the config file under the user's home
// directory.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".newsmon", "config.yaml"), nil
}

// LoadConfigFile loads configuration from ~/.newsmon/config.yaml. Returns nil
// if the file doesn't exist (not an error). Returns error if the file exists
// but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadConfigFileFrom(configPath)
}

// LoadConfigFileFrom loads the config file at path over Default. Keys absent
// from the file keep their default values.
func LoadConfigFileFrom(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Interval returns the configured refresh interval.
func (c *FileConfig) Interval() time.Duration {
	return Settings{RefreshInterval: c.RefreshInterval}.Interval()
}

// Validate checks the values a monitor cannot start without. A refresh
// interval outside the allowed range is clamped into it rather than rejected.
func (c *FileConfig) Validate() error {
	if c.Query == "" && c.Source.Type == SourceSearch {
		return fmt.Errorf("%w: query is required for the search source", ErrInvalidConfig)
	}
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return fmt.Errorf("%w: %w: must be a valid duration (e.g., 30s, 2m)", ErrInvalidConfig, ErrInvalidRefreshInterval)
	}
	if clamped := ClampRefreshInterval(d); clamped != d {
		log.Printf("WARN: refresh_interval %s is outside %v..%v, using %v",
			c.RefreshInterval, MinRefreshInterval, MaxRefreshInterval, clamped)
		c.RefreshInterval = clamped.String()
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("%w: max_records must not be negative", ErrInvalidConfig)
	}

	switch c.Source.Type {
	case SourceSearch:
	case SourceRSS:
		if c.Source.URL == "" {
			return fmt.Errorf("%w: source.url is required for the rss source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported source type %q", ErrInvalidConfig, c.Source.Type)
	}

	return nil
}
