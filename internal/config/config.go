// Package config loads rowstore settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oda/rowstore/internal/logging"
	"github.com/oda/rowstore/internal/pager"
)

// Config holds settings shared by the rowstore binaries.
type Config struct {
	// DBPath is the table file. A positional argument overrides it.
	DBPath string `yaml:"db_path"`
	// MaxPages bounds the pages a table may address.
	MaxPages uint32 `yaml:"max_pages"`
	// SyncOnClose fsyncs the file after the final flush.
	SyncOnClose bool `yaml:"sync_on_close"`
	// SortedInsert keeps cells ordered by id instead of insertion order.
	SortedInsert bool `yaml:"sorted_insert"`
	// HTTPAddr is the listen address of the HTTP server.
	HTTPAddr string `yaml:"http_addr"`

	Log logging.Config `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:      "db.dat",
		MaxPages:    pager.DefaultMaxPages,
		SyncOnClose: true,
		HTTPAddr:    ":8080",
		Log:         logging.DefaultConfig(),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("config: db_path must not be empty")
	}
	if c.MaxPages == 0 {
		return errors.New("config: max_pages must be positive")
	}
	return nil
}
