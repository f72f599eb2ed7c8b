// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Source    SourceConfig    `toml:"source"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Store     StoreConfig     `toml:"store"`
}

// SourceConfig maps the CSV source and its column names.
type SourceConfig struct {
	Path          *string  `toml:"path"`
	DateColumn    *string  `toml:"date-column"`
	ProductColumn *string  `toml:"product-column"`
	CityColumn    *string  `toml:"city-column"`
	PriceColumn   *string  `toml:"price-column"`
	DateLayouts   []string `toml:"date-layouts"`
}

// DashboardConfig maps the initial selection and view settings.
type DashboardConfig struct {
	City        *string `toml:"city"`
	Fuel        *string `toml:"fuel"`
	Year        *string `toml:"year"`
	TrendWindow *int    `toml:"trend-window"`
}

// StoreConfig maps load history settings.
type StoreConfig struct {
	Path    *string `toml:"path"`
	History *bool   `toml:"history"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
