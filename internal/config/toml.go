// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/gapdash/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Server    ServerConfig    `toml:"server"`
	Dataset   DatasetConfig   `toml:"dataset"`
	Dashboard DashboardConfig `toml:"dashboard"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Addr      *string `toml:"addr"`
	Debug     *bool   `toml:"debug"`
	Templates *string `toml:"templates"`
}

// DatasetConfig selects where records are loaded from.
type DatasetConfig struct {
	Path *string `toml:"path"`
	DB   *string `toml:"db"`
}

// DashboardConfig maps the page-load control values.
type DashboardConfig struct {
	Continent   *string `toml:"continent"`
	Year        *int    `toml:"year"`
	MapVariable *string `toml:"map-variable"`
	MapYear     *int    `toml:"map-year"`
	TopN        *int    `toml:"top-n"`
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
	if v := cfg.Dashboard.MapVariable; v != nil {
		if _, ok := model.ParseMetric(*v); !ok {
			return FileConfig{}, fmt.Errorf("unknown map-variable %q", *v)
		}
	}
	return cfg, nil
}

// Defaults overlays the dashboard section onto base.
func (c DashboardConfig) Defaults(base model.Defaults) model.Defaults {
	if c.Continent != nil {
		base.Continent = *c.Continent
	}
	if c.Year != nil {
		base.Year = *c.Year
	}
	if c.MapVariable != nil {
		if m, ok := model.ParseMetric(*c.MapVariable); ok {
			base.MapMetric = m
		}
	}
	if c.MapYear != nil {
		base.MapYear = *c.MapYear
	}
	if c.TopN != nil {
		base.TopN = *c.TopN
	}
	return base
}
