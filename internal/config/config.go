// Package config handles configuration loading for the VoluScope server.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Viewers []ViewerConfig `yaml:"viewers"`
	Render  RenderConfig   `yaml:"render"`
	Cache   CacheConfig    `yaml:"cache"`
	History HistoryConfig  `yaml:"history"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Title       string   `yaml:"title"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ViewerConfig describes one configured viewer.
type ViewerConfig struct {
	ID            string `yaml:"id"`
	RenderingMode string `yaml:"rendering_mode"`
	DefaultPreset string `yaml:"default_preset"`
}

// RenderConfig contains preview rendering settings.
type RenderConfig struct {
	PreviewSize int `yaml:"preview_size"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	PreviewSizeMB     int `yaml:"preview_size_mb"`
	PreviewTTLMinutes int `yaml:"preview_ttl_minutes"`
	FrameCacheSize    int `yaml:"frame_cache_size"`
}

// HistoryConfig contains load-history persistence settings.
type HistoryConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Title:       "VoluScope",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Viewers: []ViewerConfig{
			{ID: "main", RenderingMode: "composite"},
		},
		Render: RenderConfig{
			PreviewSize: 512,
		},
		Cache: CacheConfig{
			PreviewSizeMB:     256,
			PreviewTTLMinutes: 10,
			FrameCacheSize:    64,
		},
		History: HistoryConfig{
			SQLitePath: "./data/history.db",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if len(cfg.Viewers) == 0 {
		cfg.Viewers = defaults.Viewers
	}
	for i := range cfg.Viewers {
		if cfg.Viewers[i].RenderingMode == "" {
			cfg.Viewers[i].RenderingMode = "composite"
		}
	}
	if cfg.Render.PreviewSize == 0 {
		cfg.Render.PreviewSize = defaults.Render.PreviewSize
	}
	if cfg.Cache.PreviewSizeMB == 0 {
		cfg.Cache.PreviewSizeMB = defaults.Cache.PreviewSizeMB
	}
	if cfg.Cache.PreviewTTLMinutes == 0 {
		cfg.Cache.PreviewTTLMinutes = defaults.Cache.PreviewTTLMinutes
	}
	if cfg.Cache.FrameCacheSize == 0 {
		cfg.Cache.FrameCacheSize = defaults.Cache.FrameCacheSize
	}
	if cfg.History.SQLitePath == "" {
		cfg.History.SQLitePath = defaults.History.SQLitePath
	}
}
