// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/latsarcode/latsar/src/subscription"
)

// YAMLConfig represents the YAML configuration file structure
type YAMLConfig struct {
	Server struct {
		// Listen address (all, ::, 0.0.0.0, specific IP)
		Listen string `yaml:"listen"`
		// Port number
		Port string `yaml:"port"`
		// Application origin; fetches that miss the cache are sent here
		Origin string `yaml:"origin"`

		Timeouts struct {
			// Read timeout in seconds (default: 15)
			Read int `yaml:"read"`
			// Write timeout in seconds (default: 30)
			Write int `yaml:"write"`
			// Idle timeout in seconds (default: 60)
			Idle int `yaml:"idle"`
		} `yaml:"timeouts"`
	} `yaml:"server"`

	API struct {
		// Reminder backend base URL (default: http://localhost:5000)
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`

	Cache struct {
		// Container base name (default: latsar-code)
		Name string `yaml:"name"`
		// Bump on every deployment; activation drops other versions
		Version string `yaml:"version"`
		// Assets precached at install
		URLs []string `yaml:"urls"`
	} `yaml:"cache"`

	Database struct {
		// memory, sqlite, postgres, mysql
		Driver string `yaml:"driver"`
		// Connection string ({data_dir} is replaced)
		Source string `yaml:"source"`
		// Max open connections
		MaxOpenConns int `yaml:"max_open_conns"`
		// Max idle connections
		MaxIdleConns int `yaml:"max_idle_conns"`
	} `yaml:"database"`

	Notifications struct {
		// terminal: print notifications on stdout, none: keep them in memory only
		Output string `yaml:"output"`
	} `yaml:"notifications"`

	Manifest struct {
		Name            string `yaml:"name"`
		ShortName       string `yaml:"short_name"`
		BackgroundColor string `yaml:"background_color"`
		ThemeColor      string `yaml:"theme_color"`
		Display         string `yaml:"display"`
		StartURL        string `yaml:"start_url"`
	} `yaml:"manifest"`

	Metrics struct {
		// Enable Prometheus metrics endpoint (default: false)
		Enabled bool `yaml:"enabled"`
		// Endpoint path (default: /metrics)
		Endpoint string `yaml:"endpoint"`
		// Include Go runtime metrics
		IncludeRuntime bool `yaml:"include_runtime"`
		// Optional bearer token for authentication
		Token string `yaml:"token"`
	} `yaml:"metrics"`

	Logging struct {
		// info, warn, error, debug
		Level string `yaml:"level"`
		// Directory for server.log, error.log, access.log (empty = console only)
		Dir string `yaml:"dir"`

		Format struct {
			// apache, nginx, text, json
			Access string `yaml:"access"`
			// text, json
			Error string `yaml:"error"`
			// text, json
			Server string `yaml:"server"`
			// text, json
			Debug string `yaml:"debug"`
		} `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultYAMLConfig returns the configuration used when no file exists.
func DefaultYAMLConfig() *YAMLConfig {
	var cfg YAMLConfig

	cfg.Server.Listen = "127.0.0.1"
	cfg.Server.Port = "8080"
	cfg.Server.Origin = "http://localhost:5173"
	cfg.Server.Timeouts.Read = 15
	cfg.Server.Timeouts.Write = 30
	cfg.Server.Timeouts.Idle = 60

	cfg.API.BaseURL = subscription.DefaultBaseURL

	cfg.Cache.Name = "latsar-code"
	cfg.Cache.Version = "1"
	cfg.Cache.URLs = []string{"/", "/icon-192x192.png"}

	cfg.Database.Driver = "sqlite"
	cfg.Database.Source = "{data_dir}/cache.db"
	cfg.Database.MaxOpenConns = 10
	cfg.Database.MaxIdleConns = 2

	cfg.Notifications.Output = "terminal"

	cfg.Manifest.Name = "Latsar Code"
	cfg.Manifest.ShortName = "LC"
	cfg.Manifest.BackgroundColor = "#ffffff"
	cfg.Manifest.ThemeColor = "#000000"
	cfg.Manifest.Display = "standalone"
	cfg.Manifest.StartURL = "/"

	cfg.Metrics.Enabled = false
	cfg.Metrics.Endpoint = "/metrics"
	cfg.Metrics.IncludeRuntime = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format.Access = "apache"
	cfg.Logging.Format.Error = "text"
	cfg.Logging.Format.Server = "text"
	cfg.Logging.Format.Debug = "text"

	return &cfg
}

// LoadYAMLConfig loads configuration from YAML file. Keys missing from the
// file keep their default values.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// SaveYAMLConfig saves configuration to YAML file
func SaveYAMLConfig(path string, cfg *YAMLConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateDefaultYAMLConfig writes the default configuration to path.
func GenerateDefaultYAMLConfig(path string) error {
	return SaveYAMLConfig(path, DefaultYAMLConfig())
}

// ResolvePlaceholders replaces {data_dir} and {config_dir} in path-like values.
func ResolvePlaceholders(cfg *YAMLConfig, dataDir, configDir string) {
	replace := func(s string) string {
		s = strings.ReplaceAll(s, "{data_dir}", dataDir)
		s = strings.ReplaceAll(s, "{config_dir}", configDir)
		return s
	}

	cfg.Database.Source = replace(cfg.Database.Source)
	cfg.Logging.Dir = replace(cfg.Logging.Dir)
}
