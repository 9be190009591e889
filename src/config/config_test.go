// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/latsarcode/latsar/src/logger"
	"github.com/latsarcode/latsar/src/subscription"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LATSAR_API_BASE_URL", "VITE_API_BASE_URL", "LATSAR_ORIGIN", "LATSAR_LISTEN",
		"LATSAR_PORT", "LATSAR_CACHE_NAME", "LATSAR_CACHE_VERSION", "LATSAR_CACHE_URLS",
		"LATSAR_DB_DRIVER", "LATSAR_DB_SOURCE", "LATSAR_METRICS_ENABLED",
		"LATSAR_METRICS_TOKEN", "LATSAR_LOG_LEVEL", "LATSAR_NOTIFICATIONS",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadYAMLConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yml")
	data := "api:\n  base_url: https://api.example.com\ncache:\n  version: \"3\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Cache.Version != "3" {
		t.Errorf("Version = %q", cfg.Cache.Version)
	}
	if cfg.Cache.Name != "latsar-code" || cfg.Server.Port != "8080" {
		t.Errorf("defaults lost: %q %q", cfg.Cache.Name, cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Cache.URLs, []string{"/", "/icon-192x192.png"}) {
		t.Errorf("URLs = %v", cfg.Cache.URLs)
	}
}

func TestLoadYAMLConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yml")
	os.WriteFile(path, []byte("server: [unclosed"), 0644)

	if _, err := LoadYAMLConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGenerateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.yml")
	if err := GenerateDefaultYAMLConfig(path); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, DefaultYAMLConfig()) {
		t.Error("reloaded config differs from defaults")
	}
}

func TestResolvePlaceholders(t *testing.T) {
	cfg := DefaultYAMLConfig()
	cfg.Logging.Dir = "{config_dir}/logs"
	ResolvePlaceholders(cfg, "/var/lib/latsar", "/etc/latsar")

	if cfg.Database.Source != "/var/lib/latsar/cache.db" {
		t.Errorf("Source = %q", cfg.Database.Source)
	}
	if cfg.Logging.Dir != "/etc/latsar/logs" {
		t.Errorf("Dir = %q", cfg.Logging.Dir)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LATSAR_API_BASE_URL", "https://api.example.com")
	t.Setenv("LATSAR_CACHE_VERSION", "9")
	t.Setenv("LATSAR_CACHE_URLS", "/,/app.js,/icon-192x192.png")
	t.Setenv("LATSAR_METRICS_ENABLED", "true")
	t.Setenv("LATSAR_DB_DRIVER", "memory")

	cfg := DefaultYAMLConfig()
	if err := ApplyEnvironmentOverrides(cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Cache.Version != "9" {
		t.Errorf("Version = %q", cfg.Cache.Version)
	}
	if !reflect.DeepEqual(cfg.Cache.URLs, []string{"/", "/app.js", "/icon-192x192.png"}) {
		t.Errorf("URLs = %v", cfg.Cache.URLs)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics not enabled")
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if cfg.Server.Origin != "http://localhost:5173" {
		t.Errorf("unset override changed Origin to %q", cfg.Server.Origin)
	}
}

func TestViteFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_API_BASE_URL", "https://vite.example.com")

	o, err := ParseOverrides()
	if err != nil {
		t.Fatal(err)
	}
	if o.APIBaseURL != "https://vite.example.com" {
		t.Errorf("APIBaseURL = %q", o.APIBaseURL)
	}

	t.Setenv("LATSAR_API_BASE_URL", "https://latsar.example.com")
	o, _ = ParseOverrides()
	if o.APIBaseURL != "https://latsar.example.com" {
		t.Errorf("APIBaseURL = %q", o.APIBaseURL)
	}
}

func TestInvalidMetricsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LATSAR_METRICS_ENABLED", "maybe")

	if _, err := ParseOverrides(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateBaseURL(t *testing.T) {
	valid := []string{
		"http://localhost:5000",
		"https://api.example.com",
		"https://reminders.example.co.uk/base",
		"http://127.0.0.1:5000",
		"http://[::1]:5000",
		"http://backend:5000",
	}
	for _, raw := range valid {
		if err := ValidateBaseURL(raw); err != nil {
			t.Errorf("%q: %v", raw, err)
		}
	}

	invalid := []string{
		"",
		"localhost:5000",
		"ftp://example.com",
		"https://",
		"https://co.uk",
		"://bad",
	}
	for _, raw := range invalid {
		if err := ValidateBaseURL(raw); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("%q: got %v", raw, err)
		}
	}
}

func TestResolve(t *testing.T) {
	y := DefaultYAMLConfig()
	y.Server.Listen = "all"
	y.Server.Port = "9000"

	cfg, err := Resolve(y, logger.Discard(), "1.2.3")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Addr != "[::]:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %s", cfg.ReadTimeout)
	}
	if cfg.APIBaseURL != subscription.DefaultBaseURL || cfg.Version != "1.2.3" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Manifest.ShortName != "LC" {
		t.Errorf("Manifest = %+v", cfg.Manifest)
	}

	y.Server.Origin = "not a url"
	if _, err := Resolve(y, logger.Discard(), ""); err == nil {
		t.Error("bad origin accepted")
	}
}
