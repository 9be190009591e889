// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"golang.org/x/net/publicsuffix"
)

var ErrInvalidURL = errors.New("config: invalid URL")

// Overrides are the LATSAR_* environment variables. Unset values leave
// the config file untouched.
type Overrides struct {
	APIBaseURL     string   `env:"API_BASE_URL"`
	Origin         string   `env:"ORIGIN"`
	Listen         string   `env:"LISTEN"`
	Port           string   `env:"PORT"`
	CacheName      string   `env:"CACHE_NAME"`
	CacheVersion   string   `env:"CACHE_VERSION"`
	CacheURLs      []string `env:"CACHE_URLS" envSeparator:","`
	DBDriver       string   `env:"DB_DRIVER"`
	DBSource       string   `env:"DB_SOURCE"`
	MetricsEnabled *bool    `env:"METRICS_ENABLED"`
	MetricsToken   string   `env:"METRICS_TOKEN"`
	LogLevel       string   `env:"LOG_LEVEL"`
	Notifications  string   `env:"NOTIFICATIONS"`
}

// legacy front end build variable, honoured when LATSAR_API_BASE_URL is unset
type viteEnv struct {
	APIBaseURL string `env:"VITE_API_BASE_URL"`
}

// ParseOverrides reads the LATSAR_* environment.
func ParseOverrides() (Overrides, error) {
	var o Overrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: "LATSAR_"}); err != nil {
		return o, fmt.Errorf("parse env: %w", err)
	}

	if o.APIBaseURL == "" {
		var v viteEnv
		if err := env.Parse(&v); err != nil {
			return o, fmt.Errorf("parse env: %w", err)
		}
		o.APIBaseURL = v.APIBaseURL
	}

	return o, nil
}

// ApplyEnvironmentOverrides applies environment variables to config.
// Environment variables override config file values.
func ApplyEnvironmentOverrides(cfg *YAMLConfig) error {
	o, err := ParseOverrides()
	if err != nil {
		return err
	}
	o.Apply(cfg)
	return nil
}

func (o Overrides) Apply(cfg *YAMLConfig) {
	set := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}

	set(&cfg.API.BaseURL, o.APIBaseURL)
	set(&cfg.Server.Origin, o.Origin)
	set(&cfg.Server.Listen, o.Listen)
	set(&cfg.Server.Port, o.Port)
	set(&cfg.Cache.Name, o.CacheName)
	set(&cfg.Cache.Version, o.CacheVersion)
	set(&cfg.Database.Driver, o.DBDriver)
	set(&cfg.Database.Source, o.DBSource)
	set(&cfg.Metrics.Token, o.MetricsToken)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Notifications.Output, o.Notifications)

	if len(o.CacheURLs) > 0 {
		cfg.Cache.URLs = o.CacheURLs
	}
	if o.MetricsEnabled != nil {
		cfg.Metrics.Enabled = *o.MetricsEnabled
	}
}

// isValidDomain checks a host name against the Public Suffix List
func isValidDomain(s string) bool {
	if s == "" || net.ParseIP(s) != nil || !strings.Contains(s, ".") {
		return false
	}
	_, err := publicsuffix.EffectiveTLDPlusOne(s)
	return err == nil
}

// ValidateBaseURL accepts http(s) URLs whose host is localhost, an IP
// address, a single-label name (docker service names) or a domain with a
// known public suffix.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidURL, raw)
	}

	host := u.Hostname()
	switch {
	case host == "":
		return fmt.Errorf("%w %q: missing host", ErrInvalidURL, raw)
	case host == "localhost", net.ParseIP(host) != nil, !strings.Contains(host, "."):
		return nil
	case isValidDomain(host):
		return nil
	}

	return fmt.Errorf("%w %q: %q is not a registrable domain", ErrInvalidURL, raw, host)
}
