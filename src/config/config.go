// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package config

import (
	"net"
	"time"

	"github.com/latsarcode/latsar/src/logger"
)

const Software = "Latsar"

// Config is the resolved runtime configuration handed to the server.
type Config struct {
	Log logger.Logger

	Version string

	// Backend base URL, resolved once at startup
	APIBaseURL string
	// Application origin for cache misses and precaching
	Origin string
	Addr   string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	CacheName    string
	CacheVersion string
	CacheURLs    []string

	NotificationOutput string

	Manifest Manifest
}

// Manifest is the web app manifest of the application shell.
type Manifest struct {
	Name            string
	ShortName       string
	BackgroundColor string
	ThemeColor      string
	Display         string
	StartURL        string
}

// Resolve builds the runtime config from the file config.
func Resolve(y *YAMLConfig, log logger.Logger, version string) (Config, error) {
	if err := ValidateBaseURL(y.API.BaseURL); err != nil {
		return Config{}, err
	}
	if err := ValidateBaseURL(y.Server.Origin); err != nil {
		return Config{}, err
	}

	listen := y.Server.Listen
	if listen == "all" || listen == "" {
		listen = "::"
	}

	return Config{
		Log:                log,
		Version:            version,
		APIBaseURL:         y.API.BaseURL,
		Origin:             y.Server.Origin,
		Addr:               net.JoinHostPort(listen, y.Server.Port),
		ReadTimeout:        time.Duration(y.Server.Timeouts.Read) * time.Second,
		WriteTimeout:       time.Duration(y.Server.Timeouts.Write) * time.Second,
		IdleTimeout:        time.Duration(y.Server.Timeouts.Idle) * time.Second,
		CacheName:          y.Cache.Name,
		CacheVersion:       y.Cache.Version,
		CacheURLs:          y.Cache.URLs,
		NotificationOutput: y.Notifications.Output,
		Manifest: Manifest{
			Name:            y.Manifest.Name,
			ShortName:       y.Manifest.ShortName,
			BackgroundColor: y.Manifest.BackgroundColor,
			ThemeColor:      y.Manifest.ThemeColor,
			Display:         y.Manifest.Display,
			StartURL:        y.Manifest.StartURL,
		},
	}, nil
}
