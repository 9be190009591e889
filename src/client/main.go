// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/latsarcode/latsar/src/config"
	"github.com/latsarcode/latsar/src/path"
	"github.com/latsarcode/latsar/src/subscription"
)

// Build info - set via -ldflags at build time
var (
	Version   = "unknown"
	CommitID  = "unknown"
	BuildDate = "unknown"
)

// Config represents the CLI configuration file
type Config struct {
	// Reminder backend base URL
	APIBaseURL string `yaml:"api_base_url"`
	// Local latsar daemon
	Server string `yaml:"server"`
}

type cliEnv struct {
	Server string `env:"SERVER"`
}

func defaultConfig() Config {
	return Config{
		APIBaseURL: subscription.DefaultBaseURL,
		Server:     "http://127.0.0.1:8080",
	}
}

var errUsage = errors.New("usage")

type app struct {
	cfg        Config
	configPath string
	client     *http.Client
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

func main() {
	configPath := path.ClientConfigFile()
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	a := &app{
		cfg:        cfg,
		configPath: configPath,
		client:     &http.Client{Timeout: 30 * time.Second},
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}

	os.Exit(a.run(os.Args[1:]))
}

func (a *app) run(args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return 1
	}

	var err error
	switch command, rest := args[0], args[1:]; command {
	case "help", "--help", "-h":
		a.printUsage()
		return 0
	case "version", "--version", "-v":
		fmt.Fprintf(a.stdout, "latsar-cli v%s\n", Version)
		return 0
	case "config":
		err = a.handleConfig(rest)
	case "key":
		err = a.handleKey(rest)
	case "subscribe":
		err = a.handleSubscribe(rest)
	case "push":
		err = a.handlePush(rest)
	case "preview":
		err = a.handlePreview(rest)
	case "list", "ls":
		err = a.handleList(rest)
	case "click":
		err = a.handleClick(rest)
	case "watch":
		err = a.handleWatch(rest)
	case "health", "healthz":
		err = a.handleHealth(rest)
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n\n", command)
		a.printUsage()
		return 1
	}

	if errors.Is(err, errUsage) {
		a.printUsage()
		return 1
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) printUsage() {
	fmt.Fprintf(a.stdout, `Latsar CLI v%s
Talks to the reminder backend and to a running latsar daemon.

Usage: latsar-cli <command> [options]

Commands:
  config [set KEY VALUE]   Show or change configuration
  key                      Fetch and check the backend's public push key
  subscribe [-f FILE]      Send a push subscription (JSON, stdin by default)
  push [-t TITLE] [-b BODY] [-r RAW]
                           Deliver a push message to the daemon
  preview [-t TITLE] [-b BODY]
                           Render a reminder without sending it
  list, ls                 List notifications shown by the daemon
  click [TAG]              Click a notification (default: daily-reminder)
  watch [-i INTERVAL]      Interactive tray: pick a notification, enter clicks it
  health, healthz          Check the daemon
  help                     Show this help message
  version                  Show version

Configuration:
  Config file: %s

  Or use environment variables:
    LATSAR_API_BASE_URL=https://api.example.com
    LATSAR_SERVER=http://127.0.0.1:8080

`, Version, a.configPath)
}

// loadConfig loads configuration from file and environment
func loadConfig(configPath string) (Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", configPath, err)
			}
		}
	}

	o, err := config.ParseOverrides()
	if err != nil {
		return cfg, err
	}
	if o.APIBaseURL != "" {
		cfg.APIBaseURL = o.APIBaseURL
	}

	var e cliEnv
	if err := env.ParseWithOptions(&e, env.Options{Prefix: "LATSAR_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if e.Server != "" {
		cfg.Server = e.Server
	}

	return cfg, nil
}

// saveConfig saves configuration to file
func saveConfig(configPath string, cfg Config) error {
	if err := path.EnsureDir(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (a *app) handleConfig(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(a.stdout, "Config file: %s\n\n", a.configPath)
		fmt.Fprintf(a.stdout, "API base URL: %s\n", a.cfg.APIBaseURL)
		fmt.Fprintf(a.stdout, "Server:       %s\n", a.cfg.Server)
		return nil
	}

	if len(args) != 3 || args[0] != "set" {
		return errUsage
	}

	key, value := args[1], args[2]
	if err := config.ValidateBaseURL(value); err != nil {
		return err
	}

	switch key {
	case "api_base_url":
		a.cfg.APIBaseURL = value
	case "server":
		a.cfg.Server = value
	default:
		return fmt.Errorf("unknown config key %q (api_base_url, server)", key)
	}

	if err := saveConfig(a.configPath, a.cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Saved %s = %s\n", key, value)
	return nil
}
