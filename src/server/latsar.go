// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/latsarcode/latsar/src/cache"
	"github.com/latsarcode/latsar/src/cli"
	"github.com/latsarcode/latsar/src/config"
	"github.com/latsarcode/latsar/src/metrics"
	"github.com/latsarcode/latsar/src/notify"
	"github.com/latsarcode/latsar/src/path"
	"github.com/latsarcode/latsar/src/push"
	"github.com/latsarcode/latsar/src/storage"
	"github.com/latsarcode/latsar/src/subscription"
	"github.com/latsarcode/latsar/src/web"
	"github.com/latsarcode/latsar/src/worker"
)

// Build info - set via -ldflags at build time
var (
	Version   = "unknown"
	CommitID  = "unknown"
	BuildDate = "unknown"
)

func getVersion() string {
	if Version != "unknown" {
		return Version
	}

	data, err := os.ReadFile("release.txt")
	if err == nil {
		if version := strings.TrimSpace(string(data)); version != "" {
			return version
		}
	}

	return "0.1.0"
}

func exitOnError(e error) {
	fmt.Fprintln(os.Stderr, "error:", e.Error())
	os.Exit(1)
}

func main() {
	Version = getVersion()

	c := cli.New(Version, "LATSAR_")
	flagConfig := c.AddStringVar("config", "", "Configuration file. Default: "+path.ConfigFile(), nil)
	flagDataDir := c.AddStringVar("data", "", "Data directory. Default: "+path.DataDir(), nil)
	flagAddress := c.AddStringVar("address", "", "HTTP server ADDRESS:PORT, overrides server.listen and server.port.", nil)
	flagDebug := c.AddBoolVar("debug", "Enable debug logging.")
	flagStatus := c.AddBoolVar("status", "Check the configured database and origin, then exit. Exit codes: 0=healthy, 1=unhealthy")
	flagMigrate := c.AddStringVar("migrate", "", "Copy caches from another database into the configured one and exit. Format: DRIVER:SOURCE", nil)
	flagShutdown := c.AddDurationVar("shutdown-timeout", "30s", "Time allowed for in-flight requests and events on shutdown.", nil)
	c.Parse()

	dataDir := *flagDataDir
	if dataDir == "" {
		dataDir = path.DataDir()
	}
	configFile := *flagConfig
	if configFile == "" {
		configFile = path.ConfigFile()
	}

	if err := path.EnsureDir(dataDir); err != nil {
		exitOnError(fmt.Errorf("create data directory: %w", err))
	}

	yamlCfg, err := loadConfig(configFile)
	if err != nil {
		exitOnError(err)
	}
	if err := config.ApplyEnvironmentOverrides(yamlCfg); err != nil {
		exitOnError(err)
	}
	config.ResolvePlaceholders(yamlCfg, dataDir, filepath.Dir(configFile))

	if *flagDebug {
		yamlCfg.Logging.Level = "debug"
	}
	if *flagAddress != "" {
		host, port, err := net.SplitHostPort(*flagAddress)
		if err != nil {
			exitOnError(fmt.Errorf("invalid -address %q: %w", *flagAddress, err))
		}
		yamlCfg.Server.Listen = host
		yamlCfg.Server.Port = port
	}

	if *flagMigrate != "" {
		driver, source, ok := strings.Cut(*flagMigrate, ":")
		if !ok {
			exitOnError(fmt.Errorf("invalid -migrate %q, want DRIVER:SOURCE", *flagMigrate))
		}
		if err := storage.MigrateDatabase(driver, source, yamlCfg.Database.Driver, yamlCfg.Database.Source); err != nil {
			exitOnError(err)
		}
		return
	}

	if *flagStatus {
		os.Exit(checkStatus(yamlCfg))
	}

	log, closeLogs, err := setupLogger(yamlCfg, *flagDebug)
	if err != nil {
		exitOnError(err)
	}
	defer closeLogs()

	log.Debug("Configuration loaded from: " + configFile)
	log.Debug("Data directory: " + dataDir)
	log.Debug("Database: " + formatDatabaseDisplay(yamlCfg.Database.Driver, yamlCfg.Database.Source))

	cfg, err := config.Resolve(yamlCfg, log, Version)
	if err != nil {
		exitOnError(err)
	}

	metricsCfg := metricsConfig(yamlCfg)
	metrics.Init(metricsCfg, Version, CommitID, BuildDate)

	store, closeStore, err := openStorage(yamlCfg, dataDir)
	if err != nil {
		exitOnError(err)
	}
	defer closeStore()

	fetcher, err := cache.NewHTTPFetcher(cfg.Origin, &http.Client{Timeout: cfg.WriteTimeout})
	if err != nil {
		exitOnError(err)
	}
	fetcher.UserAgent = config.Software + "/" + Version

	manager, err := cache.New(cache.Config{
		Name:    cfg.CacheName,
		Version: cfg.CacheVersion,
		Origin:  cfg.Origin,
		URLs:    cfg.CacheURLs,
	}, store, fetcher, log)
	if err != nil {
		exitOnError(err)
	}

	tray := notify.NewTray()
	var host notify.Host = tray
	if cfg.NotificationOutput == "terminal" {
		host = notify.NewTerminal(tray, os.Stdout)
	}
	reminders := push.NewHandler(host, log)

	sw := worker.New(worker.Handlers{
		Install:           manager.HandleInstall,
		Activate:          manager.HandleActivate,
		Fetch:             manager.HandleFetch,
		Push:              reminders.HandlePush,
		NotificationClick: reminders.HandleClick,
	}, fetcher, log)

	registerCtx, cancelRegister := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := sw.Register(registerCtx); err != nil {
		// Requests still reach the origin, just without the offline cache
		log.Error(fmt.Errorf("worker registration failed: %w", err))
	}
	cancelRegister()

	backend := subscription.New(cfg.APIBaseURL, &http.Client{Timeout: 10 * time.Second})
	backend.SetUserAgent(config.Software + "/" + Version)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := checkBackend(ctx, backend); err != nil {
			log.Warn("Reminder backend unreachable, push subscriptions will fail: " + err.Error())
			return
		}
		log.Info("Reminder backend reachable at " + backend.BaseURL())
	}()

	data, err := web.Load(cfg, sw, manager, tray)
	if err != nil {
		exitOnError(err)
	}

	handler := web.Chain(http.HandlerFunc(data.Handler),
		web.PanicRecoveryMiddleware(log, *flagDebug),
		web.RequestIDMiddleware,
		metrics.Middleware(metricsCfg, web.Route),
		web.PathSecurityMiddleware,
	)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		exitOnError(err)
	}

	printStartupBanner(Version, getDisplayAddress(cfg.Addr), cfg.Origin, cfg.APIBaseURL, configFile,
		formatDatabaseDisplay(yamlCfg.Database.Driver, yamlCfg.Database.Source), string(sw.State()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	httpErrors := make(chan error, 1)
	go func() {
		log.Info("Run HTTP server on " + cfg.Addr)
		httpErrors <- srv.Serve(listener)
	}()

	select {
	case err := <-httpErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			exitOnError(err)
		}

	case sig := <-sigChan:
		log.Info(fmt.Sprintf("Received signal %v, shutting down gracefully...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), *flagShutdown)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error(fmt.Errorf("HTTP server shutdown error: %w", err))
			srv.Close()
		}
		if err := sw.Close(ctx); err != nil {
			log.Error(fmt.Errorf("worker shutdown error: %w", err))
		}

		log.Info("Server stopped")
	}
}
