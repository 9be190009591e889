// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package metrics provides Prometheus metrics for the worker host.
// All metrics carry the latsar_ prefix. Recording is a no-op until Init
// is called with an enabled config.
package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Enabled bool
	// Endpoint path for metrics (default: /metrics)
	Endpoint string
	// IncludeRuntime includes Go runtime metrics
	IncludeRuntime bool
	// Token for optional bearer token authentication
	Token string
}

func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Endpoint:       "/metrics",
		IncludeRuntime: true,
	}
}

var workerStates = []string{"parsed", "installing", "installed", "activating", "activated", "redundant"}

var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "latsar_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_date", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "latsar_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latsar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "latsar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "latsar_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	WorkerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "latsar_worker_state",
			Help: "Current worker lifecycle state (1 for the active state)",
		},
		[]string{"state"},
	)

	WorkerEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latsar_worker_events_total",
			Help: "Events dispatched to the worker",
		},
		[]string{"type", "result"},
	)

	WorkerEventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "latsar_worker_event_duration_seconds",
			Help:    "Time from dispatch until the event was resolved",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latsar_cache_hits_total",
			Help: "Fetches answered from the asset cache",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latsar_cache_misses_total",
			Help: "Fetches that fell through to the network",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "latsar_cache_entries",
			Help: "Entries stored in the asset cache",
		},
		[]string{"cache"},
	)

	NotificationsShown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latsar_notifications_shown_total",
			Help: "Notifications handed to the host for display",
		},
		[]string{"tag"},
	)

	NotificationClicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latsar_notification_clicks_total",
			Help: "Notification click events handled",
		},
		[]string{"tag"},
	)

	ClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latsar_client_requests_total",
			Help: "Requests sent to the reminder backend",
		},
		[]string{"operation", "status"},
	)

	GoGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "latsar_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "latsar_go_mem_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)
)

var (
	startTime time.Time
	config    Config
	mu        sync.RWMutex
)

func Init(cfg Config, version, commit, buildDate string) {
	mu.Lock()
	defer mu.Unlock()

	config = cfg
	startTime = time.Now()

	if !cfg.Enabled {
		return
	}

	AppInfo.WithLabelValues(version, commit, buildDate, runtime.Version()).Set(1)

	go updateUptimeLoop()

	if cfg.IncludeRuntime {
		go collectRuntimeMetricsLoop()
	}
}

func updateUptimeLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if !IsEnabled() {
			return
		}
		AppUptime.Set(time.Since(startTime).Seconds())
	}
}

func collectRuntimeMetricsLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		mu.RLock()
		enabled := config.Enabled && config.IncludeRuntime
		mu.RUnlock()
		if !enabled {
			return
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		GoGoroutines.Set(float64(runtime.NumGoroutine()))
		GoMemAllocBytes.Set(float64(m.Alloc))
	}
}

// Handler returns the Prometheus metrics HTTP handler with optional auth
func Handler(cfg Config) http.Handler {
	promHandler := promhttp.Handler()

	if cfg.Token == "" {
		return promHandler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+cfg.Token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		promHandler.ServeHTTP(w, r)
	})
}

// ResponseWriter wraps http.ResponseWriter to capture status and size
type ResponseWriter struct {
	http.ResponseWriter
	Status int
	Size   int
}

func (rw *ResponseWriter) WriteHeader(status int) {
	rw.Status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.Size += n
	return n, err
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		Status:         http.StatusOK,
	}
}

// Middleware records request counts and latency. Requests are labelled with
// route(r), which must map onto a fixed set of names; raw paths would give
// every proxied URL its own series.
func Middleware(cfg Config, route func(*http.Request) string) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == cfg.Endpoint {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			HTTPActiveRequests.Inc()
			defer HTTPActiveRequests.Dec()

			name := "other"
			if route != nil {
				name = route(r)
			}
			rw := NewResponseWriter(w)

			next.ServeHTTP(rw, r)

			HTTPRequestsTotal.WithLabelValues(methodLabel(r.Method), name, strconv.Itoa(rw.Status)).Inc()
			HTTPRequestDuration.WithLabelValues(methodLabel(r.Method), name).Observe(time.Since(start).Seconds())
		})
	}
}

// methodLabel folds unknown methods into one label value.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	}
	return "OTHER"
}

func SetWorkerState(state string) {
	if !IsEnabled() {
		return
	}

	for _, s := range workerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		WorkerState.WithLabelValues(s).Set(v)
	}
}

func RecordWorkerEvent(eventType string, duration time.Duration, err error) {
	if !IsEnabled() {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	WorkerEventsTotal.WithLabelValues(eventType, result).Inc()
	WorkerEventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func RecordCacheHit(cacheName string) {
	if !IsEnabled() {
		return
	}
	CacheHits.WithLabelValues(cacheName).Inc()
}

func RecordCacheMiss(cacheName string) {
	if !IsEnabled() {
		return
	}
	CacheMisses.WithLabelValues(cacheName).Inc()
}

func SetCacheEntries(cacheName string, entries int) {
	if !IsEnabled() {
		return
	}
	CacheEntries.WithLabelValues(cacheName).Set(float64(entries))
}

func RecordNotificationShown(tag string) {
	if !IsEnabled() {
		return
	}
	NotificationsShown.WithLabelValues(tag).Inc()
}

func RecordNotificationClick(tag string) {
	if !IsEnabled() {
		return
	}
	NotificationClicks.WithLabelValues(tag).Inc()
}

// RecordClientRequest counts a backend call. status is the HTTP status,
// or 0 when the request never got a response.
func RecordClientRequest(operation string, status int, err error) {
	if !IsEnabled() {
		return
	}

	label := strconv.Itoa(status)
	if err != nil {
		label = "error"
	}
	ClientRequestsTotal.WithLabelValues(operation, label).Inc()
}

func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return config.Enabled
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return config
}
