// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/latsarcode/latsar/src/cache"
	"github.com/latsarcode/latsar/src/config"
	"github.com/latsarcode/latsar/src/logger"
	"github.com/latsarcode/latsar/src/metrics"
	"github.com/latsarcode/latsar/src/netshare"
	"github.com/latsarcode/latsar/src/notify"
	"github.com/latsarcode/latsar/src/worker"
)

// WorkerPrefix is the path prefix of the host's own worker routes. Those
// never reach the fetch handler.
const WorkerPrefix = "/_worker/"

type Data struct {
	Worker *worker.Worker
	Cache  *cache.Manager
	Tray   *notify.Tray
	Log    logger.Logger

	Version  string
	Origin   *url.URL
	Manifest config.Manifest
	Metrics  metrics.Config

	// Upper bound for push bodies
	MaxPushSize int64
}

func Load(cfg config.Config, w *worker.Worker, manager *cache.Manager, tray *notify.Tray) (*Data, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("web: parse origin: %w", err)
	}
	if !origin.IsAbs() {
		return nil, fmt.Errorf("web: origin %q is not absolute", cfg.Origin)
	}

	return &Data{
		Worker:      w,
		Cache:       manager,
		Tray:        tray,
		Log:         cfg.Log,
		Version:     cfg.Version,
		Origin:      origin,
		Manifest:    cfg.Manifest,
		Metrics:     metrics.GetConfig(),
		MaxPushSize: 4096,
	}, nil
}

// Route names the handler a request is dispatched to. Used as the metrics
// label, so every path outside the fixed routes is "fetch".
func Route(req *http.Request) string {
	switch req.URL.Path {
	case "/healthz":
		return "healthz"
	case "/manifest.webmanifest":
		return "manifest"
	case WorkerPrefix + "push":
		return "worker_push"
	case WorkerPrefix + "notifications":
		return "worker_notifications"
	case WorkerPrefix + "notifications/click":
		return "worker_click"
	}
	if strings.HasPrefix(req.URL.Path, WorkerPrefix) {
		return "worker_unknown"
	}
	return "fetch"
}

func (data *Data) Handler(w http.ResponseWriter, req *http.Request) {
	var err error

	rw := metrics.NewResponseWriter(w)
	rw.Header().Set("Server", config.Software+"/"+data.Version)

	switch req.URL.Path {
	case "/healthz":
		err = data.handleHealthz(rw, req)
	case "/manifest.webmanifest":
		err = data.handleManifest(rw, req)
	case WorkerPrefix + "push":
		err = data.handlePush(rw, req)
	case WorkerPrefix + "notifications":
		err = data.handleNotifications(rw, req)
	case WorkerPrefix + "notifications/click":
		err = data.handleNotificationClick(rw, req)
	default:
		if data.Metrics.Enabled && req.URL.Path == data.Metrics.Endpoint {
			metrics.Handler(data.Metrics).ServeHTTP(rw, req)

		} else if strings.HasPrefix(req.URL.Path, WorkerPrefix) {
			err = fmt.Errorf("%w: %s", netshare.ErrNotFound, req.URL.Path)

		} else {
			err = data.handleFetch(rw, req)
		}
	}

	if err == nil {
		data.Log.HttpRequest(req, rw.Status)

	} else {
		data.Log.HttpError(req, err)

		code, writeErr := data.writeError(rw, req, err)
		if writeErr != nil {
			data.Log.HttpError(req, writeErr)
		}
		data.Log.HttpRequest(req, code)
	}
}
