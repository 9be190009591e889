// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package cache precaches the application shell and answers fetches from
// it. The cache is a static offline set: it is filled once at install and
// a miss goes to the network without being stored.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/latsarcode/latsar/src/logger"
	"github.com/latsarcode/latsar/src/metrics"
	"github.com/latsarcode/latsar/src/worker"
)

const DefaultName = "latsar-code"

// DefaultURLs is the precache list: the application root and its icon.
var DefaultURLs = []string{
	"/",
	"/icon-192x192.png",
}

var ErrBadStatus = errors.New("cache: bad response status")

type Config struct {
	// Name is the container base name.
	Name string
	// Version is appended to Name. Activation deletes containers with the
	// same base name and another version.
	Version string
	// Origin resolves relative URLs.
	Origin string
	URLs   []string
}

type Manager struct {
	base    string
	name    string
	origin  *url.URL
	urls    []string
	storage Storage
	fetcher Fetcher
	log     logger.Logger
}

func New(cfg Config, storage Storage, fetcher Fetcher, log logger.Logger) (*Manager, error) {
	base := cfg.Name
	if base == "" {
		base = DefaultName
	}

	name := base
	if cfg.Version != "" {
		name = base + "-" + cfg.Version
	}

	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("cache: parse origin: %w", err)
	}

	urls := cfg.URLs
	if urls == nil {
		urls = DefaultURLs
	}

	return &Manager{
		base:    base,
		name:    name,
		origin:  origin,
		urls:    urls,
		storage: storage,
		fetcher: fetcher,
		log:     log,
	}, nil
}

// Name is the container this manager fills and reads.
func (m *Manager) Name() string {
	return m.name
}

func (m *Manager) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return m.origin.ResolveReference(u).String(), nil
}

// Install fetches every listed URL and stores them together. If any fetch
// fails or returns a non-2xx status, nothing is stored.
func (m *Manager) Install(ctx context.Context) error {
	container, err := m.storage.Open(ctx, m.name)
	if err != nil {
		return fmt.Errorf("cache: open %s: %w", m.name, err)
	}

	entries := make(map[string]*Response, len(m.urls))
	for _, ref := range m.urls {
		abs, err := m.resolve(ref)
		if err != nil {
			return fmt.Errorf("cache: precache %s: %w", ref, err)
		}

		resp, err := m.precache(ctx, abs)
		if err != nil {
			return fmt.Errorf("cache: precache %s: %w", ref, err)
		}
		entries[KeyFor(abs)] = resp
	}

	if err := container.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("cache: store %s: %w", m.name, err)
	}

	metrics.SetCacheEntries(m.name, len(entries))
	m.log.Info(fmt.Sprintf("Precached %d assets into %s", len(entries), m.name))
	return nil
}

func (m *Manager) precache(ctx context.Context, abs string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, abs, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:    abs,
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// Activate deletes older versions of this cache. Containers with other
// base names are left alone.
func (m *Manager) Activate(ctx context.Context) error {
	names, err := m.storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("cache: list containers: %w", err)
	}

	for _, name := range names {
		if name == m.name {
			continue
		}
		if name != m.base && !strings.HasPrefix(name, m.base+"-") {
			continue
		}

		if err := m.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("cache: delete %s: %w", name, err)
		}
		m.log.Info("Deleted old cache " + name)
	}

	return nil
}

// Respond answers req from the cache when possible. On a miss the network
// result is returned exactly as received, errors included.
func (m *Manager) Respond(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodGet {
		container, err := m.storage.Open(ctx, m.name)
		if err != nil {
			return nil, fmt.Errorf("cache: open %s: %w", m.name, err)
		}

		cached, err := container.Match(ctx, Key(req))
		if err == nil {
			metrics.RecordCacheHit(m.name)
			return cached.HTTP(req), nil
		}
		if !errors.Is(err, ErrNotFound) {
			// A broken cache must not take the page down
			m.log.Error(fmt.Errorf("cache: match %s: %w", req.URL, err))
		}
	}

	metrics.RecordCacheMiss(m.name)
	return m.fetcher.Fetch(ctx, req)
}

// Entries reports how many responses the current container holds.
func (m *Manager) Entries(ctx context.Context) (int, error) {
	container, err := m.storage.Open(ctx, m.name)
	if err != nil {
		return 0, err
	}

	keys, err := container.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (m *Manager) HandleInstall(ctx context.Context, ev *worker.InstallEvent) error {
	return m.Install(ctx)
}

func (m *Manager) HandleActivate(ctx context.Context, ev *worker.ActivateEvent) error {
	return m.Activate(ctx)
}

func (m *Manager) HandleFetch(ctx context.Context, ev *worker.FetchEvent) (*http.Response, error) {
	return m.Respond(ctx, ev.Request)
}
