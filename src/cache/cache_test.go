// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/latsarcode/latsar/src/logger"
)

type origin struct {
	srv    *httptest.Server
	broken atomic.Bool
	hits   atomic.Int32

	mu     sync.Mutex
	status map[string]int
}

func (o *origin) setStatus(path string, code int) {
	o.mu.Lock()
	o.status[path] = code
	o.mu.Unlock()
}

func newOrigin(t *testing.T) *origin {
	o := &origin{status: map[string]int{}}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		if o.broken.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		o.mu.Lock()
		code, ok := o.status[r.URL.Path]
		o.mu.Unlock()
		if ok {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "origin "+r.URL.Path)
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func newManager(t *testing.T, o *origin, storage Storage, version string) *Manager {
	t.Helper()

	fetcher, err := NewHTTPFetcher(o.srv.URL, o.srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	m, err := New(Config{Name: DefaultName, Version: version, Origin: o.srv.URL}, storage, fetcher, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func get(t *testing.T, m *Manager, url string) (int, string) {
	t.Helper()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	resp, err := m.Respond(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestInstallThenServeOffline(t *testing.T) {
	o := newOrigin(t)
	storage := NewMemoryStorage()
	m := newManager(t, o, storage, "1")

	if err := m.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n, _ := m.Entries(context.Background()); n != 2 {
		t.Fatalf("entries = %d", n)
	}

	o.broken.Store(true)

	for _, path := range []string{"/", "/icon-192x192.png"} {
		code, body := get(t, m, o.srv.URL+path)
		if code != http.StatusOK || body != "origin "+path {
			t.Errorf("%s: %d %q", path, code, body)
		}
	}
}

func TestInstallIsAllOrNothing(t *testing.T) {
	o := newOrigin(t)
	o.setStatus("/icon-192x192.png", http.StatusNotFound)
	storage := NewMemoryStorage()
	m := newManager(t, o, storage, "1")

	err := m.Install(context.Background())
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("got %v", err)
	}

	if n, _ := m.Entries(context.Background()); n != 0 {
		t.Errorf("entries = %d after failed install", n)
	}
}

func TestMissGoesToNetworkAndIsNotStored(t *testing.T) {
	o := newOrigin(t)
	m := newManager(t, o, NewMemoryStorage(), "1")
	m.Install(context.Background())

	code, body := get(t, m, o.srv.URL+"/api/items")
	if code != http.StatusOK || body != "origin /api/items" {
		t.Errorf("got %d %q", code, body)
	}

	o.broken.Store(true)
	code, _ = get(t, m, o.srv.URL+"/api/items")
	if code != http.StatusServiceUnavailable {
		t.Errorf("miss was cached: status %d", code)
	}
}

func TestMissNetworkErrorIsReturned(t *testing.T) {
	o := newOrigin(t)
	m := newManager(t, o, NewMemoryStorage(), "1")
	o.srv.Close()

	req, _ := http.NewRequest(http.MethodGet, o.srv.URL+"/other", nil)
	if _, err := m.Respond(context.Background(), req); err == nil {
		t.Fatal("expected network error")
	}
}

func TestNonGetBypassesCache(t *testing.T) {
	o := newOrigin(t)
	m := newManager(t, o, NewMemoryStorage(), "1")
	m.Install(context.Background())

	before := o.hits.Load()
	req, _ := http.NewRequest(http.MethodPost, o.srv.URL+"/", nil)
	resp, err := m.Respond(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if o.hits.Load() != before+1 {
		t.Error("POST / was answered from the cache")
	}
}

func TestActivateDeletesOldVersions(t *testing.T) {
	o := newOrigin(t)
	storage := NewMemoryStorage()
	ctx := context.Background()

	old := newManager(t, o, storage, "1")
	old.Install(ctx)
	storage.Open(ctx, "other-app-1")

	current := newManager(t, o, storage, "2")
	if err := current.Install(ctx); err != nil {
		t.Fatal(err)
	}
	if err := current.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	names, _ := storage.Names(ctx)
	want := map[string]bool{"latsar-code-2": true, "other-app-1": true}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected container %q", n)
		}
	}
}

func TestFailedInstallKeepsPreviousVersion(t *testing.T) {
	o := newOrigin(t)
	storage := NewMemoryStorage()
	ctx := context.Background()

	old := newManager(t, o, storage, "1")
	if err := old.Install(ctx); err != nil {
		t.Fatal(err)
	}

	o.setStatus("/", http.StatusInternalServerError)
	next := newManager(t, o, storage, "2")
	if err := next.Install(ctx); err == nil {
		t.Fatal("expected install error")
	}

	o.broken.Store(true)
	code, body := get(t, old, o.srv.URL+"/")
	if code != http.StatusOK || body != "origin /" {
		t.Errorf("previous version lost: %d %q", code, body)
	}
}

func TestNewVersionedName(t *testing.T) {
	m, err := New(Config{Version: "7", Origin: "http://localhost:5173"}, NewMemoryStorage(), nil, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "latsar-code-7" {
		t.Errorf("Name = %q", m.Name())
	}

	m, _ = New(Config{Origin: "http://localhost:5173"}, NewMemoryStorage(), nil, logger.Discard())
	if m.Name() != DefaultName {
		t.Errorf("Name = %q", m.Name())
	}
}

func TestNewHTTPFetcherRequiresAbsoluteOrigin(t *testing.T) {
	if _, err := NewHTTPFetcher("/relative", nil); err == nil {
		t.Fatal("expected error")
	}

	f, err := NewHTTPFetcher("http://localhost:5173/app/", nil)
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := f.Resolve("/icon-192x192.png")
	if abs != "http://localhost:5173/icon-192x192.png" {
		t.Errorf("Resolve = %q", abs)
	}
}

func TestKeyMatchesKeyFor(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://localhost:5173/icon-192x192.png", nil)
	if Key(req) != KeyFor("http://localhost:5173/icon-192x192.png") {
		t.Errorf("%q != %q", Key(req), KeyFor("http://localhost:5173/icon-192x192.png"))
	}
}

func TestMemoryContainerPutAllReplaces(t *testing.T) {
	ctx := context.Background()
	c, _ := NewMemoryStorage().Open(ctx, "x")

	c.PutAll(ctx, map[string]*Response{"GET a": {Status: 200, Body: []byte("1")}})
	c.PutAll(ctx, map[string]*Response{"GET a": {Status: 200, Body: []byte("2")}})

	r, err := c.Match(ctx, "GET a")
	if err != nil {
		t.Fatal(err)
	}
	if string(r.Body) != "2" {
		t.Errorf("body %q", r.Body)
	}
	if _, err := c.Match(ctx, "GET b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key: %v", err)
	}
}
