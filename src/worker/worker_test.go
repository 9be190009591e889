// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/latsarcode/latsar/src/logger"
)

type fetcherFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f fetcherFunc) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

func textResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func network(body string) Fetcher {
	return fetcherFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return textResponse(body), nil
	})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRegisterLifecycle(t *testing.T) {
	var order []string
	w := New(Handlers{
		Install: func(ctx context.Context, ev *InstallEvent) error {
			order = append(order, "install")
			return nil
		},
		Activate: func(ctx context.Context, ev *ActivateEvent) error {
			order = append(order, "activate")
			return nil
		},
	}, network(""), logger.Discard())

	if w.State() != StateParsed {
		t.Fatalf("initial state %s", w.State())
	}
	if err := w.Register(context.Background()); err != nil {
		t.Fatal(err)
	}
	if w.State() != StateActivated {
		t.Errorf("state %s", w.State())
	}
	if strings.Join(order, ",") != "install,activate" {
		t.Errorf("order %v", order)
	}

	if err := w.Register(context.Background()); !errors.Is(err, ErrInstallState) {
		t.Errorf("second register: %v", err)
	}
}

func TestRegisterInstallFailure(t *testing.T) {
	activated := false
	installErr := errors.New("fetch /icon-192x192.png: 404")

	w := New(Handlers{
		Install: func(ctx context.Context, ev *InstallEvent) error {
			return installErr
		},
		Activate: func(ctx context.Context, ev *ActivateEvent) error {
			activated = true
			return nil
		},
		Fetch: func(ctx context.Context, ev *FetchEvent) (*http.Response, error) {
			return textResponse("cache"), nil
		},
	}, network("network"), logger.Discard())

	err := w.Register(context.Background())
	if !errors.Is(err, installErr) {
		t.Fatalf("got %v", err)
	}
	if w.State() != StateRedundant {
		t.Errorf("state %s", w.State())
	}
	if activated {
		t.Error("activate ran after failed install")
	}

	req, _ := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	c := w.Dispatch(context.Background(), &FetchEvent{Request: req})
	if err := c.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if body := readBody(t, c.Response()); body != "network" {
		t.Errorf("redundant worker answered from %q", body)
	}
}

func TestRegisterConcurrentInstallsOnce(t *testing.T) {
	var installs atomic.Int32
	w := New(Handlers{
		Install: func(ctx context.Context, ev *InstallEvent) error {
			installs.Add(1)
			time.Sleep(10 * time.Millisecond)
			return nil
		},
	}, network(""), logger.Discard())

	const callers = 8
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		rejected atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := w.Register(context.Background())
			if errors.Is(err, ErrInstallState) {
				rejected.Add(1)
			} else if err != nil {
				t.Error(err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if installs.Load() != 1 {
		t.Errorf("install ran %d times", installs.Load())
	}
	if rejected.Load() != callers-1 {
		t.Errorf("%d registers rejected, want %d", rejected.Load(), callers-1)
	}
	if w.State() != StateActivated {
		t.Errorf("state %s", w.State())
	}
}

func TestRegisterActivateFailureStillActivates(t *testing.T) {
	w := New(Handlers{
		Activate: func(ctx context.Context, ev *ActivateEvent) error {
			return errors.New("delete old cache")
		},
	}, network(""), logger.Discard())

	if err := w.Register(context.Background()); err != nil {
		t.Fatal(err)
	}
	if w.State() != StateActivated {
		t.Errorf("state %s", w.State())
	}
}

func TestFetchBeforeActivationGoesToNetwork(t *testing.T) {
	w := New(Handlers{
		Fetch: func(ctx context.Context, ev *FetchEvent) (*http.Response, error) {
			return textResponse("cache"), nil
		},
	}, network("network"), logger.Discard())

	req, _ := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	c := w.Dispatch(context.Background(), &FetchEvent{Request: req})
	if err := c.Err(); err != nil {
		t.Fatal(err)
	}
	if body := readBody(t, c.Response()); body != "network" {
		t.Errorf("body %q", body)
	}

	w.Register(context.Background())

	c = w.Dispatch(context.Background(), &FetchEvent{Request: req})
	if err := c.Err(); err != nil {
		t.Fatal(err)
	}
	if body := readBody(t, c.Response()); body != "cache" {
		t.Errorf("body %q", body)
	}
}

func TestDispatchNoHandler(t *testing.T) {
	w := New(Handlers{}, network(""), logger.Discard())

	if err := w.Dispatch(context.Background(), &PushEvent{}).Err(); !errors.Is(err, ErrNoHandler) {
		t.Errorf("push: %v", err)
	}
	if err := w.Dispatch(context.Background(), &NotificationClickEvent{}).Err(); !errors.Is(err, ErrNoHandler) {
		t.Errorf("click: %v", err)
	}
}

func TestCompletionWaitsForHandler(t *testing.T) {
	release := make(chan struct{})
	w := New(Handlers{
		Push: func(ctx context.Context, ev *PushEvent) error {
			<-release
			return nil
		},
	}, network(""), logger.Discard())

	c := w.Dispatch(context.Background(), &PushEvent{})

	select {
	case <-c.Done():
		t.Fatal("event resolved before the handler returned")
	case <-time.After(20 * time.Millisecond):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v", err)
	}

	close(release)
	if err := c.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPushHandlersDoNotOverlap(t *testing.T) {
	var running, maxRunning int32
	w := New(Handlers{
		Push: func(ctx context.Context, ev *PushEvent) error {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		},
	}, network(""), logger.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Dispatch(context.Background(), &PushEvent{}).Err()
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("%d push handlers ran at once", maxRunning)
	}
}

func TestClose(t *testing.T) {
	release := make(chan struct{})
	done := int32(0)
	w := New(Handlers{
		Push: func(ctx context.Context, ev *PushEvent) error {
			<-release
			atomic.StoreInt32(&done, 1)
			return nil
		},
	}, network(""), logger.Discard())

	w.Dispatch(context.Background(), &PushEvent{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	if err := w.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&done) != 1 {
		t.Error("Close returned before the in-flight event resolved")
	}

	if err := w.Dispatch(context.Background(), &PushEvent{}).Err(); !errors.Is(err, ErrClosed) {
		t.Errorf("dispatch after close: %v", err)
	}
}
