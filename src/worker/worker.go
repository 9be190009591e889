// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package worker dispatches service worker events to their handlers.
//
// Every Dispatch returns a Completion; an event is resolved only when its
// handler returns, which is how handlers keep an event open while they
// wait on storage, the network or the notification host. Handlers of one
// event type never overlap, except fetch handlers, which only read.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/latsarcode/latsar/src/logger"
	"github.com/latsarcode/latsar/src/metrics"
)

var (
	ErrNoHandler    = errors.New("worker: no handler for event")
	ErrInstallState = errors.New("worker: install already attempted")
	ErrClosed       = errors.New("worker: closed")
)

type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// Fetcher performs network requests for fetch events that reach no handler.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Handlers struct {
	Install           func(ctx context.Context, ev *InstallEvent) error
	Activate          func(ctx context.Context, ev *ActivateEvent) error
	Fetch             func(ctx context.Context, ev *FetchEvent) (*http.Response, error)
	Push              func(ctx context.Context, ev *PushEvent) error
	NotificationClick func(ctx context.Context, ev *NotificationClickEvent) error
}

type Worker struct {
	handlers Handlers
	network  Fetcher
	log      logger.Logger

	mu     sync.Mutex
	state  State
	closed bool
	locks  map[string]*sync.Mutex

	inflight sync.WaitGroup
}

func New(handlers Handlers, network Fetcher, log logger.Logger) *Worker {
	return &Worker{
		handlers: handlers,
		network:  network,
		log:      log,
		state:    StateParsed,
		locks: map[string]*sync.Mutex{
			TypeInstall:           {},
			TypeActivate:          {},
			TypePush:              {},
			TypeNotificationClick: {},
		},
	}
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.announce(s)
}

func (w *Worker) announce(s State) {
	metrics.SetWorkerState(string(s))
	w.log.Info("Worker " + string(s))
}

// Register runs install and then activate. A failed install leaves the
// worker redundant; it never activates.
func (w *Worker) Register(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateParsed {
		w.mu.Unlock()
		return ErrInstallState
	}
	w.state = StateInstalling
	w.mu.Unlock()
	w.announce(StateInstalling)

	if err := w.Dispatch(ctx, &InstallEvent{}).Wait(ctx); err != nil {
		w.setState(StateRedundant)
		return fmt.Errorf("install: %w", err)
	}
	w.setState(StateInstalled)

	w.setState(StateActivating)
	if err := w.Dispatch(ctx, &ActivateEvent{}).Wait(ctx); err != nil {
		// An activate failure does not stop activation
		w.log.Error(fmt.Errorf("activate: %w", err))
	}
	w.setState(StateActivated)

	return nil
}

// Dispatch delivers ev to its handler and returns at once.
func (w *Worker) Dispatch(ctx context.Context, ev Event) *Completion {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return settled(nil, ErrClosed)
	}
	w.inflight.Add(1)
	lock := w.locks[ev.Type()]
	w.mu.Unlock()

	c := newCompletion()
	go func() {
		defer w.inflight.Done()

		if lock != nil {
			lock.Lock()
			defer lock.Unlock()
		}

		start := time.Now()
		resp, err := w.run(ctx, ev)
		metrics.RecordWorkerEvent(ev.Type(), time.Since(start), err)
		c.settle(resp, err)
	}()

	return c
}

func (w *Worker) run(ctx context.Context, ev Event) (*http.Response, error) {
	switch ev := ev.(type) {
	case *InstallEvent:
		if w.handlers.Install == nil {
			return nil, nil
		}
		return nil, w.handlers.Install(ctx, ev)

	case *ActivateEvent:
		if w.handlers.Activate == nil {
			return nil, nil
		}
		return nil, w.handlers.Activate(ctx, ev)

	case *FetchEvent:
		// An uncontrolled page talks to the network directly
		if w.handlers.Fetch == nil || w.State() != StateActivated {
			return w.network.Fetch(ctx, ev.Request)
		}
		return w.handlers.Fetch(ctx, ev)

	case *PushEvent:
		if w.handlers.Push == nil {
			return nil, ErrNoHandler
		}
		return nil, w.handlers.Push(ctx, ev)

	case *NotificationClickEvent:
		if w.handlers.NotificationClick == nil {
			return nil, ErrNoHandler
		}
		return nil, w.handlers.NotificationClick(ctx, ev)
	}

	return nil, fmt.Errorf("%w: %s", ErrNoHandler, ev.Type())
}

// Close stops accepting events and waits for in-flight ones to resolve.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
