// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/latsarcode/latsar/src/notify"
	"github.com/latsarcode/latsar/src/push"
)

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m watchModel, msg tea.Msg) (watchModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	wm, ok := next.(watchModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return wm, cmd
}

func twoNotifications() []notify.Notification {
	reminder := push.Reminder(push.Payload{Title: "Evening Check-in"})
	other := notify.New("Streak saved")
	other.Tag = "streak"
	other.Body = "Seven days in a row"
	return []notify.Notification{reminder, other}
}

func TestWatchModelSelectAndClick(t *testing.T) {
	var clicked []string
	m := newWatchModel("http://127.0.0.1:8080", time.Second,
		func() ([]notify.Notification, error) { return nil, nil },
		func(tag string) error {
			clicked = append(clicked, tag)
			return nil
		},
	)

	m, _ = update(t, m, notificationsMsg{visible: twoNotifications()})
	view := m.View()
	if !strings.Contains(view, "Evening Check-in") || !strings.Contains(view, "Streak saved") {
		t.Fatalf("view:\n%s", view)
	}

	m, _ = update(t, m, keyDown)
	m, _ = update(t, m, keyDown)
	if m.selected != 1 {
		t.Fatalf("selected %d after moving past the end", m.selected)
	}
	if !strings.Contains(m.View(), "Seven days in a row") {
		t.Errorf("selected body not shown:\n%s", m.View())
	}

	m, cmd := update(t, m, keyEnter)
	if cmd == nil {
		t.Fatal("enter gave no command")
	}
	msg := cmd()
	if c, ok := msg.(clickedMsg); !ok || c.tag != "streak" || c.err != nil {
		t.Fatalf("click result %#v", msg)
	}
	if len(clicked) != 1 || clicked[0] != "streak" {
		t.Errorf("clicked %v", clicked)
	}

	m, cmd = update(t, m, msg)
	if cmd == nil {
		t.Error("no refresh after a click")
	}
	if !strings.Contains(m.View(), "Clicked streak, opened /") {
		t.Errorf("view:\n%s", m.View())
	}

	// The clicked notification is gone on the next poll
	m, _ = update(t, m, notificationsMsg{visible: twoNotifications()[:1]})
	if m.selected != 0 {
		t.Errorf("selection not clamped: %d", m.selected)
	}
	m, _ = update(t, m, keyUp)
	if m.selected != 0 {
		t.Errorf("selected %d after moving before the start", m.selected)
	}
}

func TestWatchModelErrors(t *testing.T) {
	m := newWatchModel("http://127.0.0.1:8080", time.Second,
		func() ([]notify.Notification, error) { return nil, errors.New("connection refused") },
		func(tag string) error { return errors.New("server returned 404 Not Found") },
	)

	msg := m.refresh()()
	m, _ = update(t, m, msg)
	if !strings.Contains(m.View(), "connection refused") {
		t.Errorf("view:\n%s", m.View())
	}

	// Nothing to click
	if _, cmd := update(t, m, keyEnter); cmd != nil {
		t.Error("enter with an empty list must do nothing")
	}

	m, _ = update(t, m, notificationsMsg{visible: twoNotifications()})
	_, cmd := update(t, m, keyEnter)
	m, cmd = update(t, m, cmd())
	if cmd != nil || !strings.Contains(m.View(), "404 Not Found") {
		t.Errorf("click error not shown:\n%s", m.View())
	}
}

func TestWatchModelQuit(t *testing.T) {
	m := newWatchModel("", time.Second, nil, nil)

	for _, key := range []tea.KeyMsg{runeKey('q'), {Type: tea.KeyCtrlC}} {
		_, cmd := update(t, m, key)
		if cmd == nil {
			t.Fatalf("%s gave no command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s did not quit", key)
		}
	}
}

func TestWatchModelAgainstDaemon(t *testing.T) {
	var (
		mu      sync.Mutex
		visible = twoNotifications()
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		switch r.URL.Path {
		case "/_worker/notifications":
			json.NewEncoder(w).Encode(visible)
		case "/_worker/notifications/click":
			tag := r.URL.Query().Get("tag")
			for i, n := range visible {
				if n.Tag == tag {
					visible = append(visible[:i], visible[i+1:]...)
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a, _, _ := newTestApp(t, "", srv.URL)
	m := newWatchModel(srv.URL, time.Second, a.fetchNotifications, a.clickNotification)

	m, _ = update(t, m, m.refresh()())
	if len(m.visible) != 2 {
		t.Fatalf("%d notifications", len(m.visible))
	}

	_, cmd := update(t, m, keyEnter)
	m, cmd = update(t, m, cmd())
	if m.err != nil {
		t.Fatal(m.err)
	}
	m, _ = update(t, m, cmd())

	if len(m.visible) != 1 || m.visible[0].Tag != "streak" {
		t.Errorf("after clicking the reminder: %+v", m.visible)
	}
}

func TestWatchCommandArgs(t *testing.T) {
	a, _, _ := newTestApp(t, "", "")

	if err := a.handleWatch([]string{"-i"}); !errors.Is(err, errUsage) {
		t.Errorf("missing interval: %v", err)
	}
	if err := a.handleWatch([]string{"--bogus"}); !errors.Is(err, errUsage) {
		t.Errorf("unknown flag: %v", err)
	}
	if err := a.handleWatch([]string{"-i", "0"}); err == nil {
		t.Error("zero interval accepted")
	}
	if err := a.handleWatch([]string{"-i", "10s"}); err == nil || !strings.Contains(err.Error(), "server not configured") {
		t.Errorf("no server: %v", err)
	}
}
