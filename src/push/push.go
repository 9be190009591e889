// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package push turns push messages into reminder notifications and reacts
// to clicks on them.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/latsarcode/latsar/src/logger"
	"github.com/latsarcode/latsar/src/metrics"
	"github.com/latsarcode/latsar/src/notify"
	"github.com/latsarcode/latsar/src/worker"
)

const (
	DefaultTitle = "Scheduled Reminder"
	DefaultBody  = "It is your scheduled notification time (7 AM or 4 PM)."
	DefaultIcon  = "/icon-192x192.png"
	// Tag keeps a single reminder on screen; a new push replaces the old one.
	Tag = "daily-reminder"
	// RootPath is opened when a reminder is clicked.
	RootPath = "/"
)

// Vibrate is the reminder vibration pattern in milliseconds (on, off, on).
var Vibrate = []int{300, 100, 400}

// Payload is the optional JSON object carried by a push message.
type Payload struct {
	Title string
	Body  string
}

// ParsePayload always returns a usable payload: missing, malformed or
// non-object data yields an empty one, and fields that are not strings are
// ignored. The error only says why data was dropped.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return p, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return p, fmt.Errorf("push: payload is not a JSON object: %w", err)
	}

	// Wrong-typed fields behave like absent ones
	_ = json.Unmarshal(raw["title"], &p.Title)
	_ = json.Unmarshal(raw["body"], &p.Body)

	return p, nil
}

// Reminder builds the notification shown for p.
func Reminder(p Payload) notify.Notification {
	title := p.Title
	if title == "" {
		title = DefaultTitle
	}

	body := p.Body
	if body == "" {
		body = DefaultBody
	}

	n := notify.New(title)
	n.Body = body
	n.Icon = DefaultIcon
	n.Vibrate = append([]int(nil), Vibrate...)
	n.Tag = Tag
	n.RequireInteraction = true
	n.Silent = false
	return n
}

type Handler struct {
	Host notify.Host
	Log  logger.Logger
}

func NewHandler(host notify.Host, log logger.Logger) *Handler {
	return &Handler{Host: host, Log: log}
}

// HandlePush shows a reminder for ev. It returns once the host has been
// asked to display it, not when the user interacts with it.
func (h *Handler) HandlePush(ctx context.Context, ev *worker.PushEvent) error {
	p, err := ParsePayload(ev.Data)
	if err != nil {
		h.Log.Debug(err.Error() + ", using defaults")
	}

	n := Reminder(p)
	if err := h.Host.Display(ctx, n); err != nil {
		return fmt.Errorf("push: display %q: %w", n.Tag, err)
	}

	metrics.RecordNotificationShown(n.Tag)
	h.Log.Info("Displayed notification \"" + n.Title + "\" (tag " + n.Tag + ")")
	return nil
}

// HandleClick dismisses the clicked notification and brings the
// application root to the front.
func (h *Handler) HandleClick(ctx context.Context, ev *worker.NotificationClickEvent) error {
	err := h.Host.Close(ctx, ev.Notification.ID)
	if err != nil && !errors.Is(err, notify.ErrNotFound) {
		return fmt.Errorf("push: close notification: %w", err)
	}
	metrics.RecordNotificationClick(ev.Notification.Tag)

	if err := h.Host.FocusOrOpen(ctx, RootPath); err != nil {
		return fmt.Errorf("push: open %s: %w", RootPath, err)
	}

	return nil
}
