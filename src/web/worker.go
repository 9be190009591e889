// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/latsarcode/latsar/src/netshare"
	"github.com/latsarcode/latsar/src/notify"
	"github.com/latsarcode/latsar/src/push"
	"github.com/latsarcode/latsar/src/worker"
)

func writeJSON(rw http.ResponseWriter, code int, v any) error {
	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Cache-Control", "no-store")
	rw.WriteHeader(code)
	return json.NewEncoder(rw).Encode(v)
}

// Pattern: /_worker/push
//
// The request body is the raw push message data. An empty body is a push
// without data.
func (data *Data) handlePush(rw http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return netshare.ErrMethodNotAllowed
	}

	body, err := io.ReadAll(http.MaxBytesReader(rw, req.Body, data.MaxPushSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return netshare.ErrPayloadTooLarge
		}
		return fmt.Errorf("%w: %v", netshare.ErrBadRequest, err)
	}
	if len(body) == 0 {
		body = nil
	}

	ev := &worker.PushEvent{Data: body}
	if err := data.Worker.Dispatch(req.Context(), ev).Wait(req.Context()); err != nil {
		return fmt.Errorf("push event: %w", err)
	}

	n, ok := data.Tray.Lookup(push.Tag)
	if !ok {
		return fmt.Errorf("push event: %w: no %s notification visible", netshare.ErrInternal, push.Tag)
	}

	return writeJSON(rw, http.StatusOK, n)
}

// Pattern: /_worker/notifications
func (data *Data) handleNotifications(rw http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return netshare.ErrMethodNotAllowed
	}

	visible := data.Tray.Visible()
	if visible == nil {
		visible = []notify.Notification{}
	}

	return writeJSON(rw, http.StatusOK, visible)
}

// Pattern: /_worker/notifications/click?tag=<tag>
//
// Without a tag the daily reminder is clicked.
func (data *Data) handleNotificationClick(rw http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return netshare.ErrMethodNotAllowed
	}

	tag := req.URL.Query().Get("tag")
	if tag == "" {
		tag = push.Tag
	}

	n, ok := data.Tray.Lookup(tag)
	if !ok {
		return fmt.Errorf("%w: notification %q", netshare.ErrNotFound, tag)
	}

	ev := &worker.NotificationClickEvent{
		Notification: n,
		Action:       req.URL.Query().Get("action"),
	}
	if err := data.Worker.Dispatch(req.Context(), ev).Wait(req.Context()); err != nil {
		return fmt.Errorf("notificationclick event: %w", err)
	}

	rw.Header().Set("Cache-Control", "no-store")
	rw.WriteHeader(http.StatusNoContent)
	return nil
}
