// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package notify holds the notification model and the host surface that
// displays notifications and opens application windows.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notify: notification not found")

// Notification is a single display request. At most one notification per
// non-empty Tag is visible; a newer one with the same tag replaces it.
type Notification struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon,omitempty"`
	Vibrate            []int  `json:"vibrate,omitempty"`
	Tag                string `json:"tag,omitempty"`
	RequireInteraction bool   `json:"requireInteraction"`
	Silent             bool   `json:"silent"`
	Timestamp          int64  `json:"timestamp"`
}

// New stamps a notification with a fresh ID and the current time.
func New(title string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Host is what handlers are allowed to ask of the hosting runtime.
type Host interface {
	// Display shows n, replacing any visible notification with the same tag.
	Display(ctx context.Context, n Notification) error
	// Close dismisses the notification with the given ID.
	Close(ctx context.Context, id string) error
	// FocusOrOpen focuses a window showing path or opens a new one.
	FocusOrOpen(ctx context.Context, path string) error
}
