// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package worker

import (
	"net/http"

	"github.com/latsarcode/latsar/src/notify"
)

const (
	TypeInstall           = "install"
	TypeActivate          = "activate"
	TypeFetch             = "fetch"
	TypePush              = "push"
	TypeNotificationClick = "notificationclick"
)

// Event is anything the worker can dispatch.
type Event interface {
	Type() string
}

type InstallEvent struct{}

func (*InstallEvent) Type() string { return TypeInstall }

type ActivateEvent struct{}

func (*ActivateEvent) Type() string { return TypeActivate }

// FetchEvent carries an intercepted request. Request.URL is absolute.
type FetchEvent struct {
	Request *http.Request
}

func (*FetchEvent) Type() string { return TypeFetch }

// PushEvent carries the raw push message data; Data is nil when the
// message had no payload.
type PushEvent struct {
	Data []byte
}

func (*PushEvent) Type() string { return TypePush }

// NotificationClickEvent references the notification the user clicked.
type NotificationClickEvent struct {
	Notification notify.Notification
	Action       string
}

func (*NotificationClickEvent) Type() string { return TypeNotificationClick }
