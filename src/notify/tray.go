// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package notify

import (
	"context"
	"sync"
)

// Tray is an in-memory Host. It keeps the visible notifications and the
// list of paths that were focused or opened.
type Tray struct {
	mu      sync.Mutex
	visible []Notification
	opened  []string
}

func NewTray() *Tray {
	return &Tray{}
}

func (t *Tray) Display(ctx context.Context, n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.Tag != "" {
		for i, v := range t.visible {
			if v.Tag == n.Tag {
				t.visible = append(t.visible[:i], t.visible[i+1:]...)
				break
			}
		}
	}

	t.visible = append(t.visible, n)
	return nil
}

func (t *Tray) Close(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, v := range t.visible {
		if v.ID == id {
			t.visible = append(t.visible[:i], t.visible[i+1:]...)
			return nil
		}
	}

	return ErrNotFound
}

func (t *Tray) FocusOrOpen(ctx context.Context, path string) error {
	t.mu.Lock()
	t.opened = append(t.opened, path)
	t.mu.Unlock()
	return nil
}

// Visible returns the notifications currently shown, oldest first.
func (t *Tray) Visible() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Notification, len(t.visible))
	copy(out, t.visible)
	return out
}

// Lookup returns the visible notification carrying tag.
func (t *Tray) Lookup(tag string) (Notification, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, v := range t.visible {
		if v.Tag == tag {
			return v, true
		}
	}
	return Notification{}, false
}

// Opened returns every path passed to FocusOrOpen, in order.
func (t *Tray) Opened() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.opened))
	copy(out, t.opened)
	return out
}
