// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/latsarcode/latsar/src/display"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Terminal is a Host that keeps state in a Tray and prints every
// notification as a box on w. Colors are used only when w is a color
// terminal.
type Terminal struct {
	*Tray

	mu    sync.Mutex
	w     io.Writer
	color bool
	width int
}

func NewTerminal(tray *Tray, w io.Writer) *Terminal {
	t := &Terminal{Tray: tray, w: w, width: 48}

	env := display.Detect(w)
	t.color = env.Mode == display.ModeColor
	if t.color && env.Width > 20 && env.Width-4 < t.width {
		t.width = env.Width - 4
	}

	return t
}

func (t *Terminal) Display(ctx context.Context, n Notification) error {
	if err := t.Tray.Display(ctx, n); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.w, t.Render(n))
	return err
}

func (t *Terminal) FocusOrOpen(ctx context.Context, path string) error {
	if err := t.Tray.FocusOrOpen(ctx, path); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "open %s\n", path)
	return err
}

// Render draws n the way Display prints it.
func (t *Terminal) Render(n Notification) string {
	var meta []string
	if n.Tag != "" {
		meta = append(meta, "tag "+n.Tag)
	}
	if n.RequireInteraction {
		meta = append(meta, "sticky")
	}
	if n.Silent {
		meta = append(meta, "silent")
	}

	if !t.color {
		lines := []string{n.Title, n.Body}
		if len(meta) > 0 {
			lines = append(lines, "("+strings.Join(meta, ", ")+")")
		}
		return strings.Join(lines, "\n")
	}

	content := titleStyle.Render(n.Title) + "\n" + bodyStyle.Width(t.width).Render(n.Body)
	if len(meta) > 0 {
		content += "\n" + metaStyle.Render(strings.Join(meta, " · "))
	}
	return boxStyle.Render(content)
}
