// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/latsarcode/latsar/src/cli"
	"github.com/latsarcode/latsar/src/notify"
	"github.com/latsarcode/latsar/src/push"
)

const defaultWatchInterval = 5 * time.Second

var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	watchSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	watchFocusedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	watchBlurredStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	watchHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	watchErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	watchSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82"))
)

type notificationsMsg struct {
	visible []notify.Notification
	err     error
}

type clickedMsg struct {
	tag string
	err error
}

type tickMsg time.Time

// watchModel is the interactive tray: it polls the daemon for visible
// notifications and clicks the selected one on enter.
type watchModel struct {
	server   string
	interval time.Duration
	list     func() ([]notify.Notification, error)
	click    func(tag string) error

	visible  []notify.Notification
	selected int
	status   string
	err      error
}

func newWatchModel(server string, interval time.Duration, list func() ([]notify.Notification, error), click func(string) error) watchModel {
	return watchModel{
		server:   server,
		interval: interval,
		list:     list,
		click:    click,
	}
}

func (m watchModel) refresh() tea.Cmd {
	list := m.list
	return func() tea.Msg {
		visible, err := list()
		return notificationsMsg{visible: visible, err: err}
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) clickSelected() tea.Cmd {
	tag := m.visible[m.selected].Tag
	click := m.click
	return func() tea.Msg {
		return clickedMsg{tag: tag, err: click(tag)}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case notificationsMsg:
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.visible = msg.visible
		if m.selected >= len(m.visible) {
			m.selected = max(len(m.visible)-1, 0)
		}

	case clickedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = "Clicked " + msg.tag + ", opened " + push.RootPath
		return m, m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.visible)-1 {
				m.selected++
			}
		case "r":
			return m, m.refresh()
		case "enter", " ":
			if len(m.visible) > 0 {
				return m, m.clickSelected()
			}
		}
	}

	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(watchTitleStyle.Render("LATSAR") + watchSubtitleStyle.Render(" • "+m.server) + "\n\n")

	if len(m.visible) == 0 {
		b.WriteString(watchSubtitleStyle.Render("No notifications") + "\n")
	}
	for i, n := range m.visible {
		cursor := "  "
		style := watchBlurredStyle
		if i == m.selected {
			cursor = "> "
			style = watchFocusedStyle
		}
		b.WriteString(cursor + style.Render(fmt.Sprintf("%-16s %s", n.Tag, n.Title)) + "\n")
		if i == m.selected && n.Body != "" {
			b.WriteString("    " + n.Body + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + watchSuccessStyle.Render(m.status) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + watchErrorStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	b.WriteString(watchHelpStyle.Render("↑/↓: select • enter: click • r: refresh • q: quit"))
	return b.String()
}

func (a *app) handleWatch(args []string) error {
	interval := defaultWatchInterval

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-i", "--interval":
			i++
			if i >= len(args) {
				return errUsage
			}
			d, err := cli.ParseDuration(args[i])
			if err != nil {
				return fmt.Errorf("interval: %w", err)
			}
			if d <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			interval = d
		default:
			return errUsage
		}
	}

	if a.cfg.Server == "" {
		return fmt.Errorf("server not configured. Run 'latsar-cli config set server URL' first")
	}

	m := newWatchModel(a.cfg.Server, interval, a.fetchNotifications, a.clickNotification)
	p := tea.NewProgram(m, tea.WithInput(a.stdin), tea.WithOutput(a.stdout))
	_, err := p.Run()
	return err
}
