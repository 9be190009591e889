// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package display works out how output written to a stream will be seen:
// by a person on a color terminal, as plain text, or by nobody.
package display

import (
	"io"
	"os"

	"golang.org/x/term"
)

type Mode int

const (
	// ModeHeadless: nothing is attached to the stream
	ModeHeadless Mode = iota
	// ModePlain: text without escape sequences
	ModePlain
	// ModeColor: an interactive terminal
	ModeColor
)

func (m Mode) String() string {
	switch m {
	case ModeHeadless:
		return "headless"
	case ModePlain:
		return "plain"
	case ModeColor:
		return "color"
	default:
		return "unknown"
	}
}

type Env struct {
	Mode       Mode
	IsTerminal bool
	NoColor    bool
	IsSSH      bool
	IsDocker   bool
	Width      int
	Height     int
}

// DefaultWidth is used when the terminal size is unknown.
const DefaultWidth = 80

// Detect inspects w. Only an *os.File can be a terminal; any other writer
// is plain, and nil is headless.
func Detect(w io.Writer) Env {
	env := Env{
		Width:   DefaultWidth,
		NoColor: noColor(),
		IsSSH:   os.Getenv("SSH_CLIENT") != "" || os.Getenv("SSH_TTY") != "",
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		env.IsDocker = true
	}

	if f, ok := w.(*os.File); ok && f != nil {
		fd := int(f.Fd())
		env.IsTerminal = term.IsTerminal(fd)
		if env.IsTerminal {
			if cols, rows, err := term.GetSize(fd); err == nil {
				env.Width = cols
				env.Height = rows
			}
		}
	}

	env.Mode = determineMode(w, env)
	return env
}

// noColor honours https://no-color.org and TERM=dumb.
func noColor() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return true
	}
	return os.Getenv("TERM") == "dumb"
}

func determineMode(w io.Writer, env Env) Mode {
	if w == nil || w == io.Discard {
		return ModeHeadless
	}
	if env.IsTerminal && !env.NoColor {
		return ModeColor
	}
	return ModePlain
}

// IsInteractive reports whether a person is likely reading the stream.
func (e Env) IsInteractive() bool {
	return e.IsTerminal
}
