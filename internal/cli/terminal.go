// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - What the chat loop may assume about stdout.
//
// Replies are rendered with glamour and chroma only when stdout is a
// terminal; piped output gets the raw model text.
package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Render width bounds for replies.
const (
	fallbackWidth = 80
	narrowest     = 40
)

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// stdoutWidth is the terminal width clamped to narrowest, or fallbackWidth
// when stdout has no size.
func stdoutWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	switch {
	case err != nil || width <= 0:
		return fallbackWidth
	case width < narrowest:
		return narrowest
	default:
		return width
	}
}

// WrapWidth is the configured wrap width, or the terminal width when that
// is smaller or nothing is configured.
func WrapWidth(configured int) int {
	width := stdoutWidth()
	if configured > 0 && configured < width {
		return configured
	}
	return width
}

var colorProfile = sync.OnceValue(func() termenv.Profile {
	// https://no-color.org/ wins over FORCE_COLOR.
	switch {
	case os.Getenv("NO_COLOR") != "":
		return termenv.Ascii
	case os.Getenv("FORCE_COLOR") != "":
		return termenv.ANSI256
	case !IsStdoutTTY():
		return termenv.Ascii
	default:
		return termenv.ColorProfile()
	}
})
