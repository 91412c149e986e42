// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/qwenchat/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is a key hint shown in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// DefaultShortcuts are the terminal UI's key bindings.
var DefaultShortcuts = []Shortcut{
	{Key: "Enter", Desc: "send"},
	{Key: "Ctrl+Y", Desc: "copy code"},
	{Key: "Esc", Desc: "quit"},
}

// StatusBar shows a transient message, or key hints when there is none.
type StatusBar struct {
	Message   string
	Shortcuts []Shortcut
	Width     int
	theme     *styles.Theme
}

// NewStatusBar creates a status bar with the default shortcuts.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Shortcuts: DefaultShortcuts, Width: 80, theme: theme}
}

// SetWidth updates the bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the bar.
func (s *StatusBar) View() string {
	var content string
	if s.Message != "" {
		content = s.Message
	} else {
		hints := make([]string, 0, len(s.Shortcuts))
		for _, sc := range s.Shortcuts {
			hints = append(hints, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
		}
		content = strings.Join(hints, "  ")
	}
	return s.theme.StatusBar.Width(s.Width).Render(content)
}
