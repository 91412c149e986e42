// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qwenchat/internal/ui/styles"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the title bar of the terminal UI.
type Header struct {
	Title     string // "Chat with <Title>"
	ModelName string
	Width     int
	theme     *styles.Theme
}

// NewHeader creates a header.
func NewHeader(theme *styles.Theme, title, model string) *Header {
	return &Header{Title: title, ModelName: model, Width: 80, theme: theme}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the header as a single line.
func (h *Header) View() string {
	title := "Chat with " + h.Title
	gap := h.Width - lipgloss.Width(title) - lipgloss.Width(h.ModelName) - 2
	if gap < 1 {
		return h.theme.Header.Width(h.Width).Render(h.theme.HeaderTitle.Render(TruncateWidth(title, h.Width-2)))
	}
	return h.theme.Header.Width(h.Width).Render(
		h.theme.HeaderTitle.Render(title) + strings.Repeat(" ", gap) + h.theme.Muted.Render(h.ModelName))
}
