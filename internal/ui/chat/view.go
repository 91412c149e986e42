// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qwenchat/internal/session"
)

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) renderChat() string {
	rule := m.theme.Rule.Render(strings.Repeat("-", max(m.width, 1)))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(),
		m.viewport.View(),
		rule,
		m.renderInput(),
		m.statusBar.View(),
	)
}

func (m Model) renderInput() string {
	if m.waiting {
		elapsed := time.Since(m.sentAt).Round(time.Second)
		return m.spinner.View() + " " + m.theme.ThinkingText.Render(fmt.Sprintf("Thinking... (%s)", elapsed))
	}
	return m.input.View()
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) updateViewport() {
	m.viewport.SetContent(m.renderMessages())
}

func (m *Model) renderMessages() string {
	messages := m.transcript.Messages()

	var b strings.Builder
	if len(messages) == 0 && m.lastError == "" {
		b.WriteString(m.theme.Muted.Render("Ask anything. Code blocks in replies are numbered; Ctrl+Y copies the first one."))
		return b.String()
	}

	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg))
	}

	if m.lastError != "" {
		if len(messages) > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.theme.ErrorText.Render(m.lastError))
	}
	return b.String()
}

func (m *Model) renderMessage(msg session.Message) string {
	if msg.IsAssistant() {
		return m.theme.AssistantLabel.Render(m.assistantName+":") + "\n" + m.renderer.RenderAssistant(msg.Content)
	}
	width := m.viewport.Width - 2
	if width < 10 {
		width = 10
	}
	return m.theme.UserLabel.Render("You:") + " " + m.theme.UserText.Width(width).Render(msg.Content)
}
