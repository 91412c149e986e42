// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/qwenchat/internal/markdown"
)

// =============================================================================
// ASSISTANT REPLY RENDERER
// =============================================================================

// RenderOptions configures a Renderer.
type RenderOptions struct {
	// Markdown enables glamour prose and highlighted code. When false,
	// replies are returned verbatim.
	Markdown bool
	// WordWrap is the prose wrap width.
	WordWrap int
	// CodeTheme is a chroma style name.
	CodeTheme string
}

// Renderer draws assistant replies for the terminal.
type Renderer struct {
	opts  RenderOptions
	prose *glamour.TermRenderer
}

// NewRenderer builds a renderer. If glamour cannot initialize, prose falls
// back to plain text and code blocks are still highlighted.
func NewRenderer(opts RenderOptions) *Renderer {
	if opts.WordWrap <= 0 {
		opts.WordWrap = 80
	}
	if opts.CodeTheme == "" {
		opts.CodeTheme = DefaultCodeTheme
	}

	r := &Renderer{opts: opts}
	if opts.Markdown {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(opts.WordWrap),
		)
		if err == nil {
			r.prose = tr
		}
	}
	return r
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	return r.opts.WordWrap
}

// RenderAssistant draws one reply. Prose and code keep their original
// order; code blocks are numbered from 1.
func (r *Renderer) RenderAssistant(content string) string {
	if !r.opts.Markdown {
		return content
	}

	layout := markdown.Layout(content)
	var b strings.Builder
	number := 0
	for _, seg := range layout.Segments {
		if seg.IsCode() {
			number++
			cb := NewCodeBlock(seg.Language, seg.Text)
			cb.Number = number
			cb.MaxWidth = r.opts.WordWrap
			cb.Theme = r.opts.CodeTheme
			b.WriteString(cb.Render())
			b.WriteString("\n")
			continue
		}
		b.WriteString(r.renderProse(seg.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderProse draws markdown text without code block handling.
func (r *Renderer) RenderProse(text string) string {
	if !r.opts.Markdown {
		return text
	}
	return strings.TrimRight(r.renderProse(text), "\n")
}

func (r *Renderer) renderProse(text string) string {
	if r.prose == nil {
		return text + "\n"
	}
	out, err := r.prose.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}
