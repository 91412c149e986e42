// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qwenchat/internal/ui/styles"
)

// =============================================================================
// CODE BLOCK RENDERER
// =============================================================================

// DefaultCodeTheme is the chroma style used when none is configured.
const DefaultCodeTheme = "monokai"

// CodeBlock is one code segment ready for terminal display.
type CodeBlock struct {
	Language string
	Code     string
	// Number is the 1-based position among the reply's code blocks; 0 hides it.
	Number   int
	MaxWidth int
	Theme    string
}

// NewCodeBlock creates a code block with default width and theme.
func NewCodeBlock(language, code string) CodeBlock {
	return CodeBlock{
		Language: language,
		Code:     code,
		MaxWidth: 80,
		Theme:    DefaultCodeTheme,
	}
}

// Render draws the block with a header, line numbers and highlighting.
// The code itself is not trimmed, so what is shown is what /copy copies.
func (c CodeBlock) Render() string {
	highlighted := highlightCode(c.Code, c.Language, c.Theme)
	lines := strings.Split(highlighted, "\n")

	lineNumStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)

	rendered := make([]string, len(lines))
	for i, line := range lines {
		rendered[i] = lineNumStyle.Render(strconv.Itoa(i+1)) + line
	}

	maxWidth := c.MaxWidth - 4
	if maxWidth < 20 {
		maxWidth = 20
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(0, 1).
		MaxWidth(maxWidth).
		Render(c.header() + "\n" + strings.Join(rendered, "\n"))
}

// header reads "[1] python" or "[1] code" when no language was given.
func (c CodeBlock) header() string {
	var parts []string
	if c.Number > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true).
			Render("["+strconv.Itoa(c.Number)+"]"))
	}
	lang := c.Language
	if lang == "" {
		lang = "code"
	}
	parts = append(parts, lipgloss.NewStyle().Foreground(styles.Amber).Bold(true).Render(lang))
	return strings.Join(parts, " ")
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// highlightCode applies terminal syntax highlighting. Unknown languages are
// guessed from the code; on any failure the code comes back unchanged.
func highlightCode(code, language, theme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(theme)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}

	return strings.TrimSuffix(buf.String(), "\n")
}
