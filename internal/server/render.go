// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"html/template"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/qwenchat/internal/markdown"
	"github.com/jeranaias/qwenchat/internal/session"
)

// ============================================================================
// View Models
// ============================================================================

// partView is one rendered piece of a message.
type partView struct {
	Code     bool
	Language string
	// Seg is the split index posted back by the copy form.
	Seg  int
	HTML template.HTML
}

// messageView is one chat bubble.
type messageView struct {
	Index int
	User  bool
	Label string
	Parts []partView
}

// pageData feeds the index template.
type pageData struct {
	Title       string
	Model       string
	Notice      string
	NoticeError bool
	Messages    []messageView
}

// ============================================================================
// HTML Renderer
// ============================================================================

// htmlRenderer turns transcript messages into safe HTML.
type htmlRenderer struct {
	md        goldmark.Markdown
	policy    *bluemonday.Policy
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

func newHTMLRenderer(codeTheme string) *htmlRenderer {
	style := chromaStyles.Get(codeTheme)
	if style == nil {
		style = chromaStyles.Fallback
	}
	return &htmlRenderer{
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:    bluemonday.UGCPolicy(),
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4)),
		style:     style,
	}
}

// CSS returns the stylesheet for highlighted code.
func (h *htmlRenderer) CSS() ([]byte, error) {
	var buf bytes.Buffer
	if err := h.formatter.WriteCSS(&buf, h.style); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Prose renders markdown to sanitized HTML. Raw HTML from the model is
// dropped by the sanitizer, not escaped by goldmark.
func (h *htmlRenderer) Prose(text string) template.HTML {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(h.policy.SanitizeBytes(buf.Bytes()))
}

// Code highlights one code segment. Unknown languages are guessed.
func (h *htmlRenderer) Code(code, language string) template.HTML {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plainCode(code)
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return plainCode(code)
	}
	return template.HTML(buf.String())
}

func plainCode(code string) template.HTML {
	return template.HTML("<pre><code>" + template.HTMLEscapeString(code) + "</code></pre>")
}

// Message builds the view of transcript entry index.
func (h *htmlRenderer) Message(index int, msg session.Message, assistantName string) messageView {
	view := messageView{Index: index, User: !msg.IsAssistant(), Label: "You"}
	if !msg.IsAssistant() {
		view.Parts = []partView{{HTML: h.Prose(msg.Content)}}
		return view
	}

	view.Label = assistantName
	for _, seg := range markdown.Layout(msg.Content).Segments {
		if seg.IsCode() {
			view.Parts = append(view.Parts, partView{
				Code:     true,
				Language: seg.Language,
				Seg:      seg.Index,
				HTML:     h.Code(seg.Text, seg.Language),
			})
			continue
		}
		view.Parts = append(view.Parts, partView{Seg: seg.Index, HTML: h.Prose(seg.Text)})
	}
	return view
}
