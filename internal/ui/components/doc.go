// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components renders chat content for the terminal front-ends.

# Components

Renderer (render.go) - Draws an assistant reply: prose through glamour,
code segments as numbered, syntax-highlighted blocks. Numbering matches
the /copy n command and Ctrl+Y in the terminal UI.

CodeBlock (codeblock.go) - A single highlighted block with line numbers and
a language badge, using Chroma.

Header (header.go) - Title bar with the model name.

StatusBar (statusbar.go) - Bottom bar with key hints and transient status.

# Usage

	r := components.NewRenderer(components.RenderOptions{Markdown: true, WordWrap: 80})
	fmt.Println(r.RenderAssistant(reply))
*/
package components
