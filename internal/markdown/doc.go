// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown splits assistant responses into prose and fenced code.
//
// Two independent passes run over the same text:
//
//   - ExtractCodeBlocks scans line by line and returns every terminated
//     triple-backtick region with its language tag.
//   - SplitForDisplay cuts the raw text on every "```" and classifies the
//     pieces by index parity: even pieces are prose, odd pieces are code.
//
// The passes disagree on malformed input (for example a stray unmatched
// fence), and callers rely on each one's exact output, so they are kept
// separate. Layout combines them the way the chat front-ends render a
// message: extraction decides whether a message has code at all, the
// positional split decides what is drawn.
//
// # Usage
//
//	layout := markdown.Layout(reply)
//	for _, seg := range layout.Segments {
//	    if seg.IsCode() {
//	        renderCode(seg.Language, seg.Text)
//	        continue
//	    }
//	    renderProse(seg.Text)
//	}
//
// All functions are pure and safe for concurrent use.
package markdown
