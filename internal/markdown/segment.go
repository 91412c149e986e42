// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import "strings"

// Fence is the marker that opens and closes a code region.
const Fence = "```"

// =============================================================================
// TYPES
// =============================================================================

// CodeBlock is a terminated fenced region found by ExtractCodeBlocks.
type CodeBlock struct {
	// Language is the trimmed text after the opening fence. Empty for a bare fence.
	Language string `json:"language"`
	// Code is the content lines between the fences joined with "\n".
	Code string `json:"code"`
}

// SegmentKind classifies a segment for rendering.
type SegmentKind int

const (
	KindProse SegmentKind = iota
	KindCode
)

// String returns the kind name.
func (k SegmentKind) String() string {
	switch k {
	case KindProse:
		return "prose"
	case KindCode:
		return "code"
	default:
		return "unknown"
	}
}

// Segment is one piece of the positional split.
type Segment struct {
	Kind SegmentKind
	// Text is the prose as-is, or the code with its tag line stripped.
	Text string
	// Language is the stripped tag line of a code segment.
	Language string
	// Index is the position in the raw split; its parity matches Kind.
	Index int
}

// IsCode reports whether the segment is code.
func (s Segment) IsCode() bool {
	return s.Kind == KindCode
}

// =============================================================================
// LINE-SCAN EXTRACTION
// =============================================================================

// ExtractCodeBlocks returns the fenced regions of text in order.
//
// A line starting with the fence opens a region, the next such line closes it.
// Marker lines are excluded from the code. A region still open when the input
// ends produces no block.
func ExtractCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	var current []string
	var language string
	inBlock := false

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, Fence) {
			if inBlock {
				blocks = append(blocks, CodeBlock{
					Language: language,
					Code:     strings.Join(current, "\n"),
				})
				current = nil
				inBlock = false
				continue
			}
			inBlock = true
			language = strings.TrimSpace(strings.TrimPrefix(line, Fence))
			continue
		}
		if inBlock {
			current = append(current, line)
		}
	}

	return blocks
}

// =============================================================================
// POSITIONAL SPLIT
// =============================================================================

// Partition splits text on every fence and classifies the pieces by parity.
//
// Empty prose pieces are kept. An odd piece is trimmed, its first line becomes
// Language and the remaining lines form Text. Empty input yields nil.
func Partition(text string) []Segment {
	if text == "" {
		return nil
	}

	parts := strings.Split(text, Fence)
	segments := make([]Segment, 0, len(parts))
	for i, part := range parts {
		if i%2 == 0 {
			segments = append(segments, Segment{Kind: KindProse, Text: part, Index: i})
			continue
		}
		lines := strings.Split(strings.TrimSpace(part), "\n")
		segments = append(segments, Segment{
			Kind:     KindCode,
			Text:     strings.Join(lines[1:], "\n"),
			Language: strings.TrimSpace(lines[0]),
			Index:    i,
		})
	}
	return segments
}

// SplitForDisplay is Partition without blank prose pieces.
func SplitForDisplay(text string) []Segment {
	var segments []Segment
	for _, seg := range Partition(text) {
		if seg.Kind == KindProse && strings.TrimSpace(seg.Text) == "" {
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

// =============================================================================
// LAYOUT
// =============================================================================

// MessageLayout is the render plan for one message.
type MessageLayout struct {
	Segments []Segment
	Blocks   []CodeBlock
}

// HasCode reports whether extraction found any terminated block.
func (l MessageLayout) HasCode() bool {
	return len(l.Blocks) > 0
}

// CodeSegments returns the code segments in display order.
func (l MessageLayout) CodeSegments() []Segment {
	var out []Segment
	for _, seg := range l.Segments {
		if seg.IsCode() {
			out = append(out, seg)
		}
	}
	return out
}

// NthCode returns the nth code segment, counting from 1 in display order.
func (l MessageLayout) NthCode(n int) (Segment, bool) {
	if n < 1 {
		return Segment{}, false
	}
	for _, seg := range l.Segments {
		if !seg.IsCode() {
			continue
		}
		n--
		if n == 0 {
			return seg, true
		}
	}
	return Segment{}, false
}

// Segment returns the segment with the given split index.
func (l MessageLayout) Segment(index int) (Segment, bool) {
	for _, seg := range l.Segments {
		if seg.Index == index {
			return seg, true
		}
	}
	return Segment{}, false
}

// Layout decides how a message is drawn. When extraction finds no block the
// whole text is a single prose segment, otherwise the positional split is used.
func Layout(text string) MessageLayout {
	blocks := ExtractCodeBlocks(text)
	if len(blocks) == 0 {
		if strings.TrimSpace(text) == "" {
			return MessageLayout{}
		}
		return MessageLayout{Segments: []Segment{{Kind: KindProse, Text: text}}}
	}
	return MessageLayout{Segments: SplitForDisplay(text), Blocks: blocks}
}
