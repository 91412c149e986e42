// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/jeranaias/qwenchat/internal/llm"
)

// =============================================================================
// INFERENCE MESSAGES
// =============================================================================

// ReplyMsg carries the outcome of one request back to the model.
type ReplyMsg struct {
	// Turn matches the request that produced the reply. Replies for an
	// older turn are dropped.
	Turn   int
	Prompt string
	Reply  llm.Reply
}

// =============================================================================
// COPY MESSAGES
// =============================================================================

var (
	errNothingToCopy = errors.New("No reply to copy from yet")
	errNoCode        = errors.New("No code block in the last reply")
)

// CopiedMsg reports a clipboard write.
type CopiedMsg struct {
	Block int
	Err   error
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// ClearStatusMsg clears the status bar message if it is still the one
// identified by ID.
type ClearStatusMsg struct {
	ID int
}
