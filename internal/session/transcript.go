// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"
)

// =============================================================================
// MESSAGE
// =============================================================================

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAssistant reports whether the model wrote the message.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is an ordered, append-only message list. It is safe for
// concurrent use so a page can render while another request appends.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// Append adds a message, stamping CreatedAt when it is zero.
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = t.now()
	}
	t.messages = append(t.messages, msg)
}

// AppendUser adds a user message.
func (t *Transcript) AppendUser(content string) {
	t.Append(Message{Role: RoleUser, Content: content})
}

// AppendAssistant adds an assistant message.
func (t *Transcript) AppendAssistant(content string) {
	t.Append(Message{Role: RoleAssistant, Content: content})
}

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// At returns the message at index i.
func (t *Transcript) At(i int) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.messages) {
		return Message{}, false
	}
	return t.messages[i], true
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// LastAssistant returns the most recent assistant message.
func (t *Transcript) LastAssistant() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].IsAssistant() {
			return t.messages[i], true
		}
	}
	return Message{}, false
}
