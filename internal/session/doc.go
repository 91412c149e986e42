// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds conversation state for the lifetime of one
// front-end session.
//
// Nothing here is persisted: a Transcript is discarded when its process or
// browser session ends, and the model never sees it. Each turn sends only
// the newest prompt.
//
// # Key Types
//
//   - Message: One user or assistant message
//   - Transcript: Ordered, append-only list of messages
//   - Session: A browser session's transcript plus its turn lock
//   - Store: Browser sessions keyed by cookie id, with idle expiry
//
// # Usage
//
// The line loop and terminal UI own a Transcript directly:
//
//	t := session.NewTranscript()
//	t.AppendUser(prompt)
//	t.AppendAssistant(reply)
//
// The web server looks sessions up per request:
//
//	sess, _ := store.GetOrCreate(cookieID)
//	sess.Lock()
//	defer sess.Unlock()
package session
