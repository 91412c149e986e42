// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the browser front-end for qwenchat.
//
// Every page is server-rendered: a form posts the prompt, the handler waits
// for the model and redirects back to the transcript.
//
// # Endpoints
//
//   - GET  /              - Transcript and prompt form
//   - POST /chat          - Send one prompt (field "prompt")
//   - POST /copy          - Copy a code block (fields "msg", "seg")
//   - GET  /health        - Model server reachability and session count
//   - GET  /static/...    - Page and code stylesheets
//
// Each browser gets its own transcript, keyed by the qwenchat_session
// cookie. Code blocks are copied to the clipboard of the machine running
// the server.
//
// # Middleware
//
// Requests pass through panic recovery, security headers, zap request
// logging, and per-client rate limiting, in that order.
package server
