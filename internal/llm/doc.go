// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm is the single call path from a front-end to the model.
//
// A Responder turns one prompt into generated text. Ask wraps a Responder,
// classifies whatever goes wrong into a Failure of one of three kinds, logs
// each kind under its own event name, and returns a Reply that every
// front-end displays the same way.
//
// # Backends
//
//   - OllamaResponder: native /api/chat through internal/ollama
//   - OpenAIResponder: Ollama's OpenAI-compatible /v1 endpoint via langchaingo
//
// Each call carries exactly one user message. Earlier turns are never
// replayed to the model.
package llm
