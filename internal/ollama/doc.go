// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
//
// Only the synchronous surface is implemented: one chat request in, one
// complete response out. There is no streaming and no model lifecycle
// management; the server is expected to be running already.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role and content
//   - ChatRequest: Request body for /api/chat
//   - ChatResponse: Complete response with message and metrics
//   - ClientError: Typed error separating transport, malformed and rejected failures
//
// # Usage
//
//	client := ollama.NewClient()
//	resp, err := client.Chat(ctx, "qwen2.5-coder:1.5b", []ollama.Message{
//	    ollama.NewUserMessage("Hello"),
//	})
//	if err != nil {
//	    if ollama.IsNotRunning(err) {
//	        // start it with: ollama serve
//	    }
//	    return err
//	}
//	fmt.Println(resp.Message.Content)
package ollama
