// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != "user" {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}

	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
}

// =============================================================================
// MODEL INFO TESTS
// =============================================================================

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1 MB"},
		{986 * 1024 * 1024, "986 MB"},
		{1024 * 1024 * 1024, "1 GB"},
		{2 * 1024 * 1024 * 1024, "2 GB"},
	}

	for _, tc := range tests {
		m := &ModelInfo{Size: tc.size}
		if got := m.FormatSize(); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL + "/"})
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{Timeout: -time.Second})

	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), DefaultBaseURL)
	}
	if c.GetDefaultModel() != DefaultModel {
		t.Errorf("GetDefaultModel() = %q, want %q", c.GetDefaultModel(), DefaultModel)
	}
	if c.GetConfig().Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", c.GetConfig().Timeout)
	}

	c.SetModel("llama3")
	if c.GetDefaultModel() != "llama3" {
		t.Errorf("SetModel did not apply, got %q", c.GetDefaultModel())
	}
}

func TestClient_Chat_SendsSingleUserMessage(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"model":"qwen2.5-coder:1.5b","message":{"role":"assistant","content":"hi there"},"done":true,"eval_count":4,"eval_duration":1000000000}`))
	})

	resp, err := c.Chat(context.Background(), "", []Message{NewUserMessage("hello")})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if got.Model != DefaultModel {
		t.Errorf("request model = %q, want %q", got.Model, DefaultModel)
	}
	if got.Stream {
		t.Error("request must not stream")
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "hello" {
		t.Errorf("request messages = %+v", got.Messages)
	}
	if resp.Message.Content != "hi there" {
		t.Errorf("Content = %q, want 'hi there'", resp.Message.Content)
	}
	if resp.EvalCount != 4 {
		t.Errorf("EvalCount = %d, want 4", resp.EvalCount)
	}
}

func TestClient_Chat_EmptyContentIsValid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}`))
	})

	resp, err := c.Chat(context.Background(), "m", []Message{NewUserMessage("x")})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Message.Content != "" {
		t.Errorf("Content = %q, want empty", resp.Message.Content)
	}
}

func TestClient_Chat_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{"model":"m","done":true}`},
		{"null message", `{"message":null}`},
		{"not json", `<html>proxy error</html>`},
		{"wrong shape", `{"message":"text"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})

			_, err := c.Chat(context.Background(), "m", []Message{NewUserMessage("x")})
			if !IsMalformed(err) {
				t.Fatalf("IsMalformed(%v) = false", err)
			}
			if !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("errors.Is(err, ErrInvalidResponse) = false")
			}
		})
	}
}

func TestClient_Chat_ModelNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'nope' not found, try pulling it first"}`))
	})

	_, err := c.Chat(context.Background(), "nope", []Message{NewUserMessage("x")})
	if !IsModelNotFound(err) {
		t.Fatalf("IsModelNotFound(%v) = false", err)
	}
	if err.Error() != "model 'nope' not found, try pulling it first" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestClient_Chat_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Chat(context.Background(), "m", []Message{NewUserMessage("x")})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %T", err)
	}
	if clientErr.Type != ErrTypeRejected {
		t.Errorf("Type = %v, want rejected", clientErr.Type)
	}
	if clientErr.Type.IsTransport() {
		t.Error("rejected must not be a transport error")
	}
}

func TestClient_Chat_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url})
	_, err := c.Chat(context.Background(), "m", []Message{NewUserMessage("x")})

	if !IsNotRunning(err) {
		t.Fatalf("IsNotRunning(%v) = false", err)
	}
	if !errors.Is(err, ErrNotRunning) {
		t.Error("errors.Is(err, ErrNotRunning) = false")
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) && !clientErr.Type.IsTransport() {
		t.Error("not running should be a transport error")
	}
}

func TestClient_Chat_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Chat(ctx, "m", []Message{NewUserMessage("x")})
	if !IsTimeout(err) {
		t.Fatalf("IsTimeout(%v) = false", err)
	}
}

func TestClient_CheckRunning(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	})

	if err := c.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() error = %v", err)
	}
}

func TestClient_ListModels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"qwen2.5-coder:1.5b","size":986000000,"details":{"family":"qwen2","parameter_size":"1.5B"}}]}`))
	})

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 1 || models[0].Name != "qwen2.5-coder:1.5b" {
		t.Fatalf("models = %+v", models)
	}
	if models[0].Details.ParameterSize != "1.5B" {
		t.Errorf("ParameterSize = %q", models[0].Details.ParameterSize)
	}
}

func TestErrorType_String(t *testing.T) {
	tests := map[ErrorType]string{
		ErrTypeNotRunning:      "not_running",
		ErrTypeTimeout:         "timeout",
		ErrTypeModelNotFound:   "model_not_found",
		ErrTypeConnection:      "connection",
		ErrTypeInvalidResponse: "invalid_response",
		ErrTypeRejected:        "rejected",
		ErrTypeUnknown:         "unknown",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", typ, got, want)
		}
	}
}
