// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/jeranaias/qwenchat/internal/config"
	"github.com/jeranaias/qwenchat/internal/ollama"
)

// =============================================================================
// RESPONDER
// =============================================================================

// Responder produces a reply for a single prompt.
type Responder interface {
	// Respond blocks until the model answers or ctx ends.
	Respond(ctx context.Context, prompt string) (string, error)

	// Model names the model that answers.
	Model() string
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, prompt string) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Model reports an empty name.
func (f ResponderFunc) Model() string { return "" }

// New builds the responder selected by cfg.Model.Backend.
func New(cfg *config.Config) (Responder, error) {
	timeout := time.Duration(cfg.Local.TimeoutSecs) * time.Second

	switch cfg.Model.Backend {
	case config.BackendOllama, "":
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      cfg.Local.OllamaURL,
			Timeout:      timeout,
			DefaultModel: cfg.Model.Name,
		})
		return NewOllamaResponder(client, cfg.Model.Name), nil
	case config.BackendOpenAI:
		return NewOpenAIResponder(cfg.Local.OpenAIURL, cfg.Model.Name, timeout)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Model.Backend)
	}
}

// =============================================================================
// OLLAMA BACKEND
// =============================================================================

// OllamaResponder answers through the native Ollama chat endpoint.
type OllamaResponder struct {
	client *ollama.Client
	model  string
}

// NewOllamaResponder creates a responder that sends every prompt to model.
func NewOllamaResponder(client *ollama.Client, model string) *OllamaResponder {
	if model == "" {
		model = client.GetDefaultModel()
	}
	return &OllamaResponder{client: client, model: model}
}

// Respond sends prompt as the only message of a fresh chat.
func (r *OllamaResponder) Respond(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.Chat(ctx, r.model, []ollama.Message{ollama.NewUserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Model returns the model name.
func (r *OllamaResponder) Model() string { return r.model }

// Client exposes the underlying client for health checks and model listing.
func (r *OllamaResponder) Client() *ollama.Client { return r.client }

// =============================================================================
// OPENAI-COMPATIBLE BACKEND
// =============================================================================

// openAIToken is sent as the bearer token. Ollama ignores it but the
// client refuses to start without one.
const openAIToken = "ollama"

// openAIStatusPrefix starts every non-200 error the client reports.
const openAIStatusPrefix = "API returned unexpected status code"

// OpenAIResponder answers through an OpenAI-compatible completion endpoint.
type OpenAIResponder struct {
	llm     llms.Model
	model   string
	timeout time.Duration
}

// NewOpenAIResponder creates a responder for baseURL (for Ollama,
// http://127.0.0.1:11434/v1/). timeout of zero means none.
func NewOpenAIResponder(baseURL, model string, timeout time.Duration) (*OpenAIResponder, error) {
	llm, err := openai.New(
		openai.WithToken(openAIToken),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return &OpenAIResponder{llm: llm, model: model, timeout: timeout}, nil
}

// Respond sends prompt as a single user message.
func (r *OpenAIResponder) Respond(ctx context.Context, prompt string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, r.llm, prompt)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	return out, nil
}

// classifyOpenAI sorts client errors. The client reports status failures
// and bad bodies as plain errors, so anything that is neither a transport
// failure nor a status failure came from a response it could not use.
func classifyOpenAI(err error) *Failure {
	if f := Classify(err); f.Kind == KindTransport {
		return f
	}
	if strings.HasPrefix(err.Error(), openAIStatusPrefix) {
		return &Failure{Kind: KindRejected, Err: err}
	}
	return &Failure{Kind: KindMalformed, Err: err}
}

// Model returns the model name.
func (r *OpenAIResponder) Model() string { return r.model }
