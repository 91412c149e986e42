// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/jeranaias/qwenchat/internal/ollama"
)

// =============================================================================
// FAILURE CLASSIFICATION
// =============================================================================

// Kind separates failures for diagnostics. Users see the same message
// shape for all of them.
type Kind int

const (
	// KindTransport: the service could not be reached, or the call timed out.
	KindTransport Kind = iota
	// KindMalformed: the service answered but the body had the wrong shape.
	KindMalformed
	// KindRejected: the service answered with an error of its own.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Event is the log message recorded for a failure of this kind.
func (k Kind) Event() string {
	switch k {
	case KindTransport:
		return "INFERENCE_TRANSPORT_FAILED"
	case KindMalformed:
		return "INFERENCE_MALFORMED_RESPONSE"
	default:
		return "INFERENCE_REJECTED"
	}
}

// Failure is a classified inference error.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String() + " failure"
	}
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Classify wraps err in a Failure. A nil err yields nil, and an existing
// Failure is returned as-is.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	return &Failure{Kind: classifyKind(err), Err: err}
}

func classifyKind(err error) Kind {
	var clientErr *ollama.ClientError
	if errors.As(err, &clientErr) {
		switch {
		case clientErr.Type.IsTransport():
			return KindTransport
		case clientErr.Type == ollama.ErrTypeInvalidResponse:
			return KindMalformed
		default:
			return KindRejected
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindTransport
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransport
	}

	if errors.Is(err, openai.ErrEmptyResponse) || errors.Is(err, openai.ErrUnexpectedResponseLength) {
		return KindMalformed
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindMalformed
	}

	return KindRejected
}
