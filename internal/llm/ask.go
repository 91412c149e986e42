// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Reply is the outcome of one turn. Exactly one of Content or Failure is
// meaningful: Failure is nil on success.
type Reply struct {
	Content  string
	Failure  *Failure
	Duration time.Duration
}

// OK reports whether the call succeeded.
func (r Reply) OK() bool {
	return r.Failure == nil
}

// Display is the text shown in place of the assistant response.
func (r Reply) Display() string {
	if r.Failure != nil {
		return "Error: " + r.Failure.Error()
	}
	return r.Content
}

// Ask sends prompt to responder and blocks until it answers. Failures are
// classified and logged, never retried.
func Ask(ctx context.Context, responder Responder, logger *zap.Logger, prompt string) Reply {
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	content, err := responder.Respond(ctx, prompt)
	elapsed := time.Since(start)

	fields := []zap.Field{
		zap.String("model", responder.Model()),
		zap.Int("prompt_len", len(prompt)),
		zap.Duration("duration", elapsed),
	}

	if err != nil {
		f := Classify(err)
		level := zapcore.WarnLevel
		if f.Kind == KindMalformed {
			level = zapcore.ErrorLevel
		}
		if ce := logger.Check(level, f.Kind.Event()); ce != nil {
			ce.Write(append(fields, zap.Error(f.Err))...)
		}
		return Reply{Failure: f, Duration: elapsed}
	}

	logger.Info("INFERENCE_OK", append(fields, zap.Int("reply_len", len(content)))...)
	return Reply{Content: content, Duration: elapsed}
}
