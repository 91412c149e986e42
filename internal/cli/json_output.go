// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - --json envelope for scripting (models, version, errors).
package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is what every --json command writes: either Data or Error
// is set, never both.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Command   string  `json:"command,omitempty"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewJSONResponse wraps a command result.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{Success: true, Command: command, Data: data, Timestamp: stamp()}
}

// NewJSONErrorResponse wraps a command failure.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{Command: command, Error: &msg, Timestamp: stamp()}
}

// Write encodes the response to w, indented for humans reading pipes.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
