// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestRenderHelpers_IncludeIndicators(t *testing.T) {
	tests := []struct {
		name   string
		render func(string) string
		marker string
	}{
		{"success", RenderSuccess, IndicatorSuccess},
		{"error", RenderError, IndicatorError},
		{"warning", RenderWarning, IndicatorWarning},
		{"info", RenderInfo, IndicatorInfo},
	}

	for _, tc := range tests {
		out := tc.render("copied")
		if !strings.Contains(out, tc.marker) || !strings.Contains(out, "copied") {
			t.Errorf("%s: %q missing marker or text", tc.name, out)
		}
	}
}

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	theme.SetSize(120, 40)

	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("SetSize = %dx%d", theme.Width, theme.Height)
	}
	if got := theme.AssistantLabel.Render("Qwen:"); !strings.Contains(got, "Qwen:") {
		t.Errorf("AssistantLabel lost text: %q", got)
	}
}
