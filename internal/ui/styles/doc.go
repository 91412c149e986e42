// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling shared by the qwenchat line
// loop and terminal UI.
//
// All colors use Lip Gloss AdaptiveColor so they read on both light and
// dark terminals. Theme bundles the styles a renderer needs and records
// the detected color profile.
//
// # Usage
//
//	theme := styles.NewTheme()
//	fmt.Println(theme.AssistantLabel.Render("Qwen:"), reply)
package styles
