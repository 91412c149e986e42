// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the line-oriented front-end
// for qwenchat.
//
// # Key Types
//
//   - Command: the subcommand selected on the command line
//   - Args: parsed global and command-specific flags
//   - ChatSession: the interactive "You:" line loop
//   - LineReader: input source for ChatSession (liner in production)
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	switch cmd {
//	case cli.CmdChat:
//	    return cli.HandleChat(ctx, cfg, args, logger)
//	case cli.CmdModels:
//	    return cli.HandleModels(ctx, cfg, args, os.Stdout)
//	}
//
// # Commands Overview
//
//   - chat (default): interactive line loop
//   - tui: full-screen terminal UI
//   - web: browser chat UI
//   - models: list local models
//   - version, help
package cli
