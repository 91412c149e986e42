// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen terminal chat for qwenchat.

The Model is a Bubble Tea model with three parts: a viewport holding the
transcript, a single-line text input, and a status bar. Only one request
is in flight at a time; while it runs a spinner replaces the input and
typing is ignored.

# Keys

  - Enter sends the input line ("exit" quits instead)
  - Ctrl+Y copies the first code block of the last reply
  - PgUp/PgDn scroll the transcript
  - Esc/Ctrl+C quit, cancelling any request in flight

A failed request is shown inline as "Error: ..." below the transcript until
the next send. It is never added to the transcript.

# Usage

	m := chat.New(styles.NewTheme(), chat.Options{
		Config:    cfg,
		Responder: responder,
		Clipboard: clipboard.System(),
		Logger:    logger,
	})
	err := chat.Run(ctx, m)
*/
package chat
