// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for qwenchat.
//
// Handles "qwenchat chat" (and plain "qwenchat"): a line loop that sends
// each input line as a single-message conversation and prints the reply.
//
// Every line other than "exit" and an exact "/copy [n]" goes to the model
// as typed.
//
//	/copy [n]           Copy code block n of the last reply (default 1)
//	exit                Exit chat
//	Ctrl+C              Cancel the current request, or exit at the prompt
//	Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/qwenchat/internal/clipboard"
	"github.com/jeranaias/qwenchat/internal/config"
	"github.com/jeranaias/qwenchat/internal/llm"
	"github.com/jeranaias/qwenchat/internal/markdown"
	"github.com/jeranaias/qwenchat/internal/session"
	"github.com/jeranaias/qwenchat/internal/ui/components"
)

// BannerRuleWidth is the width of the dashed rule under the banner.
const BannerRuleWidth = 50

// =============================================================================
// INPUT
// =============================================================================

// LineReader supplies input lines to the chat loop. Prompt returns io.EOF
// or liner.ErrPromptAborted when the user wants to leave.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
}

// ChatCLI provides input history and line editing for interactive chat.
// Arrow keys navigate history; history survives restarts.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI that persists history in historyFile. An
// empty historyFile disables persistence.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// SaveHistory writes history to file with owner-only permissions.
func (c *ChatCLI) SaveHistory() error {
	if c.historyFile == "" {
		return nil
	}
	f, err := os.OpenFile(c.historyFile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.line.WriteHistory(f)
	return err
}

// Prompt reads one line.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory adds a line to the in-memory history.
func (c *ChatCLI) AppendHistory(line string) {
	c.line.AppendHistory(line)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() error {
	saveErr := c.SaveHistory()
	closeErr := c.line.Close()
	return errors.Join(saveErr, closeErr)
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession holds the state of one interactive chat.
type ChatSession struct {
	In  LineReader
	Out io.Writer
	// Stats receives per-turn timing; nil disables it.
	Stats io.Writer

	Responder llm.Responder
	// Renderer draws replies; nil prints them verbatim.
	Renderer  *components.Renderer
	Clipboard clipboard.Writer
	Logger    *zap.Logger

	Title         string
	AssistantName string

	Transcript *session.Transcript

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewChatSession returns a session with an empty transcript and the names
// taken from cfg.
func NewChatSession(cfg *config.Config, in LineReader, out io.Writer, responder llm.Responder) *ChatSession {
	return &ChatSession{
		In:            in,
		Out:           out,
		Responder:     responder,
		Clipboard:     clipboard.System(),
		Logger:        zap.NewNop(),
		Title:         cfg.Model.Title,
		AssistantName: cfg.Model.AssistantName,
		Transcript:    session.NewTranscript(),
	}
}

// CancelTurn aborts the in-flight request, if any, and reports whether
// there was one.
func (s *ChatSession) CancelTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// Run shows the banner and loops until the user leaves or ctx is done.
// Inference failures are printed and the loop continues.
func (s *ChatSession) Run(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}

	fmt.Fprintln(s.Out, BannerStyle.Render(fmt.Sprintf("Chat with %s (type 'exit' to quit)", s.Title)))
	fmt.Fprintln(s.Out, RenderSeparator(BannerRuleWidth))

	for {
		if ctx.Err() != nil {
			s.goodbye()
			return nil
		}

		fmt.Fprintln(s.Out)
		input, err := s.prompt(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(s.Out)
				s.goodbye()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		s.In.AppendHistory(input)

		if strings.EqualFold(input, "exit") {
			s.goodbye()
			return nil
		}

		if m := copyCommand.FindStringSubmatch(input); m != nil {
			s.copyCode(m[1])
			continue
		}

		s.turn(ctx, input)
	}
}

type promptResult struct {
	line string
	err  error
}

// prompt reads one line, giving up when ctx ends. A reader blocked in the
// terminal is left behind; the caller is about to exit.
func (s *ChatSession) prompt(ctx context.Context) (string, error) {
	done := make(chan promptResult, 1)
	go func() {
		line, err := s.In.Prompt("You: ")
		done <- promptResult{line: line, err: err}
	}()

	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *ChatSession) goodbye() {
	fmt.Fprintln(s.Out, "Goodbye!")
}

// turn sends one prompt and prints the reply or the failure.
func (s *ChatSession) turn(ctx context.Context, prompt string) {
	turnCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	s.Transcript.AppendUser(prompt)
	reply := llm.Ask(turnCtx, s.Responder, s.Logger, prompt)

	fmt.Fprintln(s.Out)
	if !reply.OK() {
		fmt.Fprintln(s.Out, ErrorStyle.Render(reply.Display()))
		return
	}

	s.Transcript.AppendAssistant(reply.Content)
	fmt.Fprintf(s.Out, "%s %s\n", AssistantStyle.Render(s.AssistantName+":"), s.render(reply.Content))

	if s.Stats != nil {
		fmt.Fprintln(s.Stats, DimStyle.Render(fmt.Sprintf("[%s | %s]",
			s.Responder.Model(), reply.Duration.Round(time.Millisecond))))
	}
}

func (s *ChatSession) render(content string) string {
	if s.Renderer == nil {
		return content
	}
	rendered := s.Renderer.RenderAssistant(content)
	// Multi-line output starts on its own line.
	if strings.Contains(rendered, "\n") {
		return "\n" + rendered
	}
	return rendered
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// copyCommand matches the only input the loop keeps for itself. Anything
// else starting with "/copy" is an ordinary prompt.
var copyCommand = regexp.MustCompile(`^/copy(?:\s+(\d+))?$`)

// copyCode copies code block arg (1-based, default 1) of the last reply.
func (s *ChatSession) copyCode(arg string) {
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			fmt.Fprintln(s.Out, WarningStyle.Render("Usage: /copy [n], where n is a code block number"))
			return
		}
		n = v
	}

	last, ok := s.Transcript.LastAssistant()
	if !ok {
		fmt.Fprintln(s.Out, WarningStyle.Render("Nothing to copy yet."))
		return
	}

	layout := markdown.Layout(last.Content)
	seg, ok := layout.NthCode(n)
	if !ok {
		count := len(layout.CodeSegments())
		if count == 0 {
			fmt.Fprintln(s.Out, WarningStyle.Render("The last reply has no code blocks."))
		} else {
			fmt.Fprintln(s.Out, WarningStyle.Render(fmt.Sprintf("The last reply has %d code block(s).", count)))
		}
		return
	}

	if s.Clipboard == nil {
		fmt.Fprintln(s.Out, ErrorStyle.Render("Error: clipboard not available"))
		return
	}
	if err := s.Clipboard.Write(seg.Text); err != nil {
		s.Logger.Warn("CLIPBOARD_WRITE_FAILED", zap.Error(err))
		fmt.Fprintln(s.Out, ErrorStyle.Render("Error: "+err.Error()))
		return
	}
	fmt.Fprintln(s.Out, DimStyle.Render(fmt.Sprintf("Copied code block %d to clipboard.", n)))
}

// =============================================================================
// COMMAND HANDLER
// =============================================================================

// HandleChat runs the interactive line loop on the real terminal.
func HandleChat(ctx context.Context, cfg *config.Config, args Args, logger *zap.Logger) error {
	responder, err := llm.New(cfg)
	if err != nil {
		return &CommandError{Command: "chat", Action: "start", Reason: "cannot build model client", Err: err}
	}

	historyFile := cfg.Chat.HistoryFile
	if historyFile == "" {
		if err := config.EnsureConfigDir(); err == nil {
			historyFile, _ = config.PathInConfigDir("chat_history")
		}
	}

	input := NewChatCLI(historyFile)
	defer func() {
		if err := input.Close(); err != nil {
			logger.Warn("history save failed", zap.String("file", historyFile), zap.Error(err))
		}
	}()

	s := NewChatSession(cfg, input, os.Stdout, responder)
	s.Logger = logger
	if !args.Quiet {
		s.Stats = os.Stderr
	}
	if cfg.UI.Markdown && IsStdoutTTY() {
		s.Renderer = components.NewRenderer(components.RenderOptions{
			Markdown:  true,
			WordWrap:  WrapWidth(cfg.UI.WordWrap),
			CodeTheme: cfg.UI.CodeTheme,
		})
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// Ctrl+C while a request is in flight cancels just that request; at the
	// prompt liner sees it as a key. Any other interrupt or SIGTERM ends the
	// loop.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go func() {
		for sig := range sigChan {
			cancelled := s.CancelTurn()
			if cancelled && sig == os.Interrupt {
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[Cancelled]"))
				continue
			}
			logger.Info("chat stopping", zap.String("signal", sig.String()))
			stop()
		}
	}()

	logger.Info("chat started",
		zap.String("model", responder.Model()),
		zap.String("backend", cfg.Model.Backend))
	return s.Run(ctx)
}
