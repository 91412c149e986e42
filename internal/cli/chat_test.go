// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/qwenchat/internal/clipboard"
	"github.com/jeranaias/qwenchat/internal/config"
	"github.com/jeranaias/qwenchat/internal/llm"
	"github.com/jeranaias/qwenchat/internal/ollama"
	"github.com/jeranaias/qwenchat/internal/ui/components"
)

// =============================================================================
// FAKES
// =============================================================================

// scriptReader feeds fixed lines, then returns end (io.EOF by default).
type scriptReader struct {
	lines   []string
	end     error
	prompts []string
	history []string
}

func (r *scriptReader) Prompt(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.lines) == 0 {
		if r.end != nil {
			return "", r.end
		}
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) AppendHistory(line string) {
	r.history = append(r.history, line)
}

// fakeResponder records prompts and answers from a function.
type fakeResponder struct {
	mu      sync.Mutex
	prompts []string
	answer  func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeResponder) Respond(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.answer(ctx, prompt)
}

func (f *fakeResponder) Model() string { return "qwen2.5-coder:1.5b" }

func (f *fakeResponder) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func echo() *fakeResponder {
	return &fakeResponder{answer: func(_ context.Context, p string) (string, error) {
		return "echo: " + p, nil
	}}
}

func fixed(reply string) *fakeResponder {
	return &fakeResponder{answer: func(context.Context, string) (string, error) {
		return reply, nil
	}}
}

type harness struct {
	session *ChatSession
	in      *scriptReader
	out     *bytes.Buffer
	clip    *clipboard.Memory
}

func newHarness(responder llm.Responder, lines ...string) *harness {
	in := &scriptReader{lines: lines}
	out := &bytes.Buffer{}
	clip := &clipboard.Memory{}

	s := NewChatSession(config.Default(), in, out, responder)
	s.Clipboard = clip
	return &harness{session: s, in: in, out: out, clip: clip}
}

func (h *harness) run(t *testing.T) string {
	t.Helper()
	require.NoError(t, h.session.Run(context.Background()))
	return plain(h.out.String())
}

const codeReply = "Here:\n```python\nprint(1)\n```\nand\n```go\nfmt.Println(2)\n```\ndone"

// =============================================================================
// LOOP TESTS
// =============================================================================

func TestChat_BannerAndExit(t *testing.T) {
	h := newHarness(echo(), "exit")
	out := h.run(t)

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "Chat with Qwen2.5-coder (type 'exit' to quit)", lines[0])
	assert.Equal(t, strings.Repeat("-", 50), lines[1])
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
	assert.Equal(t, []string{"You: "}, h.in.prompts)
}

func TestChat_ExitIsCaseInsensitiveAndTrimmed(t *testing.T) {
	for _, word := range []string{"EXIT", "  Exit  ", "eXiT"} {
		t.Run(word, func(t *testing.T) {
			r := echo()
			h := newHarness(r, word, "never sent")
			out := h.run(t)
			assert.Contains(t, out, "Goodbye!")
			assert.Empty(t, r.Prompts())
		})
	}
}

func TestChat_ExitMustBeWholeLine(t *testing.T) {
	r := echo()
	h := newHarness(r, "exit now", "exit")
	h.run(t)
	assert.Equal(t, []string{"exit now"}, r.Prompts())
}

func TestChat_ReplyFormat(t *testing.T) {
	r := fixed("Hello there")
	h := newHarness(r, "  hi  ", "exit")
	out := h.run(t)

	assert.Equal(t, []string{"hi"}, r.Prompts())
	assert.Contains(t, out, "\nQwen: Hello there\n")

	msgs := h.session.Transcript.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "Hello there", msgs[1].Content)
	assert.True(t, msgs[1].IsAssistant())
}

func TestChat_EachTurnIsIndependent(t *testing.T) {
	r := echo()
	h := newHarness(r, "first", "second", "exit")
	out := h.run(t)

	assert.Equal(t, []string{"first", "second"}, r.Prompts())
	assert.Contains(t, out, "Qwen: echo: first")
	assert.Contains(t, out, "Qwen: echo: second")
}

func TestChat_BlankLinesSkipped(t *testing.T) {
	r := echo()
	h := newHarness(r, "", "   ", "\t", "real", "exit")
	h.run(t)

	assert.Equal(t, []string{"real"}, r.Prompts())
	assert.Equal(t, []string{"real", "exit"}, h.in.history)
}

func TestChat_EOFSaysGoodbye(t *testing.T) {
	h := newHarness(echo(), "hi")
	out := h.run(t)
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
}

func TestChat_CtrlCAtPromptSaysGoodbye(t *testing.T) {
	h := newHarness(echo())
	h.in.end = liner.ErrPromptAborted
	out := h.run(t)
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
}

func TestChat_ReadErrorIsReturned(t *testing.T) {
	h := newHarness(echo())
	h.in.end = errors.New("tty gone")
	err := h.session.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tty gone")
}

func TestChat_CanceledContextEndsLoop(t *testing.T) {
	r := echo()
	h := newHarness(r, "never sent")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.session.Run(ctx))
	assert.Empty(t, r.Prompts())
	assert.Contains(t, h.out.String(), "Goodbye!")
}

// blockingReader never returns a line, like a terminal nobody types into.
type blockingReader struct {
	waiting chan struct{}
	once    sync.Once
}

func (r *blockingReader) Prompt(string) (string, error) {
	r.once.Do(func() { close(r.waiting) })
	select {}
}

func (r *blockingReader) AppendHistory(string) {}

func TestChat_CancelWhileWaitingAtPrompt(t *testing.T) {
	in := &blockingReader{waiting: make(chan struct{})}
	var out bytes.Buffer
	r := echo()
	s := NewChatSession(config.Default(), in, &out, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-in.waiting
	assert.False(t, s.CancelTurn(), "no turn in flight at the prompt")
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop kept waiting for input after cancel")
	}
	assert.True(t, strings.HasSuffix(plain(out.String()), "Goodbye!\n"))
	assert.Empty(t, r.Prompts())
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestChat_FailureIsPrintedAndLoopContinues(t *testing.T) {
	calls := 0
	r := &fakeResponder{answer: func(_ context.Context, p string) (string, error) {
		calls++
		if calls == 1 {
			return "", ollama.ErrNotRunning
		}
		return "recovered", nil
	}}
	h := newHarness(r, "one", "two", "exit")
	out := h.run(t)

	assert.Contains(t, out, "\nError: Ollama is not running\n")
	assert.NotContains(t, out, "Qwen: Error")
	assert.Contains(t, out, "Qwen: recovered")

	// The failed turn leaves no assistant message behind.
	msgs := h.session.Transcript.Messages()
	require.Len(t, msgs, 3)
	assert.False(t, msgs[0].IsAssistant())
	assert.False(t, msgs[1].IsAssistant())
	assert.Equal(t, "recovered", msgs[2].Content)
}

func TestChat_CancelTurn(t *testing.T) {
	started := make(chan struct{})
	r := &fakeResponder{answer: func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}}
	h := newHarness(r, "slow", "exit")

	go func() {
		<-started
		for !h.session.CancelTurn() {
			time.Sleep(time.Millisecond)
		}
	}()

	out := h.run(t)
	assert.Contains(t, out, "Error: context canceled")
	assert.False(t, h.session.CancelTurn())
}

func TestChat_Stats(t *testing.T) {
	h := newHarness(fixed("ok"), "hi", "exit")
	var stats bytes.Buffer
	h.session.Stats = &stats
	h.run(t)

	assert.Contains(t, plain(stats.String()), "[qwen2.5-coder:1.5b | ")
}

func TestChat_RendererNumbersCodeBlocks(t *testing.T) {
	h := newHarness(fixed(codeReply), "show me", "exit")
	h.session.Renderer = components.NewRenderer(components.RenderOptions{Markdown: true, WordWrap: 60})
	out := h.run(t)

	assert.Contains(t, out, "[1] python")
	assert.Contains(t, out, "[2] go")
	assert.Contains(t, out, "print(1)")
}

// =============================================================================
// SLASH COMMAND TESTS
// =============================================================================

func TestChat_CopyDefaultsToFirstBlock(t *testing.T) {
	h := newHarness(fixed(codeReply), "code please", "/copy", "exit")
	out := h.run(t)

	got, ok := h.clip.Last()
	require.True(t, ok)
	assert.Equal(t, "print(1)", got)
	assert.Contains(t, out, "Copied code block 1 to clipboard.")
}

func TestChat_CopyNth(t *testing.T) {
	h := newHarness(fixed(codeReply), "code please", "/copy 2", "exit")
	h.run(t)

	got, ok := h.clip.Last()
	require.True(t, ok)
	assert.Equal(t, "fmt.Println(2)", got)
}

func TestChat_CopyOutOfRange(t *testing.T) {
	h := newHarness(fixed(codeReply), "code please", "/copy 3", "exit")
	out := h.run(t)

	assert.Equal(t, 0, h.clip.Count())
	assert.Contains(t, out, "The last reply has 2 code block(s).")
}

func TestChat_CopyZero(t *testing.T) {
	h := newHarness(fixed(codeReply), "code please", "/copy 0", "exit")
	out := h.run(t)

	assert.Equal(t, 0, h.clip.Count())
	assert.Equal(t, 1, strings.Count(out, "Usage: /copy [n]"))
}

func TestChat_CopyWithoutCode(t *testing.T) {
	h := newHarness(fixed("just prose"), "hi", "/copy", "exit")
	out := h.run(t)

	assert.Equal(t, 0, h.clip.Count())
	assert.Contains(t, out, "The last reply has no code blocks.")
}

func TestChat_CopyBeforeAnyReply(t *testing.T) {
	r := echo()
	h := newHarness(r, "/copy", "exit")
	out := h.run(t)

	assert.Empty(t, r.Prompts())
	assert.Contains(t, out, "Nothing to copy yet.")
}

func TestChat_CopyClipboardFailure(t *testing.T) {
	h := newHarness(fixed(codeReply), "code", "/copy", "exit")
	h.session.Clipboard = clipboard.WriterFunc(func(string) error {
		return clipboard.ErrUnsupported
	})
	out := h.run(t)

	assert.Contains(t, out, "Error: "+clipboard.ErrUnsupported.Error())
	assert.Contains(t, out, "Goodbye!")
}

func TestChat_OtherSlashInputIsForwarded(t *testing.T) {
	inputs := []string{
		"/help",
		"/history of TCP",
		"/clear",
		"/quit",
		"/copy zero",
		"/copy this function",
		"/COPY",
		"/explain this regex",
	}
	r := echo()
	h := newHarness(r, append(inputs, "exit")...)
	out := h.run(t)

	assert.Equal(t, inputs, r.Prompts())
	assert.Equal(t, 0, h.clip.Count())
	assert.Contains(t, out, "Qwen: echo: /history of TCP")
	assert.Equal(t, 2*len(inputs), h.session.Transcript.Len())
}

func TestChat_CustomNames(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Title = "Llama"
	cfg.Model.AssistantName = "Bot"

	in := &scriptReader{lines: []string{"hi", "exit"}}
	var out bytes.Buffer
	s := NewChatSession(cfg, in, &out, fixed("yo"))
	require.NoError(t, s.Run(context.Background()))

	got := plain(out.String())
	assert.True(t, strings.HasPrefix(got, "Chat with Llama (type 'exit' to quit)\n"))
	assert.Contains(t, got, "Bot: yo")
}
