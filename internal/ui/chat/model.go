// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/qwenchat/internal/clipboard"
	"github.com/jeranaias/qwenchat/internal/config"
	"github.com/jeranaias/qwenchat/internal/llm"
	"github.com/jeranaias/qwenchat/internal/markdown"
	"github.com/jeranaias/qwenchat/internal/session"
	"github.com/jeranaias/qwenchat/internal/ui/components"
	"github.com/jeranaias/qwenchat/internal/ui/styles"
)

// statusTTL is how long a status bar message stays up.
const statusTTL = 3 * time.Second

// Layout: header + viewport + rule + input + status bar.
const (
	headerHeight    = 1
	inputAreaHeight = 2
	statusBarHeight = 1
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options wires the model to its collaborators.
type Options struct {
	Config    *config.Config
	Responder llm.Responder
	Clipboard clipboard.Writer
	Logger    *zap.Logger
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme  *styles.Theme
	keyMap KeyMap

	width  int
	height int
	ready  bool

	responder     llm.Responder
	clip          clipboard.Writer
	logger        *zap.Logger
	renderOpts    components.RenderOptions
	renderer      *components.Renderer
	assistantName string

	transcript *session.Transcript

	// UI Components
	viewport  viewport.Model
	input     textinput.Model
	spinner   spinner.Model
	header    *components.Header
	statusBar *components.StatusBar

	// In-flight request
	waiting   bool
	turn      int
	sentAt    time.Time
	cancel    context.CancelFunc
	lastError string

	statusID int
}

// New creates a chat model.
func New(theme *styles.Theme, opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.System()
	}

	ti := textinput.New()
	ti.Prompt = "You: "
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Placeholder = "What would you like to know?"
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)

	// ASCII frames render everywhere.
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	renderOpts := components.RenderOptions{
		Markdown:  cfg.UI.Markdown,
		WordWrap:  cfg.UI.WordWrap,
		CodeTheme: cfg.UI.CodeTheme,
	}

	modelName := cfg.Model.Name
	if opts.Responder != nil && opts.Responder.Model() != "" {
		modelName = opts.Responder.Model()
	}

	return Model{
		theme:         theme,
		keyMap:        DefaultKeyMap(),
		responder:     opts.Responder,
		clip:          clip,
		logger:        logger,
		renderOpts:    renderOpts,
		renderer:      components.NewRenderer(renderOpts),
		assistantName: cfg.Model.AssistantName,
		transcript:    session.NewTranscript(),
		viewport:      vp,
		input:         ti,
		spinner:       sp,
		header:        components.NewHeader(theme, cfg.Model.Title, modelName),
		statusBar:     components.NewStatusBar(theme),
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case ReplyMsg:
		return m.handleReply(msg)

	case CopiedMsg:
		return m.handleCopied(msg)

	case ClearStatusMsg:
		if msg.ID == m.statusID {
			m.statusBar.Message = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateViewport()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.renderChat()
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	viewportHeight := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	viewportWidth := m.width
	if viewportWidth < 1 {
		viewportWidth = 1
	}
	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight

	inputWidth := m.width - len(m.input.Prompt) - 2
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.theme.SetSize(m.width, m.height)
	m.header.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)

	// Re-wrap replies to the new width.
	opts := m.renderOpts
	if wrap := m.width - 4; wrap > 20 && (opts.WordWrap <= 0 || wrap < opts.WordWrap) {
		opts.WordWrap = wrap
	}
	m.renderer = components.NewRenderer(opts)

	m.updateViewport()
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m.quit()

	case key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keyMap.Copy):
		return m, m.copyCode(1)
	}

	// The single request in flight owns the input.
	if m.waiting {
		return m, nil
	}

	if key.Matches(msg, m.keyMap.Submit) {
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return m, tea.Quit
}

// =============================================================================
// SENDING
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return m, nil
	}
	if strings.EqualFold(prompt, "exit") {
		return m.quit()
	}

	m.input.Reset()
	m.lastError = ""
	m.transcript.AppendUser(prompt)

	if m.responder == nil {
		m.lastError = "Error: no model configured"
		m.updateViewport()
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.waiting = true
	m.turn++
	m.sentAt = time.Now()
	m.input.Blur()
	m.updateViewport()
	m.viewport.GotoBottom()

	m.logger.Debug("tui request", zap.Int("turn", m.turn), zap.Int("prompt_len", len(prompt)))
	return m, tea.Batch(askCmd(ctx, m.responder, m.logger, m.turn, prompt), m.spinner.Tick)
}

// askCmd runs one request off the update loop.
func askCmd(ctx context.Context, responder llm.Responder, logger *zap.Logger, turn int, prompt string) tea.Cmd {
	return func() tea.Msg {
		return ReplyMsg{
			Turn:   turn,
			Prompt: prompt,
			Reply:  llm.Ask(ctx, responder, logger, prompt),
		}
	}
}

func (m Model) handleReply(msg ReplyMsg) (tea.Model, tea.Cmd) {
	if !m.waiting || msg.Turn != m.turn {
		return m, nil
	}

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.waiting = false

	if msg.Reply.OK() {
		m.transcript.AppendAssistant(msg.Reply.Content)
	} else {
		m.lastError = msg.Reply.Display()
	}

	m.input.Focus()
	m.updateViewport()
	m.viewport.GotoBottom()
	return m, textinput.Blink
}

// =============================================================================
// COPY
// =============================================================================

// copyCode writes code block n of the last reply to the clipboard.
func (m Model) copyCode(n int) tea.Cmd {
	last, ok := m.transcript.LastAssistant()
	if !ok {
		return func() tea.Msg { return CopiedMsg{Block: n, Err: errNothingToCopy} }
	}
	seg, ok := markdown.Layout(last.Content).NthCode(n)
	if !ok {
		return func() tea.Msg { return CopiedMsg{Block: n, Err: errNoCode} }
	}

	clip := m.clip
	text := seg.Text
	return func() tea.Msg {
		return CopiedMsg{Block: n, Err: clip.Write(text)}
	}
}

func (m Model) handleCopied(msg CopiedMsg) (tea.Model, tea.Cmd) {
	var text string
	switch {
	case msg.Err == nil:
		text = "Copied code block " + strconv.Itoa(msg.Block) + " to clipboard"
	case errors.Is(msg.Err, errNothingToCopy), errors.Is(msg.Err, errNoCode):
		text = msg.Err.Error()
	default:
		m.logger.Warn("CLIPBOARD_WRITE_FAILED", zap.Error(msg.Err))
		text = "Error: " + msg.Err.Error()
	}
	return m.setStatus(text)
}

func (m Model) setStatus(text string) (tea.Model, tea.Cmd) {
	m.statusID++
	id := m.statusID
	m.statusBar.Message = text
	return m, tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return ClearStatusMsg{ID: id}
	})
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Transcript returns the conversation shown in the viewport.
func (m Model) Transcript() *session.Transcript {
	return m.transcript
}

// Waiting reports whether a request is in flight.
func (m Model) Waiting() bool {
	return m.waiting
}

// LastError returns the inline error text, or "".
func (m Model) LastError() string {
	return m.lastError
}

// Status returns the status bar message, or "".
func (m Model) Status() string {
	return m.statusBar.Message
}
