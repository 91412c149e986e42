// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/qwenchat/internal/clipboard"
	"github.com/jeranaias/qwenchat/internal/config"
	"github.com/jeranaias/qwenchat/internal/llm"
	"github.com/jeranaias/qwenchat/internal/markdown"
	"github.com/jeranaias/qwenchat/internal/ollama"
	"github.com/jeranaias/qwenchat/internal/session"
)

// ============================================================================
// Constants
// ============================================================================

// SessionCookie names the cookie carrying the browser session id.
const SessionCookie = "qwenchat_session"

// maxPromptBytes bounds the chat form body.
const maxPromptBytes = 64 << 10

// maxCopyBytes bounds the copy form body, which carries two small integers.
const maxCopyBytes = 1 << 10

// healthTimeout bounds the Ollama probe in /health.
const healthTimeout = 2 * time.Second

// Notices shown once above the transcript.
const (
	noticeCopied   = "Code copied to clipboard!"
	noticeNoCode   = "That code block is no longer available."
	noticeCopyFail = "Error: "
)

//go:embed templates/*.html static/*.css
var assets embed.FS

// ============================================================================
// Server
// ============================================================================

// Options wires the server to its collaborators.
type Options struct {
	Config    *config.Config
	Responder llm.Responder
	Store     *session.Store
	Clipboard clipboard.Writer
	Logger    *zap.Logger
}

// Server is the browser chat front-end.
type Server struct {
	cfg     *config.Config
	router  *http.ServeMux
	server  *http.Server
	store   *session.Store
	clip    clipboard.Writer
	logger  *zap.Logger
	limiter *RateLimiter

	page    *template.Template
	html    *htmlRenderer
	codeCSS []byte
	static  fs.FS

	// mu guards the fields swapped on config reload.
	mu        sync.RWMutex
	responder llm.Responder
	health    *ollama.Client
	backend   string
}

// New builds a server. It does not listen until Start is called.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = session.NewStore(time.Duration(cfg.Web.SessionIdleMins) * time.Minute)
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.System()
	}

	page, err := template.ParseFS(assets, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	renderer := newHTMLRenderer(cfg.UI.CodeTheme)
	codeCSS, err := renderer.CSS()
	if err != nil {
		return nil, fmt.Errorf("code stylesheet: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		router:    http.NewServeMux(),
		store:     store,
		clip:      clip,
		logger:    logger,
		limiter:   NewRateLimiter(cfg.Web.RateLimitRPS, cfg.Web.RateLimitBurst),
		page:      page,
		html:      renderer,
		codeCSS:   codeCSS,
		static:    static,
		responder: opts.Responder,
		health:    newHealthClient(cfg),
		backend:   cfg.Model.Backend,
	}
	s.setupRoutes()
	return s, nil
}

func newHealthClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Local.OllamaURL,
		Timeout:      healthTimeout,
		DefaultModel: cfg.Model.Name,
	})
}

// SetResponder swaps the model backend, typically after a config reload.
// Requests already in flight finish on the old responder.
func (s *Server) SetResponder(responder llm.Responder, cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = responder
	if cfg != nil {
		s.health = newHealthClient(cfg)
		s.backend = cfg.Model.Backend
	}
}

func (s *Server) currentResponder() llm.Responder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.responder
}

func (s *Server) modelName() string {
	if r := s.currentResponder(); r != nil && r.Model() != "" {
		return r.Model()
	}
	return s.cfg.Model.Name
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Web.Host, strconv.Itoa(s.cfg.Web.Port))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /{$}", s.handleIndex)
	s.router.HandleFunc("POST /chat", s.handleChat)
	s.router.HandleFunc("POST /copy", s.handleCopy)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /static/code.css", s.handleCodeCSS)
	s.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(s.static)))
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
	)(s.router)
}

// ============================================================================
// Sessions
// ============================================================================

// session resolves the caller's session, issuing a cookie for a new one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.store.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		s.logger.Debug("SESSION_CREATED", zap.String("session", sess.ID), zap.Int("sessions", s.store.Len()))
	}
	return sess
}

// ============================================================================
// Page
// ============================================================================

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	notice := sess.TakeNotice()
	data := pageData{
		Title:       s.cfg.Model.Title,
		Model:       s.modelName(),
		Notice:      notice,
		NoticeError: strings.HasPrefix(notice, "Error:"),
	}
	for i, msg := range sess.Transcript.Messages() {
		data.Messages = append(data.Messages, s.html.Message(i, msg, s.cfg.Model.AssistantName))
	}

	var buf strings.Builder
	if err := s.page.Execute(&buf, data); err != nil {
		s.logger.Error("PAGE_RENDER_FAILED", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(buf.String()))
}

func (s *Server) handleCodeCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write(s.codeCSS)
}

// ============================================================================
// Chat
// ============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPromptBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sess := s.session(w, r)
	prompt := strings.TrimSpace(r.PostFormValue("prompt"))
	if prompt == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// One turn at a time per session; a second tab waits here.
	sess.Lock()
	defer sess.Unlock()

	sess.Transcript.AppendUser(prompt)

	responder := s.currentResponder()
	if responder == nil {
		sess.SetNotice("Error: no model configured")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	reply := llm.Ask(r.Context(), responder, s.logger.With(zap.String("session", sess.ID)), prompt)
	if reply.OK() {
		sess.Transcript.AppendAssistant(reply.Content)
	} else {
		sess.SetNotice(reply.Display())
	}
	sess.RecordActivity(time.Now())

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ============================================================================
// Copy
// ============================================================================

// errNotCode marks a copy request that does not name a code segment.
var errNotCode = errors.New("not a code segment")

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCopyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	msgIndex, err1 := strconv.Atoi(r.PostFormValue("msg"))
	segIndex, err2 := strconv.Atoi(r.PostFormValue("seg"))
	if err1 != nil || err2 != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sess := s.session(w, r)
	code, err := resolveCode(sess.Transcript, msgIndex, segIndex)
	if err != nil {
		sess.SetNotice(noticeNoCode)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := s.clip.Write(code); err != nil {
		s.logger.Warn("CLIPBOARD_WRITE_FAILED", zap.Error(err))
		sess.SetNotice(noticeCopyFail + err.Error())
	} else {
		s.logger.Info("COPY_CODE",
			zap.String("session", sess.ID),
			zap.Int("msg", msgIndex),
			zap.Int("seg", segIndex),
			zap.Int("bytes", len(code)))
		sess.SetNotice(noticeCopied)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// resolveCode finds code segment segIndex of assistant message msgIndex.
func resolveCode(t *session.Transcript, msgIndex, segIndex int) (string, error) {
	msg, ok := t.At(msgIndex)
	if !ok || !msg.IsAssistant() {
		return "", errNotCode
	}
	seg, ok := markdown.Layout(msg.Content).Segment(segIndex)
	if !ok || !seg.IsCode() {
		return "", errNotCode
	}
	return seg.Text, nil
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Ollama   string `json:"ollama"`
	Model    string `json:"model"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Model:    s.modelName(),
		Sessions: s.store.Len(),
	}

	s.mu.RLock()
	client := s.health
	backend := s.backend
	s.mu.RUnlock()

	if backend != config.BackendOllama {
		health.Ollama = "not_used"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := client.CheckRunning(ctx); err == nil {
			health.Ollama = "ok"
		} else {
			health.Ollama = "unavailable"
			health.Status = "degraded"
		}
	}

	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("JSON_ENCODE_FAILED", zap.Error(err))
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.serve(s.newHTTPServer(), ln)
}

func (s *Server) newHTTPServer() *http.Server {
	// A turn can outlast any fixed write deadline when no request timeout
	// is configured.
	var writeTimeout time.Duration
	if secs := s.cfg.Local.TimeoutSecs; secs > 0 {
		writeTimeout = time.Duration(secs)*time.Second + 30*time.Second
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	return srv
}

func (s *Server) serve(srv *http.Server, ln net.Listener) error {
	s.logger.Info("SERVER_START",
		zap.String("addr", ln.Addr().String()),
		zap.String("model", s.modelName()))

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("SERVER_SHUTDOWN", zap.Int("sessions", s.store.Len()))
	return srv.Shutdown(ctx)
}

// ListenAndServe runs the server until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	srv := s.newHTTPServer()

	errCh := make(chan error, 1)
	go func() { errCh <- s.serve(srv, ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
