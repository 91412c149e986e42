// qwenchat - chat with a local Qwen2.5-coder model from the terminal or a browser.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/qwenchat/internal/cli"
	"github.com/jeranaias/qwenchat/internal/clipboard"
	"github.com/jeranaias/qwenchat/internal/config"
	"github.com/jeranaias/qwenchat/internal/llm"
	"github.com/jeranaias/qwenchat/internal/logging"
	"github.com/jeranaias/qwenchat/internal/server"
	"github.com/jeranaias/qwenchat/internal/session"
	"github.com/jeranaias/qwenchat/internal/ui/chat"
	"github.com/jeranaias/qwenchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// sessionSweepInterval is how often idle browser sessions are expired.
const sessionSweepInterval = time.Minute

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])
	if err := run(cmd, args); err != nil {
		cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
		var usage *cli.UsageError
		if errors.As(err, &usage) {
			cli.PrintUsage(os.Stderr)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func run(cmd cli.Command, args cli.Args) error {
	switch cmd {
	case cli.CmdVersion:
		return cli.PrintVersion(os.Stdout, args.JSON)
	case cli.CmdHelp:
		if args.Unknown != "" {
			return &cli.UsageError{Message: fmt.Sprintf("unknown command %q", args.Unknown)}
		}
		cli.PrintUsage(os.Stdout)
		return nil
	}

	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return &cli.CommandError{Command: cmd.String(), Action: "load", Reason: "configuration", Err: err}
	}
	if err := cli.ApplyArgs(cfg, args); err != nil {
		return err
	}

	if cmd == cli.CmdChat {
		// The line loop installs its own handlers so Ctrl+C can cancel one turn.
		logger := newLogger(cfg, defaultLogFile())
		defer func() { _ = logger.Sync() }()
		return cli.HandleChat(context.Background(), cfg, args, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case cli.CmdModels:
		return cli.HandleModels(ctx, cfg, args, os.Stdout)
	case cli.CmdWeb:
		logger := newLogger(cfg, "")
		defer func() { _ = logger.Sync() }()
		return runWeb(ctx, cfg, args, logger)
	case cli.CmdTUI:
		logger := newLogger(cfg, defaultLogFile())
		defer func() { _ = logger.Sync() }()
		return runTUI(ctx, cfg, logger)
	}
	return &cli.UsageError{Message: fmt.Sprintf("unsupported command %q", cmd.String())}
}

// newLogger builds the shared logger. fallbackFile keeps terminal front-ends
// from interleaving log lines with the conversation.
func newLogger(cfg *config.Config, fallbackFile string) *zap.Logger {
	logger := logging.Must(logging.FromConfig(cfg.Logging, fallbackFile))
	return logger.With(zap.String("model", cfg.Model.Name))
}

func defaultLogFile() string {
	if err := config.EnsureConfigDir(); err != nil {
		return ""
	}
	path, err := config.PathInConfigDir("qwenchat.log")
	if err != nil {
		return ""
	}
	return path
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	responder, err := llm.New(cfg)
	if err != nil {
		return &cli.CommandError{Command: "tui", Action: "start", Reason: "cannot build model client", Err: err}
	}

	m := chat.New(styles.NewTheme(), chat.Options{
		Config:    cfg,
		Responder: responder,
		Clipboard: clipboard.System(),
		Logger:    logger,
	})
	logger.Info("TUI_START")
	if err := chat.Run(ctx, m); err != nil {
		return &cli.CommandError{Command: "tui", Action: "run", Err: err}
	}
	return nil
}

// =============================================================================
// WEB
// =============================================================================

func runWeb(ctx context.Context, cfg *config.Config, args cli.Args, logger *zap.Logger) error {
	responder, err := llm.New(cfg)
	if err != nil {
		return &cli.CommandError{Command: "web", Action: "start", Reason: "cannot build model client", Err: err}
	}

	store := session.NewStore(time.Duration(cfg.Web.SessionIdleMins) * time.Minute)
	srv, err := server.New(server.Options{
		Config:    cfg,
		Responder: responder,
		Store:     store,
		Clipboard: clipboard.System(),
		Logger:    logger,
	})
	if err != nil {
		return &cli.CommandError{Command: "web", Action: "start", Err: err}
	}

	go store.Run(ctx, sessionSweepInterval, func(removed int) {
		logger.Info("SESSIONS_EXPIRED", zap.Int("removed", removed), zap.Int("remaining", store.Len()))
	})
	go watchConfig(ctx, cfg, args, srv, logger)

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "Chat with %s at http://%s/\n", cfg.Model.Title, srv.Addr())
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		return &cli.CommandError{Command: "web", Action: "serve", Reason: srv.Addr(), Err: err}
	}
	return nil
}

// watchConfig swaps the responder when the config file changes the model
// or how it is reached. Other settings take effect on restart.
func watchConfig(ctx context.Context, current *config.Config, args cli.Args, srv *server.Server, logger *zap.Logger) {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			logger.Warn("CONFIG_WATCH_DISABLED", zap.Error(err))
			return
		}
		path = p
	}

	err := config.Watch(ctx, path, func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("CONFIG_RELOAD_FAILED", zap.String("path", path), zap.Error(err))
			return
		}
		if applyErr := cli.ApplyArgs(next, args); applyErr != nil {
			logger.Warn("CONFIG_RELOAD_FAILED", zap.String("path", path), zap.Error(applyErr))
			return
		}
		if !current.InferenceChanged(next) {
			return
		}
		responder, err := llm.New(next)
		if err != nil {
			logger.Warn("CONFIG_RELOAD_FAILED", zap.String("path", path), zap.Error(err))
			return
		}
		srv.SetResponder(responder, next)
		logger.Info("CONFIG_RELOADED",
			zap.String("model", next.Model.Name),
			zap.String("backend", next.Model.Backend))
		current = next
	})
	if err != nil {
		logger.Warn("CONFIG_WATCH_DISABLED", zap.String("path", path), zap.Error(err))
	}
}
