// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for qwenchat.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/jeranaias/qwenchat/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdTUI
	CmdWeb
	CmdModels
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdChat:
		return "chat"
	case CmdTUI:
		return "tui"
	case CmdWeb:
		return "web"
	case CmdModels:
		return "models"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model      string
	ConfigPath string
	Quiet      bool
	Verbose    bool
	JSON       bool
	NoMarkdown bool

	// web
	Host string
	Port int

	// Raw holds arguments that were not recognised as flags.
	Raw []string

	// Unknown is set when the first argument named no command.
	Unknown string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `qwenchat - chat with a local Qwen2.5-coder model

Usage:
  qwenchat [flags] [command]

Commands:
  chat       Interactive chat in the terminal (default)
  tui        Full-screen terminal chat
  web        Serve the browser chat UI
  models     List models available to the local Ollama server
  version    Show version information
  help       Show this help

Flags:
  -m, --model NAME     Model to use (overrides config)
  -c, --config PATH    Config file (default: ~/.qwenchat/config.toml)
  -q, --quiet          Minimal output
      --verbose        Debug logging
      --json           JSON output (models, version)
      --no-markdown    Print replies as plain text
  -p, --port PORT      Web UI port (web)
      --host HOST      Web UI bind address (web)

Chat commands:
  /copy [n]            Copy code block n of the last reply (default 1)
  exit                 Leave (any other line is sent to the model)

Examples:
  qwenchat                          Start chatting
  qwenchat -m qwen2.5-coder:7b      Use a larger model
  qwenchat web --port 8080          Browser UI on :8080
  qwenchat models --json            Models as JSON

Version: %s
`

// PrintUsage writes the usage/help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// VersionData is the JSON shape of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(w)
	}
	fmt.Fprintf(w, "qwenchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses command-line arguments (without the program name) and
// returns the command and args. Flags may appear before or after the
// command.
func Parse(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdChat, parsed
	}

	cmd := strings.ToLower(remaining[0])
	parsed.Raw = remaining[1:]

	switch cmd {
	case "chat":
		return CmdChat, parsed
	case "tui":
		return CmdTUI, parsed
	case "web", "serve":
		return CmdWeb, parsed
	case "models", "list":
		return CmdModels, parsed
	case "version", "--version":
		return CmdVersion, parsed
	case "help", "-h", "--help":
		return CmdHelp, parsed
	default:
		parsed.Unknown = remaining[0]
		return CmdHelp, parsed
	}
}

// parseGlobalFlags extracts flags from args and returns the rest.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	// value returns the flag's argument from either --flag=value or
	// --flag value form.
	value := func(i *int, arg, name string) (string, bool) {
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			return v, true
		}
		if arg == name && *i+1 < len(args) {
			*i++
			return args[*i], true
		}
		return "", false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsed.Quiet = true
			continue
		case "--verbose":
			parsed.Verbose = true
			continue
		case "--json":
			parsed.JSON = true
			continue
		case "--no-markdown":
			parsed.NoMarkdown = true
			continue
		}

		if v, ok := value(&i, arg, "--model"); ok {
			parsed.Model = v
		} else if v, ok := value(&i, arg, "-m"); ok {
			parsed.Model = v
		} else if v, ok := value(&i, arg, "--config"); ok {
			parsed.ConfigPath = v
		} else if v, ok := value(&i, arg, "-c"); ok {
			parsed.ConfigPath = v
		} else if v, ok := value(&i, arg, "--host"); ok {
			parsed.Host = v
		} else if v, ok := value(&i, arg, "--port"); ok {
			parsed.Port = parsePort(v)
		} else if v, ok := value(&i, arg, "-p"); ok {
			parsed.Port = parsePort(v)
		} else {
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsed
}

// parsePort returns 0 for anything that is not a number, leaving the
// configured port in place.
func parsePort(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ApplyArgs copies command-line overrides onto cfg and revalidates it.
// Flags win over the config file and environment.
func ApplyArgs(cfg *config.Config, args Args) error {
	if args.Model != "" {
		cfg.Model.Name = args.Model
	}
	if args.Host != "" {
		cfg.Web.Host = args.Host
	}
	if args.Port != 0 {
		cfg.Web.Port = args.Port
	}
	if args.NoMarkdown {
		cfg.UI.Markdown = false
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return &CommandError{Command: "qwenchat", Action: "flags", Reason: "invalid option", Err: err}
	}
	return nil
}
