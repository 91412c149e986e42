// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - "qwenchat models": list models on the local Ollama server.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/qwenchat/internal/config"
	"github.com/jeranaias/qwenchat/internal/ollama"
	"github.com/jeranaias/qwenchat/internal/ui/components"
)

// modelsTimeout bounds the /api/tags call; listing never needs long.
const modelsTimeout = 10 * time.Second

// ModelEntry is one row of the models listing.
type ModelEntry struct {
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	SizeHuman     string    `json:"size_human"`
	Family        string    `json:"family,omitempty"`
	ParameterSize string    `json:"parameter_size,omitempty"`
	Quantization  string    `json:"quantization,omitempty"`
	ModifiedAt    time.Time `json:"modified_at"`
	Current       bool      `json:"current"`
}

// ModelsData is the JSON shape of the models command.
type ModelsData struct {
	Server  string       `json:"server"`
	Current string       `json:"current"`
	Models  []ModelEntry `json:"models"`
}

// HandleModels lists models and marks the configured one.
func HandleModels(ctx context.Context, cfg *config.Config, args Args, out io.Writer) error {
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Local.OllamaURL,
		Timeout:      modelsTimeout,
		DefaultModel: cfg.Model.Name,
	})

	data, err := listModels(ctx, client, cfg.Model.Name)
	if err != nil {
		return &CommandError{Command: "models", Action: "list", Reason: "cannot reach " + client.BaseURL(), Err: err}
	}

	if args.JSON {
		return NewJSONResponse("models", data).Write(out)
	}
	writeModelsTable(out, data)
	return nil
}

func listModels(ctx context.Context, client *ollama.Client, current string) (ModelsData, error) {
	infos, err := client.ListModels(ctx)
	if err != nil {
		return ModelsData{}, err
	}

	entries := make([]ModelEntry, 0, len(infos))
	for i := range infos {
		m := &infos[i]
		entries = append(entries, ModelEntry{
			Name:          m.Name,
			Size:          m.Size,
			SizeHuman:     m.FormatSize(),
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
			Quantization:  m.Details.QuantizationLevel,
			ModifiedAt:    m.ModifiedAt,
			Current:       m.Name == current,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return ModelsData{
		Server:  client.BaseURL(),
		Current: current,
		Models:  entries,
	}, nil
}

func writeModelsTable(out io.Writer, data ModelsData) {
	if len(data.Models) == 0 {
		fmt.Fprintf(out, "No models installed on %s.\n", data.Server)
		fmt.Fprintf(out, "Pull one with: ollama pull %s\n", data.Current)
		return
	}

	nameWidth := runewidth.StringWidth("NAME")
	for _, m := range data.Models {
		if w := runewidth.StringWidth(m.Name); w > nameWidth {
			nameWidth = w
		}
	}

	header := "  " + components.PadRight("NAME", nameWidth) + "  " +
		components.PadRight("SIZE", 9) + "  " + components.PadRight("PARAMS", 7) + "  QUANT"
	fmt.Fprintln(out, LabelStyle.Render(header))

	found := false
	for _, m := range data.Models {
		marker := "  "
		if m.Current {
			marker = "* "
			found = true
		}
		fmt.Fprintf(out, "%s%s  %s  %s  %s\n",
			marker,
			components.PadRight(m.Name, nameWidth),
			components.PadRight(m.SizeHuman, 9),
			components.PadRight(m.ParameterSize, 7),
			m.Quantization)
	}

	if !found {
		fmt.Fprintln(out)
		fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf("Configured model %s is not installed. Run: ollama pull %s", data.Current, data.Current)))
	}
}
