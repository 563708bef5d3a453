package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/civicbot/internal/chat"
	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/hazard"
	"github.com/nadzzz/civicbot/internal/llm"
	"github.com/nadzzz/civicbot/internal/orchestrator"
	"github.com/nadzzz/civicbot/internal/persona"
	"github.com/nadzzz/civicbot/internal/transcribe"
	"github.com/nadzzz/civicbot/internal/translate"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg     *config.Config
	catalog *persona.Catalog
	hazards *hazard.Source
	chat    *chat.Service
}

// loadConfig reads the configuration and installs the global logger.
func loadConfig(configFile string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	config.SetupLogging(cfg.Logging)
	return cfg, nil
}

// newApp wires the chat pipeline. The transcriber probes its endpoint, so
// it is only created when voice input is wanted.
func newApp(ctx context.Context, cfg *config.Config, voice bool) (*app, error) {
	catalog, err := persona.Builtin()
	if err != nil {
		return nil, fmt.Errorf("loading personas: %w", err)
	}

	var translator translate.Translator = translate.Nop{}
	if cfg.Translation.Backend == "google" {
		translator = translate.NewGoogle(cfg.Translation)
	}

	model := llm.New(cfg.LLM)
	source := hazard.NewSource(cfg.Hazard)
	orch := orchestrator.New(translator, model, source, orchestrator.WithPivot(cfg.Chat.PivotLanguage))

	opts := chat.Options{
		Hazards:    source,
		Region:     cfg.Hazard.Region,
		SessionTTL: cfg.Chat.SessionTTL,
	}
	if voice {
		opts.Transcriber = transcribe.Load(ctx, cfg.Transcription)
	}

	slog.Info("chat pipeline ready",
		"model", model.Model(),
		"translation", cfg.Translation.Backend,
		"region", source.Region(),
		"voice", voice)

	return &app{
		cfg:     cfg,
		catalog: catalog,
		hazards: source,
		chat:    chat.New(catalog, orch, opts),
	}, nil
}
