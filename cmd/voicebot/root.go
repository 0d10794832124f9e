package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coringa/voicebot/internal/capture"
	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/conversation"
	"coringa/voicebot/internal/events"
	"coringa/voicebot/internal/floor"
	"coringa/voicebot/internal/gateway"
	"coringa/voicebot/internal/llm"
	"coringa/voicebot/internal/logging"
	"coringa/voicebot/internal/orchestrator"
	"coringa/voicebot/internal/sessions"
	"coringa/voicebot/internal/stt"
	"coringa/voicebot/internal/tts"
)

func execute() error {
	return newRootCmd().Execute()
}

type app struct {
	cfg config.Config
	log *zap.Logger
}

func wireApp() (*app, error) {
	// A missing .env is fine.
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "voicebot",
		Short:         "Voice-channel conversational bot",
		Long:          "voicebot joins voice channels, listens to one member at a time, answers with a persona-driven reply and speaks it back.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	a, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		_ = a.log.Sync()
	}

	rootCmd.AddCommand(
		newServeCmd(a),
		newDemoCmd(a),
		newTokenCmd(a),
	)
	return rootCmd
}

// buildService assembles the conversation pipeline. gw may be nil when only
// text replies are needed.
func (a *app) buildService(ctx context.Context, gw gateway.Gateway) (*orchestrator.Service, error) {
	catalog, err := conversation.LoadCatalog(a.cfg.Conversation.PersonaFile)
	if err != nil {
		return nil, err
	}
	convo := conversation.NewStore(catalog, conversation.Options{
		HistoryCap:     a.cfg.Conversation.HistoryCap,
		TTL:            a.cfg.Conversation.TTL,
		DefaultPersona: a.cfg.Conversation.DefaultPersona,
	}, a.log)

	gen, err := llm.NewFromConfig(ctx, a.cfg.Providers, a.log)
	if err != nil {
		return nil, fmt.Errorf("generation chain: %w", err)
	}
	scratch, err := tts.NewScratch(a.cfg.Audio.ScratchDir)
	if err != nil {
		return nil, err
	}
	synth := tts.NewFromConfig(a.cfg.Providers, scratch, a.log)

	reg := sessions.NewRegistry(a.log)
	pipe := capture.New(reg, stt.NewFromConfig(a.cfg.Providers, a.log), capture.OptionsFromConfig(a.cfg), a.log)

	return orchestrator.New(orchestrator.Deps{
		Registry:     reg,
		Gateway:      gw,
		Capture:      pipe,
		Conversation: convo,
		Generator:    gen,
		Synthesizer:  synth,
		Events:       events.NewStore(),
	}, floor.OptionsFromConfig(a.cfg), orchestrator.OptionsFromConfig(a.cfg), a.log), nil
}
