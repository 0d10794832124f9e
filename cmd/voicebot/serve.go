package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coringa/voicebot/internal/api"
	"coringa/voicebot/internal/gateway/discord"
	"coringa/voicebot/internal/health"
)

const (
	healthRefresh   = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(parent context.Context, a *app) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := a.log

	if a.cfg.Discord.Token == "" {
		return errors.New("DISCORD_TOKEN not set")
	}
	dg, err := discordgo.New("Bot " + a.cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	gw := discord.New(dg, a.cfg.Audio.FFmpegPath, log)
	if err := dg.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	defer dg.Close()
	defer gw.Close()

	svc, err := a.buildService(ctx, gw)
	if err != nil {
		return err
	}
	go svc.Conversation().Run(ctx, a.cfg.Conversation.SweepInterval)

	grpcSrv, hs := health.NewGRPCServer()
	health.Update(hs, health.CheckAll(ctx, a.cfg))
	go func() {
		t := time.NewTicker(healthRefresh)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				health.Update(hs, health.CheckAll(ctx, a.cfg))
			}
		}
	}()
	lis, err := net.Listen("tcp", ":"+a.cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Warn("grpc server stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           api.NewRouter(api.NewHandlers(a.cfg, svc, log)),
		ReadHeaderTimeout: 5 * time.Second,
		// Event streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("voicebot started",
		zap.String("http", srv.Addr),
		zap.String("grpc", lis.Addr().String()),
		zap.String("mode", a.cfg.Providers.Mode))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hs.Shutdown()
	if err := svc.Shutdown(sctx); err != nil {
		log.Warn("service shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	log.Info("voicebot stopped")
	return serveErr
}
