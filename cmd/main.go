package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentdock/agentdock/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	deps, err := BuildDependencies(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dependencies")
	}
	defer deps.Pool.Close()

	app := server.NewHTTPServer(server.HTTPServerDependencies{
		SessionService:   deps.SessionService,
		AuthController:   deps.AuthController,
		OAuthController:  deps.OAuthController,
		AgentController:  deps.AgentController,
		WidgetController: deps.WidgetController,
	})

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down HTTP server")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Failed to shut down HTTP server")
		}
	}()

	log.Info().Str("address", config.HTTPAddress).Msg("Starting HTTP server")

	if err := app.Listen(config.HTTPAddress); err != nil {
		log.Fatal().Err(err).Msg("HTTP server stopped")
	}
}
