package main

import (
	"context"
	"net/http"
	"time"

	"github.com/agentdock/agentdock/internal/auth"
	"github.com/agentdock/agentdock/internal/controllers"
	"github.com/agentdock/agentdock/internal/managers"
	"github.com/agentdock/agentdock/internal/storage/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Dependencies contains everything the HTTP server needs, fully wired.
type Dependencies struct {
	Pool             *pgxpool.Pool
	SessionService   *auth.SessionService
	AuthController   *controllers.AuthController
	OAuthController  *controllers.OAuthController
	AgentController  *controllers.AgentController
	WidgetController *controllers.WidgetController
}

// BuildDependencies creates and wires up all API dependencies.
func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	log.Info().Msg("Building API dependencies")

	pool, err := postgres.NewPool(ctx, config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := postgres.Bootstrap(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	userStore := postgres.NewUserStore(pool)
	agentStore := postgres.NewAgentStore(pool)
	widgetStore := postgres.NewWidgetStore(pool)
	tokenStore := postgres.NewOAuthTokenStore(pool)

	sessionService := auth.NewSessionService(config.SessionSecret, config.SessionTTL())

	providerHTTPClient := &http.Client{Timeout: 15 * time.Second}

	registry := managers.NewProviderRegistry(managers.ProviderRegistryDependencies{
		Config:     config.ProviderConfig(),
		TokenStore: tokenStore,
		HTTPClient: providerHTTPClient,
	})

	clientProvider := managers.NewOAuthHTTPClientProvider(registry)
	connectionTester := managers.NewConnectionTester(registry, clientProvider)

	agentService := managers.NewAgentService(agentStore)
	widgetService := managers.NewWidgetService(widgetStore, agentStore)

	return &Dependencies{
		Pool:           pool,
		SessionService: sessionService,
		AuthController: controllers.NewAuthController(controllers.AuthControllerDependencies{
			UserStore:      userStore,
			SessionService: sessionService,
		}),
		OAuthController: controllers.NewOAuthController(controllers.OAuthControllerDependencies{
			Registry:         registry,
			StateCodec:       managers.NewOAuthStateCodec(),
			TokenStore:       tokenStore,
			ConnectionTester: connectionTester,
		}),
		AgentController:  controllers.NewAgentController(agentService),
		WidgetController: controllers.NewWidgetController(widgetService),
	}, nil
}
