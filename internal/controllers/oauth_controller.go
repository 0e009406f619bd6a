package controllers

import (
	"errors"
	"time"

	"github.com/agentdock/agentdock/internal/managers"
	"github.com/agentdock/agentdock/internal/middlewares"
	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// OAuthController exposes the account-linking surface: authorize redirect,
// provider callback, connection listing, connection test and unlink.
type OAuthController struct {
	registry   *managers.ProviderRegistry
	stateCodec *managers.OAuthStateCodec
	tokenStore domain.OAuthTokenStore
	tester     *managers.ConnectionTester
}

type OAuthControllerDependencies struct {
	Registry         *managers.ProviderRegistry
	StateCodec       *managers.OAuthStateCodec
	TokenStore       domain.OAuthTokenStore
	ConnectionTester *managers.ConnectionTester
}

func NewOAuthController(deps OAuthControllerDependencies) *OAuthController {
	return &OAuthController{
		registry:   deps.Registry,
		stateCodec: deps.StateCodec,
		tokenStore: deps.TokenStore,
		tester:     deps.ConnectionTester,
	}
}

func (c *OAuthController) manager(ctx fiber.Ctx) (*managers.OAuthManager, error) {
	provider := domain.OAuthProvider(ctx.Params("provider"))
	if !provider.Valid() {
		return nil, fiber.NewError(fiber.StatusNotFound, "Unknown provider")
	}

	manager, ok := c.registry.Get(provider)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "Provider is not configured")
	}

	return manager, nil
}

// Authorize starts the linking flow by redirecting to the provider's
// authorization endpoint with an encoded state token.
func (c *OAuthController) Authorize(ctx fiber.Ctx) error {
	manager, err := c.manager(ctx)
	if err != nil {
		return err
	}

	state, err := c.stateCodec.Encode(middlewares.UserID(ctx), manager.Provider())
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode oauth state")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to start authorization")
	}

	return ctx.Redirect().To(manager.BuildAuthorizationURL(state, nil))
}

type callbackResponse struct {
	Provider domain.OAuthProvider    `json:"provider"`
	Linked   bool                    `json:"linked"`
	Profile  domain.OAuthUserProfile `json:"profile"`
}

// Callback completes the linking flow. The caller's identity comes from the
// state token, not from a session: providers redirect the browser here
// without our Authorization header.
func (c *OAuthController) Callback(ctx fiber.Ctx) error {
	manager, err := c.manager(ctx)
	if err != nil {
		return err
	}

	if reason := ctx.Query("error"); reason != "" {
		return fiber.NewError(fiber.StatusBadRequest, "Authorization was denied: "+reason)
	}

	// Invalid and expired states get the same response; the distinction is
	// internal.
	state, err := c.stateCodec.Decode(ctx.Query("state"))
	if err != nil || state.Provider != manager.Provider() {
		return fiber.NewError(fiber.StatusBadRequest, "Authorization failed, please retry")
	}

	code := ctx.Query("code")
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing authorization code")
	}

	response, err := manager.ExchangeCode(ctx.RequestCtx(), code)
	if err != nil {
		log.Warn().Err(err).Str("provider", string(manager.Provider())).Msg("Code exchange failed")
		return fiber.NewError(fiber.StatusBadGateway, "Could not complete authorization")
	}

	if _, err := manager.PersistTokens(ctx.RequestCtx(), state.UserID, response); err != nil {
		log.Error().Err(err).Str("provider", string(manager.Provider())).Msg("Failed to persist tokens")
		return fiber.NewError(fiber.StatusInternalServerError, "Could not complete authorization")
	}

	result := callbackResponse{
		Provider: manager.Provider(),
		Linked:   true,
	}

	// Profile fetch is best effort; the link already succeeded.
	profile, err := manager.FetchProfile(ctx.RequestCtx(), response.AccessToken)
	if err != nil {
		log.Warn().Err(err).Str("provider", string(manager.Provider())).Msg("Failed to fetch provider profile")
	} else {
		result.Profile = profile
	}

	log.Info().
		Str("provider", string(manager.Provider())).
		Str("user_id", state.UserID).
		Msg("Linked provider account")

	return ctx.JSON(result)
}

// Unlink revokes the stored token. Unlinking a provider that was never
// linked succeeds.
func (c *OAuthController) Unlink(ctx fiber.Ctx) error {
	manager, err := c.manager(ctx)
	if err != nil {
		return err
	}

	if err := manager.Revoke(ctx.RequestCtx(), middlewares.UserID(ctx)); err != nil {
		log.Error().Err(err).Msg("Failed to revoke oauth token")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to unlink account")
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

type connectionResponse struct {
	Provider  domain.OAuthProvider `json:"provider"`
	Scopes    []string             `json:"scopes"`
	ExpiresAt time.Time            `json:"expires_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (c *OAuthController) Connections(ctx fiber.Ctx) error {
	tokens, err := c.tokenStore.ListByUser(ctx.RequestCtx(), middlewares.UserID(ctx))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list oauth connections")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to list connections")
	}

	connections := make([]connectionResponse, 0, len(tokens))
	for _, token := range tokens {
		connections = append(connections, connectionResponse{
			Provider:  token.Provider,
			Scopes:    token.Scopes,
			ExpiresAt: token.ExpiresAt,
			UpdatedAt: token.UpdatedAt,
		})
	}

	return ctx.JSON(fiber.Map{"connections": connections})
}

func (c *OAuthController) TestConnection(ctx fiber.Ctx) error {
	manager, err := c.manager(ctx)
	if err != nil {
		return err
	}

	err = c.tester.TestConnection(ctx.RequestCtx(), middlewares.UserID(ctx), manager.Provider())
	switch {
	case errors.Is(err, domain.ErrNotLinked):
		return fiber.NewError(fiber.StatusNotFound, "Connect your account first")
	case errors.Is(err, domain.ErrRefreshUnavailable), errors.Is(err, domain.ErrRefreshFailed):
		return fiber.NewError(fiber.StatusUnauthorized, "Re-authorization required")
	case err != nil:
		return fiber.NewError(fiber.StatusBadGateway, "Connection test failed")
	}

	return ctx.JSON(fiber.Map{"ok": true})
}
