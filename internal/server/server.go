package server

import (
	"time"

	"github.com/agentdock/agentdock/internal/auth"
	"github.com/agentdock/agentdock/internal/controllers"
	"github.com/agentdock/agentdock/internal/middlewares"
	"github.com/agentdock/agentdock/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

type HTTPServerDependencies struct {
	SessionService   *auth.SessionService
	AuthController   *controllers.AuthController
	OAuthController  *controllers.OAuthController
	AgentController  *controllers.AgentController
	WidgetController *controllers.WidgetController
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "agentdock-api",
	})

	router.Use(recover.New())
	router.Use(cors.New())
	router.Use(logger.New())

	// Health check endpoint (no authentication required)
	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "agentdock-api",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Public surface: account endpoints, provider callbacks, widget embeds.
	authGroup := router.Group("/auth")
	authGroup.Post("/signup", deps.AuthController.Signup)
	authGroup.Post("/login", deps.AuthController.Login)

	router.Get("/oauth/:provider/callback", deps.OAuthController.Callback)
	router.Get("/embed/widgets/:embedKey", deps.WidgetController.Embed)

	session := middlewares.SessionMiddleware(deps.SessionService)

	authGroup.Get("/me", deps.AuthController.Me, session)

	// The callback shares the /oauth prefix but must stay sessionless, so
	// session protection is attached per route here.
	oauth := router.Group("/oauth")
	oauth.Get("/connections", deps.OAuthController.Connections, session)
	oauth.Get("/:provider/authorize", deps.OAuthController.Authorize, session)
	oauth.Post("/:provider/test", deps.OAuthController.TestConnection, session)
	oauth.Delete("/:provider", deps.OAuthController.Unlink, session)

	agents := router.Group("/agents", session)
	agents.Post("/", deps.AgentController.Create)
	agents.Get("/", deps.AgentController.List)
	agents.Get("/:agentID", deps.AgentController.Get)
	agents.Patch("/:agentID", deps.AgentController.Update)
	agents.Delete("/:agentID", deps.AgentController.Delete)

	agents.Post("/:agentID/widgets", deps.WidgetController.Create)
	agents.Get("/:agentID/widgets", deps.WidgetController.List)

	widgets := router.Group("/widgets", session)
	widgets.Get("/:widgetID", deps.WidgetController.Get)
	widgets.Patch("/:widgetID", deps.WidgetController.Update)
	widgets.Delete("/:widgetID", deps.WidgetController.Delete)

	return router
}
