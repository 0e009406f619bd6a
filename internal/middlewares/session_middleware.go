package middlewares

import (
	"strings"

	"github.com/agentdock/agentdock/internal/auth"

	"github.com/gofiber/fiber/v3"
)

const userIDLocal = "userID"

// SessionMiddleware verifies the bearer session token and stores the caller's
// user id in request locals.
func SessionMiddleware(sessions *auth.SessionService) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get("Authorization")

		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		userID, err := sessions.Verify(strings.TrimPrefix(header, prefix))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired session",
			})
		}

		c.Locals(userIDLocal, userID)

		return c.Next()
	}
}

// UserID returns the authenticated user id set by SessionMiddleware.
func UserID(c fiber.Ctx) string {
	userID, _ := c.Locals(userIDLocal).(string)
	return userID
}
