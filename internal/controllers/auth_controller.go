package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/agentdock/agentdock/internal/auth"
	"github.com/agentdock/agentdock/internal/middlewares"
	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

type AuthController struct {
	users    domain.UserStore
	sessions *auth.SessionService
}

type AuthControllerDependencies struct {
	UserStore      domain.UserStore
	SessionService *auth.SessionService
}

func NewAuthController(deps AuthControllerDependencies) *AuthController {
	return &AuthController{
		users:    deps.UserStore,
		sessions: deps.SessionService,
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (c *AuthController) Signup(ctx fiber.Ctx) error {
	var req signupRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Email is required")
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	user := domain.User{
		ID:           xid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	if err := c.users.Create(ctx.RequestCtx(), user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return fiber.NewError(fiber.StatusConflict, "Email is already registered")
		}

		log.Error().Err(err).Msg("Failed to create user")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to create account")
	}

	token, err := c.sessions.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue session token")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to create session")
	}

	return ctx.Status(fiber.StatusCreated).JSON(sessionResponse{Token: token, User: user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *AuthController) Login(ctx fiber.Ctx) error {
	var req loginRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := c.users.GetByEmail(ctx.RequestCtx(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		// Same response for unknown email and wrong password.
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
	}

	token, err := c.sessions.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue session token")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to create session")
	}

	return ctx.JSON(sessionResponse{Token: token, User: user})
}

func (c *AuthController) Me(ctx fiber.Ctx) error {
	user, err := c.users.GetByID(ctx.RequestCtx(), middlewares.UserID(ctx))
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Unknown user")
	}

	return ctx.JSON(user)
}
