package controllers

import (
	"errors"

	"github.com/agentdock/agentdock/internal/managers"
	"github.com/agentdock/agentdock/internal/middlewares"
	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

type AgentController struct {
	agents *managers.AgentService
}

func NewAgentController(agents *managers.AgentService) *AgentController {
	return &AgentController{agents: agents}
}

type createAgentRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

func (c *AgentController) Create(ctx fiber.Ctx) error {
	var req createAgentRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	agent, err := c.agents.CreateAgent(ctx.RequestCtx(), middlewares.UserID(ctx), managers.CreateAgentParams{
		Name:         req.Name,
		Description:  req.Description,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return ctx.Status(fiber.StatusCreated).JSON(agent)
}

func (c *AgentController) List(ctx fiber.Ctx) error {
	agents, err := c.agents.ListAgents(ctx.RequestCtx(), middlewares.UserID(ctx))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list agents")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to list agents")
	}

	if agents == nil {
		agents = []domain.Agent{}
	}

	return ctx.JSON(fiber.Map{"agents": agents})
}

func (c *AgentController) Get(ctx fiber.Ctx) error {
	agent, err := c.agents.GetAgent(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("agentID"))
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Agent not found")
		}

		log.Error().Err(err).Msg("Failed to get agent")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to get agent")
	}

	return ctx.JSON(agent)
}

type updateAgentRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Model        *string `json:"model"`
	SystemPrompt *string `json:"system_prompt"`
}

func (c *AgentController) Update(ctx fiber.Ctx) error {
	var req updateAgentRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	agent, err := c.agents.UpdateAgent(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("agentID"), managers.UpdateAgentParams{
		Name:         req.Name,
		Description:  req.Description,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Agent not found")
		}

		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return ctx.JSON(agent)
}

func (c *AgentController) Delete(ctx fiber.Ctx) error {
	err := c.agents.DeleteAgent(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("agentID"))
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Agent not found")
		}

		log.Error().Err(err).Msg("Failed to delete agent")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete agent")
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}
