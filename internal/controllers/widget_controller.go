package controllers

import (
	"errors"

	"github.com/agentdock/agentdock/internal/managers"
	"github.com/agentdock/agentdock/internal/middlewares"
	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

type WidgetController struct {
	widgets *managers.WidgetService
}

func NewWidgetController(widgets *managers.WidgetService) *WidgetController {
	return &WidgetController{widgets: widgets}
}

type createWidgetRequest struct {
	Name     string            `json:"name"`
	Kind     domain.WidgetKind `json:"kind"`
	Settings map[string]any    `json:"settings"`
}

func (c *WidgetController) Create(ctx fiber.Ctx) error {
	var req createWidgetRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	widget, err := c.widgets.CreateWidget(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("agentID"), managers.CreateWidgetParams{
		Name:     req.Name,
		Kind:     req.Kind,
		Settings: req.Settings,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Agent not found")
		}

		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return ctx.Status(fiber.StatusCreated).JSON(widget)
}

func (c *WidgetController) List(ctx fiber.Ctx) error {
	widgets, err := c.widgets.ListWidgets(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("agentID"))
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Agent not found")
		}

		log.Error().Err(err).Msg("Failed to list widgets")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to list widgets")
	}

	if widgets == nil {
		widgets = []domain.Widget{}
	}

	return ctx.JSON(fiber.Map{"widgets": widgets})
}

func (c *WidgetController) Get(ctx fiber.Ctx) error {
	widget, err := c.widgets.GetWidget(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("widgetID"))
	if err != nil {
		if errors.Is(err, domain.ErrWidgetNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Widget not found")
		}

		log.Error().Err(err).Msg("Failed to get widget")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to get widget")
	}

	return ctx.JSON(widget)
}

type updateWidgetRequest struct {
	Name     *string            `json:"name"`
	Kind     *domain.WidgetKind `json:"kind"`
	Settings map[string]any     `json:"settings"`
}

func (c *WidgetController) Update(ctx fiber.Ctx) error {
	var req updateWidgetRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	widget, err := c.widgets.UpdateWidget(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("widgetID"), managers.UpdateWidgetParams{
		Name:     req.Name,
		Kind:     req.Kind,
		Settings: req.Settings,
	})
	if err != nil {
		if errors.Is(err, domain.ErrWidgetNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Widget not found")
		}

		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return ctx.JSON(widget)
}

func (c *WidgetController) Delete(ctx fiber.Ctx) error {
	err := c.widgets.DeleteWidget(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("widgetID"))
	if err != nil {
		if errors.Is(err, domain.ErrWidgetNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Widget not found")
		}

		log.Error().Err(err).Msg("Failed to delete widget")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete widget")
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

// Embed serves widget configuration to the public embed script. Internal
// fields stay out of the payload.
func (c *WidgetController) Embed(ctx fiber.Ctx) error {
	widget, err := c.widgets.GetEmbeddedWidget(ctx.RequestCtx(), ctx.Params("embedKey"))
	if err != nil {
		if errors.Is(err, domain.ErrWidgetNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Widget not found")
		}

		log.Error().Err(err).Msg("Failed to load embedded widget")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load widget")
	}

	return ctx.JSON(fiber.Map{
		"agent_id": widget.AgentID,
		"name":     widget.Name,
		"kind":     widget.Kind,
		"settings": widget.Settings,
	})
}
