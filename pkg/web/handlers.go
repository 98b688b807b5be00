// Package web provides the HTTP control surface for bot sessions.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/botflow/pkg/bots"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	registry    *bots.Registry
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	registry *bots.Registry,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		registry:    registry,
		persistence: persistence,
		validator:   validator,
	}
}

// Register mounts the bot routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	b := router.Group("/bots")
	b.Get("/", h.ListSessions)
	b.Post("/", h.StartBot)
	b.Get("/:id", h.GetBot)
	b.Delete("/:id/session", h.StopBot)
	b.Post("/:id/toggle", h.ToggleBot)
	b.Post("/:id/restart", h.RestartBot)
}

// ListSessions returns the live sessions held by the registry.
func (h *APIHandlers) ListSessions(c fiber.Ctx) error {
	ids := h.registry.Running()
	sessions := make([]SessionResponse, 0, len(ids))

	for _, id := range ids {
		conn, ok := h.registry.Get(id)
		if !ok {
			continue
		}

		sessions = append(sessions, TransformSessionResponse(conn))
	}

	return c.JSON(fiber.Map{
		"sessions":    sessions,
		"total_count": len(sessions),
	})
}

func (h *APIHandlers) GetBot(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Bot ID is required")
	}

	bot, err := h.persistence.BotRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleBotError(c, err)
	}

	conn, _ := h.registry.Get(id)

	return c.JSON(TransformBotResponse(bot, conn))
}

func (h *APIHandlers) StartBot(c fiber.Ctx) error {
	var req StartBotRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	bot, err := h.registry.Start(c.Context(), req.Token, req.ID)
	if err != nil {
		return handleBotError(c, err)
	}

	conn, _ := h.registry.Get(bot.ID)

	return c.Status(fiber.StatusCreated).JSON(TransformBotResponse(bot, conn))
}

func (h *APIHandlers) StopBot(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Bot ID is required")
	}

	err := h.registry.Stop(c.Context(), id)
	if err != nil {
		return handleBotError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ToggleBot(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Bot ID is required")
	}

	bot, err := h.registry.Toggle(c.Context(), id)
	if err != nil {
		return handleBotError(c, err)
	}

	conn, _ := h.registry.Get(id)

	return c.JSON(TransformBotResponse(bot, conn))
}

func (h *APIHandlers) RestartBot(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Bot ID is required")
	}

	bot, err := h.registry.Restart(c.Context(), id)
	if err != nil {
		return handleBotError(c, err)
	}

	conn, _ := h.registry.Get(id)

	return c.JSON(TransformBotResponse(bot, conn))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "botflow is healthy"
	httpStatus := http.StatusOK
	repositoryCheck := "ok"

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		message = "botflow is unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"sessions":   len(h.registry.Running()),
		},
		"timestamp": time.Now().UTC(),
	})
}
