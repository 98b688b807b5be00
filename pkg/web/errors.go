package web

import (
	"errors"

	"github.com/dukex/botflow/pkg/bots"
	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleBotError maps registry and platform errors to problem responses.
func handleBotError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, bots.ErrEmptyToken):
		return badRequest(c, err.Error())

	case persistence.IsBotNotFound(err):
		return notFound(c, "bot not found")

	case errors.Is(err, bots.ErrIdentityMismatch):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("identity_mismatch").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, bots.ErrBotNotRunning):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("bot_not_running").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, gateway.ErrIdentityTimeout):
		problem := problems.NewStatusProblem(504).
			WithInstance(c.Path()).
			WithType("platform_timeout").
			WithDetail("platform did not confirm the bot identity in time")

		return c.Status(fiber.StatusGatewayTimeout).JSON(problem)

	case errors.Is(err, bots.ErrConnect):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("platform_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}
