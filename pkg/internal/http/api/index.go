package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/openballot/ballotbox/pkg/internal/services"
)

func MapAPIs(app *fiber.App, baseURL string) {
	api := app.Group(baseURL).Name("API")
	{
		questions := api.Group("/questions").Name("Questions API")
		{
			questions.Get("/", listActiveQuestions)
			questions.Get("/:questionId", getQuestion)
			questions.Get("/:questionId/results", getQuestionResults)
			questions.Get("/:questionId/votes/me", getMyVote)
			questions.Post("/:questionId/votes", castVote)
		}
	}
}

// serviceError translates the engine's sentinel outcomes onto HTTP statuses.
// AlreadyVoted must stay a conflict so clients can tell it from a transient
// failure worth retrying.
func serviceError(err error) *fiber.Error {
	switch {
	case errors.Is(err, services.ErrVotingDisabled):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrAnonymousNotAllowed):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, services.ErrQuestionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrResultsUnavailable):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrQuestionInactive):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.Is(err, services.ErrOptionInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadyVoted):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
