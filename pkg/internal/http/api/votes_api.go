package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/openballot/ballotbox/pkg/internal/http/exts"
	"github.com/openballot/ballotbox/pkg/internal/services"
	"gorm.io/gorm"
)

func castVote(c *fiber.Ctx) error {
	identifier := c.Params("questionId")
	user := exts.UserID(c)

	var data struct {
		Option string `json:"option" validate:"required,max=128"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	policy := services.PolicyFromConfig()

	vote, err := services.CastVote(c.UserContext(), policy, identifier, data.Option, user)
	if err != nil {
		return serviceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(vote)
}

func getMyVote(c *fiber.Ctx) error {
	identifier := c.Params("questionId")
	user := exts.UserID(c)
	if user == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "identity is required")
	}

	vote, err := services.GetUserVote(c.UserContext(), identifier, user)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no vote has been cast on this question")
		}
		return serviceError(err)
	}

	return c.JSON(vote)
}
