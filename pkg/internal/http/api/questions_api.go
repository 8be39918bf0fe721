package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/openballot/ballotbox/pkg/internal/services"
)

func listActiveQuestions(c *fiber.Ctx) error {
	questions, err := services.ListActiveQuestions(c.UserContext())
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(questions)
}

func getQuestion(c *fiber.Ctx) error {
	identifier := c.Params("questionId")

	question, err := services.GetQuestion(c.UserContext(), identifier)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(question)
}

func getQuestionResults(c *fiber.Ctx) error {
	identifier := c.Params("questionId")

	results, err := services.GetResults(c.UserContext(), identifier)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(results)
}
