package api

import (
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/teilomillet/promptopt/catalog"
	"github.com/teilomillet/promptopt/llm"
)

type calculateBody struct {
	Text  string `json:"text" validate:"required"`
	Model string `json:"model"`
}

func (s *Server) calculateTokens(c *fiber.Ctx) error {
	var body calculateBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := llm.Validate(body); err != nil {
		return err
	}
	if body.Model == "" {
		body.Model = catalog.DefaultModel
	}
	n := s.deps.Counter.CountTokens(body.Text, body.Model)
	return c.JSON(fiber.Map{
		"text_length":    utf8.RuneCountInString(body.Text),
		"token_count":    n,
		"model":          body.Model,
		"estimated_cost": s.deps.Counter.EstimateCost(n, body.Model),
	})
}

type compareBody struct {
	Text   string   `json:"text" validate:"required"`
	Models []string `json:"models" validate:"max=20"`
}

func (s *Server) compareModels(c *fiber.Ctx) error {
	var body compareBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := llm.Validate(body); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"text_length": utf8.RuneCountInString(body.Text),
		"comparisons": s.deps.Counter.CompareModels(body.Text, body.Models...),
	})
}

func (s *Server) listModels(c *fiber.Ctx) error {
	names := s.deps.Counter.SupportedModels()
	models := make([]any, 0, len(names))
	for _, name := range names {
		models = append(models, s.deps.Counter.ModelInfo(name))
	}
	return c.JSON(fiber.Map{"models": models})
}
