package api

import (
	"errors"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/teilomillet/promptopt/llm"
	"github.com/teilomillet/promptopt/optimizer"
	"github.com/teilomillet/promptopt/store"
	"github.com/teilomillet/promptopt/tasks"
)

type promptBody struct {
	Title          string `json:"title"`
	OriginalPrompt string `json:"original_prompt" validate:"required"`
}

func (s *Server) createPrompt(c *fiber.Ctx) error {
	var body promptBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := llm.Validate(body); err != nil {
		return err
	}
	if utf8.RuneCountInString(body.OriginalPrompt) > s.deps.MaxPromptLength {
		return fiber.NewError(fiber.StatusBadRequest, "original_prompt is too long")
	}
	p := &store.Prompt{UserID: userFrom(c).ID, Title: body.Title, OriginalPrompt: body.OriginalPrompt}
	if err := s.deps.Store.CreatePrompt(c.UserContext(), p); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) getPrompt(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p, err := s.deps.Store.GetPrompt(c.UserContext(), id, userFrom(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) analyzePrompt(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	user := userFrom(c)
	if _, err := s.deps.Store.GetPrompt(c.UserContext(), id, user.ID); err != nil {
		return err
	}
	taskID, err := s.deps.Tasks.Enqueue(c.UserContext(), optimizer.TaskAnalyzeQuality,
		optimizer.AnalyzeRequest{PromptID: id, UserID: user.ID})
	if errors.Is(err, tasks.ErrUnknownTask) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "quality analysis is not available")
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task_id": taskID, "status": "processing"})
}
