package api

import (
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/teilomillet/promptopt/llm"
	"github.com/teilomillet/promptopt/optimizer"
	"github.com/teilomillet/promptopt/store"
	"github.com/teilomillet/promptopt/tasks"
	"github.com/teilomillet/promptopt/tokens"
)

type optimizeBody struct {
	PromptID         int64    `json:"prompt_id" validate:"gte=0"`
	OriginalPrompt   string   `json:"original_prompt" validate:"required_without=PromptID"`
	Kind             string   `json:"optimization_type" validate:"required"`
	TargetModel      string   `json:"target_model"`
	ReductionTarget  *float64 `json:"reduction_target" validate:"omitempty,gte=0.1,lte=0.9"`
	QualityThreshold *float64 `json:"quality_threshold" validate:"omitempty,gte=1,lte=10"`
}

// optimize starts an optimization task and returns its id without waiting.
func (s *Server) optimize(c *fiber.Ctx) error {
	var body optimizeBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := llm.Validate(body); err != nil {
		return err
	}
	if _, err := optimizer.ParseKind(body.Kind); err != nil {
		return err
	}

	ctx := c.UserContext()
	user := userFrom(c)

	var prompt *store.Prompt
	if body.PromptID != 0 {
		p, err := s.deps.Store.GetPrompt(ctx, body.PromptID, user.ID)
		if err != nil {
			return err
		}
		prompt = p
	} else {
		if n := utf8.RuneCountInString(body.OriginalPrompt); n > s.deps.MaxPromptLength {
			return fiber.NewError(fiber.StatusBadRequest, "original_prompt is too long")
		}
		prompt = &store.Prompt{UserID: user.ID, OriginalPrompt: body.OriginalPrompt}
	}

	if !user.CanOptimize(tokens.EstimateFromWords(prompt.OriginalPrompt)) {
		return fiber.NewError(fiber.StatusForbidden, "Optimization limit reached. Please upgrade your plan.")
	}
	if prompt.ID == 0 {
		if err := s.deps.Store.CreatePrompt(ctx, prompt); err != nil {
			return err
		}
	}

	taskID, err := s.deps.Tasks.Enqueue(ctx, optimizer.TaskOptimizePrompt, optimizer.Request{
		PromptID:         prompt.ID,
		UserID:           user.ID,
		Kind:             body.Kind,
		TargetModel:      body.TargetModel,
		ReductionTarget:  body.ReductionTarget,
		QualityThreshold: body.QualityThreshold,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id":   taskID,
		"prompt_id": prompt.ID,
		"status":    "processing",
		"message":   "Optimization started. Check task status for results.",
	})
}

type batchBody struct {
	PromptIDs   []int64 `json:"prompt_ids"`
	Kind        string  `json:"optimization_type"`
	TargetModel string  `json:"target_model"`
}

func (s *Server) optimizeBatch(c *fiber.Ctx) error {
	var body batchBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	user := userFrom(c)
	if !user.CanOptimize(0) {
		return fiber.NewError(fiber.StatusForbidden, "Optimization limit reached. Please upgrade your plan.")
	}

	items, err := optimizer.EnqueueBatch(c.UserContext(), s.deps.Tasks, optimizer.BatchRequest{
		PromptIDs:   body.PromptIDs,
		UserID:      user.ID,
		Kind:        body.Kind,
		TargetModel: body.TargetModel,
	})
	if err != nil && len(items) == 0 {
		return err
	}
	resp := fiber.Map{"results": items}
	if err != nil {
		resp["error"] = err.Error()
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// taskStatus reports processing, completed with the result, or failed with
// the reason, for any task id.
func (s *Server) taskStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	st, err := s.deps.Tasks.Status(c.UserContext(), id)
	if err != nil {
		return err
	}
	switch st.Status {
	case tasks.StatusSuccess:
		return c.JSON(fiber.Map{"status": "completed", "task_id": id, "result": st.Result})
	case tasks.StatusFailure:
		return c.JSON(fiber.Map{"status": "failed", "task_id": id, "error": st.Error})
	default:
		return c.JSON(fiber.Map{"status": "processing", "task_id": id, "message": st.Message})
	}
}

func (s *Server) listOptimizations(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 100)
	if skip < 0 || limit < 1 || limit > 1000 {
		return fiber.NewError(fiber.StatusBadRequest, "skip must be >= 0 and limit in 1..1000")
	}
	kind := c.Query("optimization_type")
	if kind != "" {
		if _, err := optimizer.ParseKind(kind); err != nil {
			return err
		}
	}

	list, err := s.deps.Store.ListOptimizations(c.UserContext(), userFrom(c).ID, store.OptimizationFilter{
		Type:   kind,
		Model:  c.Query("model_used"),
		Offset: skip,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	if list == nil {
		list = []*store.Optimization{}
	}
	return c.JSON(list)
}

func (s *Server) getOptimization(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	o, err := s.deps.Store.GetOptimization(c.UserContext(), id, userFrom(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(o)
}

func (s *Server) deleteOptimization(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := s.deps.Store.DeleteOptimization(c.UserContext(), id, userFrom(c).ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
