package api

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/teilomillet/promptopt/llm"
	"github.com/teilomillet/promptopt/store"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

const userKey = "user"

func init() {
	err := llm.RegisterCustomValidation("tier", func(fl validator.FieldLevel) bool {
		return store.Tier(fl.Field().String()).Valid()
	})
	if err != nil {
		panic(err)
	}
}

// requireUser loads the user named by UserHeader into the request locals.
func (s *Server) requireUser(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Get(UserHeader), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid "+UserHeader+" header")
	}
	u, err := s.deps.Store.GetUser(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown user")
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return fiber.NewError(fiber.StatusForbidden, "inactive user")
	}
	c.Locals(userKey, u)
	return c.Next()
}

func userFrom(c *fiber.Ctx) *store.User {
	return c.Locals(userKey).(*store.User)
}

type createUserBody struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name"`
	Tier     string `json:"tier" validate:"omitempty,tier"`
}

func (s *Server) createUser(c *fiber.Ctx) error {
	var body createUserBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := llm.Validate(body); err != nil {
		return err
	}
	u := &store.User{
		Email:    body.Email,
		FullName: body.FullName,
		Tier:     store.Tier(body.Tier),
		IsActive: true,
	}
	if err := s.deps.Store.CreateUser(c.UserContext(), u); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(u)
}

func (s *Server) currentUser(c *fiber.Ctx) error {
	u := userFrom(c)
	return c.JSON(fiber.Map{
		"user":                    u,
		"optimizations_remaining": u.OptimizationsRemaining(),
		"tokens_remaining":        u.TokensRemaining(),
	})
}

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}
