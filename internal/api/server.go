// Package api exposes the optimizer over HTTP with fiber.
package api

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/teilomillet/promptopt/optimizer"
	"github.com/teilomillet/promptopt/store"
	"github.com/teilomillet/promptopt/tasks"
	"github.com/teilomillet/promptopt/tokens"
	"github.com/teilomillet/promptopt/utils"
)

// Store is the persistence the HTTP handlers use.
type Store interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, u *store.User) error
	GetUser(ctx context.Context, id int64) (*store.User, error)
	CreatePrompt(ctx context.Context, p *store.Prompt) error
	GetPrompt(ctx context.Context, id, userID int64) (*store.Prompt, error)
	GetOptimization(ctx context.Context, id, userID int64) (*store.Optimization, error)
	ListOptimizations(ctx context.Context, userID int64, f store.OptimizationFilter) ([]*store.Optimization, error)
	DeleteOptimization(ctx context.Context, id, userID int64) error
}

// Tasks enqueues work and reports task states.
type Tasks interface {
	optimizer.Enqueuer
	Status(ctx context.Context, id string) (*tasks.State, error)
}

type Deps struct {
	Store       Store
	Tasks       Tasks
	Counter     *tokens.Counter
	Logger      utils.Logger
	Version     string
	Environment string
	// ServiceCost is the assumed price of one optimization for ROI.
	ServiceCost     float64
	MaxPromptLength int
}

type Server struct {
	app  *fiber.App
	deps Deps
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = utils.NewNopLogger()
	}
	if deps.MaxPromptLength <= 0 {
		deps.MaxPromptLength = optimizer.DefaultMaxPromptLength
	}
	s := &Server{deps: deps}
	s.app = fiber.New(fiber.Config{
		AppName:               "promptopt",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.deps.Logger.Info("HTTP server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(logger.New())

	s.app.Get("/health", s.health)

	v1 := s.app.Group("/v1")
	v1.Post("/users", s.createUser)

	authed := v1.Group("", s.requireUser)
	authed.Get("/users/me", s.currentUser)

	authed.Post("/prompts", s.createPrompt)
	authed.Get("/prompts/:id", s.getPrompt)
	authed.Post("/prompts/:id/analyze", s.analyzePrompt)

	authed.Post("/optimizations", s.optimize)
	authed.Post("/optimizations/batch", s.optimizeBatch)
	authed.Get("/optimizations/task/:id", s.taskStatus)
	authed.Get("/optimizations", s.listOptimizations)
	authed.Get("/optimizations/:id", s.getOptimization)
	authed.Delete("/optimizations/:id", s.deleteOptimization)

	authed.Post("/tokens/calculate", s.calculateTokens)
	authed.Post("/tokens/compare", s.compareModels)
	authed.Get("/tokens/models", s.listModels)

	authed.Get("/analytics/summary", s.analyticsSummary)
	authed.Get("/analytics/roi", s.analyticsROI)
}

func (s *Server) health(c *fiber.Ctx) error {
	code, status, database := fiber.StatusOK, "healthy", "ok"
	if err := s.deps.Store.Ping(c.UserContext()); err != nil {
		code, status, database = fiber.StatusServiceUnavailable, "degraded", err.Error()
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"version":  s.deps.Version,
		"env":      s.deps.Environment,
		"database": database,
	})
}

// handleError maps domain errors onto HTTP statuses.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		code, msg = fe.Code, fe.Message
	case errors.As(err, &ve):
		code, msg = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound), errors.Is(err, tasks.ErrTaskNotFound):
		code, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, optimizer.ErrInvalidOptimizationKind), errors.Is(err, optimizer.ErrInvalidPrompt):
		code, msg = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, tasks.ErrQueueFull), errors.Is(err, tasks.ErrPoolStopped):
		code, msg = fiber.StatusServiceUnavailable, err.Error()
	default:
		s.deps.Logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
