package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teilomillet/promptopt/analytics"
	"github.com/teilomillet/promptopt/store"
)

// window reads the ?days= lookback, 1..365, default 30.
func window(c *fiber.Ctx) (int, error) {
	days := c.QueryInt("days", 30)
	if days < 1 || days > 365 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "days must be between 1 and 365")
	}
	return days, nil
}

func (s *Server) recent(c *fiber.Ctx, since time.Time) ([]*store.Optimization, error) {
	return s.deps.Store.ListOptimizations(c.UserContext(), userFrom(c).ID, store.OptimizationFilter{Since: since})
}

func (s *Server) analyticsSummary(c *fiber.Ctx) error {
	days, err := window(c)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	opts, err := s.recent(c, now.AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	return c.JSON(analytics.Summarize(opts, days, now))
}

func (s *Server) analyticsROI(c *fiber.Ctx) error {
	days, err := window(c)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)
	opts, err := s.recent(c, since)
	if err != nil {
		return err
	}
	cost := s.deps.ServiceCost
	if cost <= 0 {
		cost = analytics.DefaultServiceCost
	}
	return c.JSON(analytics.ComputeROI(opts, analytics.ROIParams{
		ServiceCostPerOptimization: cost,
		Since:                      since,
		Now:                        now,
	}))
}
