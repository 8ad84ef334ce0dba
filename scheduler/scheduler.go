// Package scheduler runs the periodic maintenance jobs on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teilomillet/promptopt/tasks"
	"github.com/teilomillet/promptopt/utils"
)

// UsageResetter zeroes monthly usage counters.
type UsageResetter interface {
	ResetMonthlyUsage(ctx context.Context) (int64, error)
}

type Config struct {
	// PurgeSchedule runs the task-state purge, e.g. "@every 10m".
	PurgeSchedule string
	// ResultExpiry is how long finished task states are kept.
	ResultExpiry time.Duration
	// UsageResetSchedule runs the monthly usage reset, e.g. "0 0 1 * *".
	UsageResetSchedule string
}

// Engine owns the cron runner and its jobs.
type Engine struct {
	cron    *cron.Cron
	backend tasks.Backend
	users   UsageResetter
	cfg     Config
	logger  utils.Logger
	now     func() time.Time
	entries map[string]cron.EntryID
}

func New(backend tasks.Backend, users UsageResetter, cfg Config, logger utils.Logger) *Engine {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Engine{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		backend: backend,
		users:   users,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers the jobs and starts the runner; it stops when ctx is done.
// An empty schedule disables its job.
func (e *Engine) Start(ctx context.Context) error {
	if e.cfg.PurgeSchedule != "" && e.backend != nil {
		if err := e.add("purge_task_states", e.cfg.PurgeSchedule, e.PurgeTaskStates); err != nil {
			return err
		}
	}
	if e.cfg.UsageResetSchedule != "" && e.users != nil {
		if err := e.add("reset_monthly_usage", e.cfg.UsageResetSchedule, e.ResetUsage); err != nil {
			return err
		}
	}
	e.cron.Start()
	e.logger.Info("Scheduler started", "jobs", len(e.entries))

	go func() {
		<-ctx.Done()
		<-e.cron.Stop().Done()
	}()
	return nil
}

// Next returns the next run time of a registered job.
func (e *Engine) Next(job string) (time.Time, bool) {
	id, ok := e.entries[job]
	if !ok {
		return time.Time{}, false
	}
	return e.cron.Entry(id).Next, true
}

func (e *Engine) add(name, spec string, fn func(context.Context) error) error {
	id, err := e.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.logger.Error("Scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: parse %s schedule %q: %w", name, spec, err)
	}
	e.entries[name] = id
	return nil
}

// PurgeTaskStates drops finished task states older than the result expiry.
func (e *Engine) PurgeTaskStates(ctx context.Context) error {
	n, err := e.backend.Purge(ctx, e.now().Add(-e.cfg.ResultExpiry))
	if err != nil {
		return fmt.Errorf("purge task states: %w", err)
	}
	if n > 0 {
		e.logger.Info("Purged task states", "count", n)
	}
	return nil
}

func (e *Engine) ResetUsage(ctx context.Context) error {
	n, err := e.users.ResetMonthlyUsage(ctx)
	if err != nil {
		return fmt.Errorf("reset monthly usage: %w", err)
	}
	e.logger.Info("Reset monthly usage", "users", n)
	return nil
}
