package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/teilomillet/promptopt/config"
	"github.com/teilomillet/promptopt/internal/api"
	"github.com/teilomillet/promptopt/scheduler"
	"github.com/teilomillet/promptopt/tasks"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, task workers and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.ConfigOption
			if addr != "" {
				opts = append(opts, config.SetHTTPAddr(addr))
			}
			cfg, err := config.LoadConfig(opts...)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: HTTP_ADDR)")
	return cmd
}

func newBackend(ctx context.Context, cfg *config.Config) (tasks.Backend, func(), error) {
	if cfg.RedisURL == "" {
		return tasks.NewMemoryBackend(), func() {}, nil
	}
	b, err := tasks.NewRedisBackendFromURL(ctx, cfg.RedisURL, cfg.ResultExpiry)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { b.Close() }, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	eng, err := newEngine(ctx, cfg, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer eng.Close()
	logger := eng.logger

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	pool := tasks.NewPool(backend,
		tasks.WithWorkers(cfg.Workers),
		tasks.WithQueueSize(cfg.QueueSize),
		tasks.WithTimeLimits(cfg.TaskSoftLimit, cfg.TaskHardLimit),
		tasks.WithRetryPolicy(tasks.RetryPolicy{
			MaxRetries:  cfg.TaskMaxRetries,
			InitialWait: cfg.TaskRetryDelay,
			MaxWait:     time.Minute,
		}),
		tasks.WithPoolLogger(logger),
	)
	eng.service.RegisterTasks(pool)
	// In-flight tasks keep running through the shutdown window.
	pool.Start(context.WithoutCancel(ctx))

	sched := scheduler.New(backend, eng.store, scheduler.Config{
		PurgeSchedule:      cfg.JanitorSchedule,
		ResultExpiry:       cfg.ResultExpiry,
		UsageResetSchedule: cfg.UsageResetSchedule,
	}, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	srv := api.New(api.Deps{
		Store:           eng.store,
		Tasks:           pool,
		Counter:         eng.counter,
		Logger:          logger,
		Version:         Version,
		Environment:     cfg.Environment,
		ServiceCost:     cfg.ServiceCostPerOptimization,
		MaxPromptLength: cfg.MaxPromptLength,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(cfg.HTTPAddr) }()

	select {
	case err = <-errc:
		err = fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err = errors.Join(err, srv.Shutdown(shutdownCtx), pool.Stop(shutdownCtx))
	return err
}
