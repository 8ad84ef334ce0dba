package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teilomillet/promptopt/utils"
)

// Handler executes one task. The returned value is JSON-encoded into the
// success state. ctx is cancelled with cause ErrSoftTimeLimit when the soft
// limit elapses.
type Handler func(ctx context.Context, job *Job) (any, error)

// Job is the handler's view of a running task.
type Job struct {
	ID      string
	Name    string
	Payload json.RawMessage
	Attempt int

	pool  *Pool
	mu    sync.Mutex
	state State
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Name, err)
	}
	return nil
}

// Progress publishes a progress message. Updates after the task finished are dropped.
func (j *Job) Progress(ctx context.Context, msg string) {
	j.pool.transition(ctx, j, func(s *State) {
		s.Status = StatusProgress
		s.Message = msg
	})
}

type Pool struct {
	backend   Backend
	logger    utils.Logger
	workers   int
	softLimit time.Duration
	hardLimit time.Duration
	retry     RetryPolicy
	now       func() time.Time

	handlers map[string]Handler
	queue    chan *Job

	mu      sync.RWMutex
	started bool
	closed  bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timers  sync.WaitGroup
	retries map[*Job]*time.Timer
}

type PoolOption func(*Pool)

func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		p.workers = max(n, 1)
	}
}

func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		p.queue = make(chan *Job, max(n, 1))
	}
}

// WithTimeLimits sets the soft and hard time limits per attempt. A zero value
// disables that limit.
func WithTimeLimits(soft, hard time.Duration) PoolOption {
	return func(p *Pool) {
		p.softLimit = soft
		p.hardLimit = hard
	}
}

func WithRetryPolicy(policy RetryPolicy) PoolOption {
	return func(p *Pool) {
		p.retry = policy
	}
}

func WithPoolLogger(logger utils.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a stopped pool. Register handlers, then call Start.
func NewPool(backend Backend, opts ...PoolOption) *Pool {
	p := &Pool{
		backend:   backend,
		logger:    utils.NewNopLogger(),
		workers:   4,
		softLimit: 25 * time.Minute,
		hardLimit: 30 * time.Minute,
		retry:     DefaultRetryPolicy(),
		now:       time.Now,
		handlers:  make(map[string]Handler),
		queue:     make(chan *Job, 256),
		retries:   make(map[*Job]*time.Timer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register binds a handler to a task name. It must be called before Start.
func (p *Pool) Register(name string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
}

func (p *Pool) Backend() Backend {
	return p.backend
}

// Start launches the workers. ctx bounds every handler run.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.baseCtx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for job := range p.queue {
				p.run(job)
			}
			p.logger.Debug("Task worker exited", "worker", worker)
		}(i)
	}
	p.logger.Info("Task pool started", "workers", p.workers, "queue_size", cap(p.queue))
}

// Stop stops accepting work, lets queued tasks drain and waits for the
// workers or ctx, whichever comes first. Tasks waiting for a retry are failed
// with ErrPoolStopped without waiting out their delay.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	pending := p.retries
	p.retries = make(map[*Job]*time.Timer)
	p.mu.Unlock()

	for job, timer := range pending {
		if timer.Stop() {
			p.timers.Done()
			p.fail(context.Background(), job, fmt.Errorf("%w: retry cancelled", ErrPoolStopped))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.timers.Wait()
		close(done)
	}()

	select {
	case <-done:
		if p.cancel != nil {
			p.cancel()
		}
		return nil
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		return ctx.Err()
	}
}

// Enqueue records a pending task and hands it to the workers without waiting
// for it to run.
func (p *Pool) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	p.mu.RLock()
	_, ok := p.handlers[name]
	p.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("tasks: encode %s payload: %w", name, err)
	}

	now := p.now()
	job := &Job{
		ID:      uuid.NewString(),
		Name:    name,
		Payload: raw,
		pool:    p,
		state: State{
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	job.state.ID, job.state.Name = job.ID, name
	if err := p.backend.Save(ctx, &job.state); err != nil {
		return "", fmt.Errorf("tasks: save %s: %w", job.ID, err)
	}

	if err := p.submit(job); err != nil {
		p.fail(ctx, job, err)
		return "", err
	}
	p.logger.Debug("Task enqueued", "task_id", job.ID, "name", name)
	return job.ID, nil
}

// Status returns the current state of a task. It has no side effects.
func (p *Pool) Status(ctx context.Context, id string) (*State, error) {
	return p.backend.Get(ctx, id)
}

func (p *Pool) submit(job *Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolStopped
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

type outcome struct {
	result any
	err    error
}

func (p *Pool) run(job *Job) {
	p.mu.RLock()
	handler := p.handlers[job.Name]
	ctx := p.baseCtx
	p.mu.RUnlock()

	attempt := job.Attempt
	p.transition(ctx, job, func(s *State) {
		s.Status = StatusProgress
		s.Attempts = attempt + 1
	})

	start := p.now()
	out := p.execute(ctx, handler, job)
	if out.err != nil && p.retry.ShouldRetry(out.err, attempt) {
		p.scheduleRetry(ctx, job, out.err)
		return
	}
	if out.err != nil {
		p.fail(ctx, job, out.err)
		return
	}

	data, err := json.Marshal(out.result)
	if err != nil {
		p.fail(ctx, job, fmt.Errorf("encode result: %w", err))
		return
	}
	p.transition(ctx, job, func(s *State) {
		s.Status = StatusSuccess
		s.Message = ""
		s.Result = data
	})
	p.logger.Info("Task succeeded", "task_id", job.ID, "name", job.Name, "attempt", attempt+1,
		"duration", p.now().Sub(start))
}

// execute runs the handler under the soft and hard limits. After the hard
// limit the handler goroutine is abandoned; its late updates are refused by
// the backend because the state is already terminal.
func (p *Pool) execute(parent context.Context, handler Handler, job *Job) outcome {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if p.softLimit > 0 {
		ctx, cancel = context.WithTimeoutCause(parent, p.softLimit, ErrSoftTimeLimit)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	// Also cancels a handler abandoned at the hard limit.
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		res, err := handler(ctx, job)
		done <- outcome{result: res, err: err}
	}()

	var hard <-chan time.Time
	if p.hardLimit > 0 {
		timer := time.NewTimer(p.hardLimit)
		defer timer.Stop()
		hard = timer.C
	}

	select {
	case out := <-done:
		if out.err != nil && errors.Is(context.Cause(ctx), ErrSoftTimeLimit) {
			out.err = fmt.Errorf("%w: %w", ErrSoftTimeLimit, out.err)
		}
		return out
	case <-hard:
		return outcome{err: ErrHardTimeLimit}
	}
}

func (p *Pool) scheduleRetry(ctx context.Context, job *Job, cause error) {
	delay := p.retry.Delay(job.Attempt)
	p.logger.Warn("Task failed, retrying", "task_id", job.ID, "name", job.Name,
		"attempt", job.Attempt+1, "delay", delay, "error", cause)
	p.transition(ctx, job, func(s *State) {
		s.Status = StatusProgress
		s.Message = fmt.Sprintf("Retrying in %s: %v", delay, cause)
	})

	job.Attempt++
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.fail(ctx, job, fmt.Errorf("%w (after: %v)", ErrPoolStopped, cause))
		return
	}
	p.timers.Add(1)
	p.retries[job] = time.AfterFunc(delay, func() {
		defer p.timers.Done()
		p.mu.Lock()
		delete(p.retries, job)
		p.mu.Unlock()
		if err := p.submit(job); err != nil {
			p.fail(context.Background(), job, fmt.Errorf("%w (after: %v)", err, cause))
		}
	})
}

func (p *Pool) fail(ctx context.Context, job *Job, err error) {
	p.transition(ctx, job, func(s *State) {
		s.Status = StatusFailure
		s.Message = ""
		s.Error = err.Error()
	})
	p.logger.Error("Task failed", "task_id", job.ID, "name", job.Name, "error", err)
}

// transition applies fn to the job's state and saves a copy. Writes to a
// finished task are logged and dropped.
func (p *Pool) transition(ctx context.Context, job *Job, fn func(*State)) {
	job.mu.Lock()
	defer job.mu.Unlock()

	if job.state.Status.Terminal() {
		return
	}
	fn(&job.state)
	job.state.UpdatedAt = p.now()
	snapshot := job.state

	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := p.backend.Save(ctx, &snapshot); err != nil {
		if errors.Is(err, ErrTerminalState) {
			p.logger.Debug("Dropped update for finished task", "task_id", job.ID)
			return
		}
		p.logger.Error("Failed to save task state", "task_id", job.ID, "error", err)
	}
}
