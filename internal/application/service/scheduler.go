package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
	"github.com/kalinpl/dreamlog/internal/infrastructure/metrics"
)

// SchedulerConfig tunes the durable task execution loop.
type SchedulerConfig struct {
	PollInterval   time.Duration // How often to look for due tasks
	RetryDelay     time.Duration // Fixed delay before a failed task runs again
	WorkerCount    int           // Concurrent task executions
	AttemptTimeout time.Duration // Per-attempt deadline for one execution
	ClaimTTL       time.Duration // Single-flight claim lifetime
	BatchSize      int           // Max due tasks fetched per cycle
}

// DefaultSchedulerConfig returns the scheduler defaults. The 15 minute
// retry delay is deliberately fixed rather than exponential.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval:   5 * time.Second,
		RetryDelay:     15 * time.Minute,
		WorkerCount:    4,
		AttemptTimeout: 2 * time.Minute,
		ClaimTTL:       5 * time.Minute,
		BatchSize:      20,
	}
}

// Scheduler executes durable tasks. It polls the task table for due
// work, claims each task with a TTL'd single-flight lock per
// (kind, entry) key, runs the matching stage executor under a
// per-attempt timeout, and deletes or reschedules the task based on the
// executor's verdict.
//
// Crash safety falls out of durability: a task claimed by a process
// that died stays in the table, its claim expires, and the next poll
// cycle re-runs it through the idempotency-checked executor.
type Scheduler struct {
	tasks     repository.TaskRepository
	locks     repository.TaskLockRepository
	executors map[schedule.TaskKind]StageExecutor
	metrics   *metrics.Metrics
	cfg       SchedulerConfig
	log       Logger

	stopped chan struct{}
}

// NewScheduler wires the task scheduler. m may be nil.
func NewScheduler(
	tasks repository.TaskRepository,
	locks repository.TaskLockRepository,
	executors []StageExecutor,
	m *metrics.Metrics,
	cfg SchedulerConfig,
	log Logger,
) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = def.ClaimTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if log == nil {
		log = NopLogger{}
	}

	byKind := make(map[schedule.TaskKind]StageExecutor, len(executors))
	for _, x := range executors {
		byKind[x.Kind()] = x
	}
	return &Scheduler{
		tasks:     tasks,
		locks:     locks,
		executors: byKind,
		metrics:   m,
		cfg:       cfg,
		log:       log,
		stopped:   make(chan struct{}),
	}
}

// Run polls and executes tasks until ctx is cancelled. In-flight
// executions are waited for before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.stopped)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.WorkerCount)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			if _, err := s.locks.ReleaseExpired(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("expired claim cleanup failed: %v", err)
			}
			if err := s.pollOnce(ctx, &wg, sem); err != nil && ctx.Err() == nil {
				s.log.Error("poll cycle failed: %v", err)
			}
		}
	}
}

// Stopped is closed once Run has returned.
func (s *Scheduler) Stopped() <-chan struct{} { return s.stopped }

func (s *Scheduler) pollOnce(ctx context.Context, wg *sync.WaitGroup, sem chan struct{}) error {
	due, err := s.tasks.FindDue(ctx, time.Now().UTC(), s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("find due tasks: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TasksDue.Set(float64(len(due)))
	}

	for _, task := range due {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		wg.Add(1)
		go func(t *schedule.Task) {
			defer wg.Done()
			defer func() { <-sem }()
			s.ExecuteTask(ctx, t)
		}(task)
	}
	return nil
}

// ExecuteTask runs a single task through claim, execute and
// delete-or-reschedule. Exported for tests and one-shot CLI runs.
func (s *Scheduler) ExecuteTask(ctx context.Context, task *schedule.Task) {
	claimed, err := s.locks.Acquire(ctx, task.Key(), s.cfg.ClaimTTL)
	if err != nil {
		s.log.Error("claim %s failed: %v", task.Key(), err)
		return
	}
	if !claimed {
		if s.metrics != nil {
			s.metrics.TaskExecutions.WithLabelValues(string(task.Kind()), "skipped").Inc()
		}
		s.log.Debug("task %s already claimed, skipping", task.Key())
		return
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), task.Key()); err != nil {
			s.log.Warn("release claim %s failed: %v", task.Key(), err)
		}
	}()

	executor, ok := s.executors[task.Kind()]
	if !ok {
		s.log.Error("no executor for task kind %q, deleting task %s", task.Kind(), task.ID())
		if err := s.tasks.Delete(ctx, task.ID()); err != nil {
			s.log.Error("delete task %s failed: %v", task.ID(), err)
		}
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	start := time.Now()
	execErr := executor.Execute(attemptCtx, task)
	cancel()

	if s.metrics != nil {
		s.metrics.StageDuration.WithLabelValues(string(task.Kind())).Observe(time.Since(start).Seconds())
	}

	// Shutdown mid-attempt: leave the task untouched so the next poll
	// cycle (possibly of another process) picks it up again.
	if ctx.Err() != nil {
		return
	}

	if execErr != nil {
		notBefore := time.Now().UTC().Add(s.cfg.RetryDelay)
		if err := s.tasks.Reschedule(ctx, task.ID(), notBefore, task.Attempt()+1); err != nil {
			s.log.Error("reschedule task %s failed: %v", task.ID(), err)
			return
		}
		if s.metrics != nil {
			s.metrics.TaskExecutions.WithLabelValues(string(task.Kind()), "retried").Inc()
		}
		s.log.Warn("task %s failed, retrying at %s: %v", task.Key(), notBefore.Format(time.RFC3339), execErr)
		return
	}

	if err := s.tasks.Delete(ctx, task.ID()); err != nil {
		// The task survives; the idempotency guard makes the replay a
		// no-op.
		s.log.Error("delete task %s failed: %v", task.ID(), err)
		return
	}
	if s.metrics != nil {
		s.metrics.TaskExecutions.WithLabelValues(string(task.Kind()), "completed").Inc()
	}
	s.log.Debug("task %s completed", task.Key())
}
