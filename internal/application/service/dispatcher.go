package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
	"github.com/kalinpl/dreamlog/internal/infrastructure/metrics"
)

// DispatcherConfig tunes the outbox relay loop.
type DispatcherConfig struct {
	PollInterval time.Duration // How often to look for undispatched events
	BatchSize    int           // Max events relayed per cycle
}

// DefaultDispatcherConfig returns the relay defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PollInterval: 2 * time.Second,
		BatchSize:    50,
	}
}

// Dispatcher is the event side of the pipeline: it relays committed
// outbox events into scheduled tasks (stage hand-off) and notifications.
// Because it only ever sees committed rows, stage N+1 can never be
// scheduled for a write that rolled back.
type Dispatcher struct {
	outbox   repository.OutboxRepository
	tasks    repository.TaskRepository
	tx       output.TransactionManager
	notifier output.NotificationPort
	metrics  *metrics.Metrics
	cfg      DispatcherConfig
	log      Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewDispatcher wires the outbox relay. notifier and m may be nil.
func NewDispatcher(
	outbox repository.OutboxRepository,
	tasks repository.TaskRepository,
	tx output.TransactionManager,
	notifier output.NotificationPort,
	m *metrics.Metrics,
	cfg DispatcherConfig,
	log Logger,
) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultDispatcherConfig().PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultDispatcherConfig().BatchSize
	}
	if log == nil {
		log = NopLogger{}
	}
	return &Dispatcher{
		outbox:   outbox,
		tasks:    tasks,
		tx:       tx,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		log:      log,
		stopped:  make(chan struct{}),
	}
}

// Run relays events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.stopped)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
				d.log.Error("outbox relay cycle failed: %v", err)
			}
		}
	}
}

// Stopped is closed once Run has returned.
func (d *Dispatcher) Stopped() <-chan struct{} { return d.stopped }

// DispatchPending relays one batch of undispatched events. Exported so
// tests and the scheduler CLI can drive the relay without the loop.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	events, err := d.outbox.FindUndispatched(ctx, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("find undispatched events: %w", err)
	}
	for _, ev := range events {
		if err := d.dispatch(ctx, ev); err != nil {
			// Leave the event undispatched; the next cycle retries it.
			d.log.Error("dispatch event %s (%s) failed: %v", ev.ID(), ev.Kind(), err)
			continue
		}
		if d.metrics != nil {
			d.metrics.EventsDispatched.WithLabelValues(string(ev.Kind())).Inc()
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev *schedule.Event) error {
	now := time.Now().UTC()
	switch ev.Kind() {
	case schedule.EventEntryCreated:
		return d.scheduleStage(ctx, ev, schedule.TaskKindAnalyze, now)

	case schedule.EventAnalysisCompleted:
		return d.scheduleStage(ctx, ev, schedule.TaskKindGenerateImage, now)

	case schedule.EventImageCompleted:
		if err := d.outbox.MarkDispatched(ctx, ev.ID(), now); err != nil {
			return fmt.Errorf("mark dispatched: %w", err)
		}
		d.notify(ctx, ev, entry.StateCompleted, "dream image is ready")
		return nil

	case schedule.EventProcessingFailed:
		if err := d.outbox.MarkDispatched(ctx, ev.ID(), now); err != nil {
			return fmt.Errorf("mark dispatched: %w", err)
		}
		if d.metrics != nil {
			d.metrics.TerminalFailures.Inc()
		}
		d.log.Error("pipeline terminally failed: entry=%s attempts=%s reason=%s",
			ev.EntryID(), ev.Payload()["attempts"], ev.Payload()["reason"])
		d.notify(ctx, ev, entry.StateFailed, ev.Payload()["reason"])
		return nil

	default:
		// Unknown kinds are marked dispatched so they cannot wedge the
		// relay forever.
		d.log.Error("unknown event kind %q, discarding: event=%s", ev.Kind(), ev.ID())
		return d.outbox.MarkDispatched(ctx, ev.ID(), now)
	}
}

// scheduleStage inserts the next stage's task and marks the event
// dispatched in one transaction, so an event is consumed exactly when
// its task becomes durable.
func (d *Dispatcher) scheduleStage(ctx context.Context, ev *schedule.Event, kind schedule.TaskKind, now time.Time) error {
	task, err := schedule.NewTask(kind, ev.EntryID(), now)
	if err != nil {
		return err
	}
	err = d.tx.InTransaction(ctx, func(txCtx context.Context) error {
		if err := d.tasks.Schedule(txCtx, task); err != nil {
			return fmt.Errorf("schedule %s task: %w", kind, err)
		}
		return d.outbox.MarkDispatched(txCtx, ev.ID(), now)
	})
	if err != nil {
		return err
	}
	d.log.Info("%s task scheduled: entry=%s", kind, ev.EntryID())
	return nil
}

// notify is fire-and-forget: notification failures are logged, never
// surfaced into pipeline state.
func (d *Dispatcher) notify(ctx context.Context, ev *schedule.Event, state entry.ProcessingState, message string) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, ev.EntryID(), state, message); err != nil {
		d.log.Warn("notification failed for entry=%s: %v", ev.EntryID(), err)
	}
}
