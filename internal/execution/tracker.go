package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Quantum-Fiend/PolyAutomate/internal/task"
)

// Dispatcher hands a requested execution to the external engine.
// Implemented by the enginelink package.
type Dispatcher interface {
	Dispatch(ctx context.Context, t *task.Task, executionID string) error
}

// EventPublisher delivers events to execution topic subscribers.
// Implemented by the API hub; may be nil in tests.
type EventPublisher interface {
	Publish(topic, event string, payload any)
}

// MetricsWriter records execution telemetry. Implemented by the
// influxdb client; may be nil when telemetry is disabled.
type MetricsWriter interface {
	WriteExecutionMetric(taskID, status, triggeredBy string, durationMS float64)
}

// Logger defines the logging interface used by the Tracker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// dispatchTimeout bounds the async engine handoff so a stuck broker
// cannot accumulate goroutines.
const dispatchTimeout = 10 * time.Second

// Tracker owns the execution lifecycle state machine.
//
// Requests insert a pending record and hand the task to the engine
// asynchronously; the engine drives subsequent state via
// ReportTransition. Transitions for the same execution are serialised
// through a per-id mutex, so concurrent engine reports cannot interleave
// a read-validate-write cycle.
//
// Thread Safety: all methods are safe for concurrent use.
type Tracker struct {
	repo       Repository
	dispatcher Dispatcher
	events     EventPublisher
	metrics    MetricsWriter
	logger     Logger

	locks keyedMutex
}

// NewTracker creates an execution tracker.
//
// Parameters:
//   - repo: Execution persistence
//   - dispatcher: Engine handoff (may be nil; requests then stay pending
//     until an engine picks them up by other means)
//   - events: Topic event fan-out (may be nil)
//   - metrics: Telemetry writer (may be nil)
func NewTracker(repo Repository, dispatcher Dispatcher, events EventPublisher, metrics MetricsWriter) *Tracker {
	return &Tracker{
		repo:       repo,
		dispatcher: dispatcher,
		events:     events,
		metrics:    metrics,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the tracker.
func (tr *Tracker) SetLogger(logger Logger) {
	tr.logger = logger
}

// SetEvents sets the event publisher. Called during wiring, before any
// execution is requested; the hub that fans events out is constructed
// after the tracker.
func (tr *Tracker) SetEvents(events EventPublisher) {
	tr.events = events
}

// SetDispatcher sets the engine dispatcher. Called during wiring for
// the same reason as SetEvents.
func (tr *Tracker) SetDispatcher(dispatcher Dispatcher) {
	tr.dispatcher = dispatcher
}

// Request records a pending execution for a task and returns immediately.
//
// The engine handoff happens on a background goroutine; a dispatch
// failure is logged but does not fail the request, since the execution
// record already exists and the engine reconciles by re-reading state.
func (tr *Tracker) Request(ctx context.Context, t *task.Task, triggeredBy TriggeredBy) (*Execution, error) {
	if !t.Enabled {
		return nil, ErrTaskDisabled
	}
	if triggeredBy == "" {
		triggeredBy = TriggerManual
	}
	if !triggeredBy.IsValid() {
		return nil, fmt.Errorf("%w: unknown trigger %q", ErrInvalidStatus, triggeredBy)
	}

	exec := &Execution{
		TaskID:      t.ID,
		Status:      StatusPending,
		TriggeredBy: triggeredBy,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := tr.repo.Create(ctx, exec); err != nil {
		return nil, err
	}

	tr.logger.Info("execution requested",
		"execution_id", exec.ID,
		"task_id", t.ID,
		"triggered_by", string(triggeredBy),
	)

	if tr.dispatcher != nil {
		taskCopy := *t
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()

			if err := tr.dispatcher.Dispatch(dctx, &taskCopy, exec.ID); err != nil {
				tr.logger.Warn("engine dispatch failed",
					"execution_id", exec.ID,
					"task_id", taskCopy.ID,
					"error", err,
				)
			}
		}()
	}

	return exec, nil
}

// ReportTransition applies a status change reported by the engine.
//
// This is a trusted internal entrypoint: it is not owner-scoped. The
// move is validated against the lifecycle graph, persisted, and an
// execution_update event is published to the execution's topic before
// returning. Re-reporting an already-applied terminal status is a no-op,
// so engine retries are harmless.
//
// Returns:
//   - ErrExecutionNotFound if the ID is unknown
//   - ErrInvalidTransition if the lifecycle graph forbids the move
func (tr *Tracker) ReportTransition(ctx context.Context, executionID string, newStatus Status, details *Result) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	unlock := tr.locks.lock(executionID)
	defer unlock()

	exec, err := tr.repo.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	// Idempotent terminal replay.
	if exec.Status == newStatus && exec.Status.IsTerminal() {
		tr.logger.Debug("duplicate terminal report ignored",
			"execution_id", executionID, "status", string(newStatus))
		return nil
	}

	if !exec.Status.CanTransitionTo(newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, exec.Status, newStatus)
	}

	exec.Status = newStatus
	if newStatus.IsTerminal() {
		now := time.Now().UTC().Truncate(time.Second)
		exec.FinishedAt = &now
		duration := int(now.Sub(exec.StartedAt).Milliseconds())
		exec.DurationMS = &duration

		if details != nil {
			exec.ExitCode = details.ExitCode
			exec.Stdout = details.Stdout
			exec.Stderr = details.Stderr
			exec.ErrorMessage = details.ErrorMessage
		}
	}

	if err := tr.repo.Update(ctx, exec); err != nil {
		return err
	}

	// Subscribers see the update before the engine's report call returns.
	if tr.events != nil {
		tr.events.Publish(executionID, "execution_update", exec)
	}

	if newStatus.IsTerminal() && tr.metrics != nil {
		var durationMS float64
		if exec.DurationMS != nil {
			durationMS = float64(*exec.DurationMS)
		}
		tr.metrics.WriteExecutionMetric(exec.TaskID, string(newStatus), string(exec.TriggeredBy), durationMS)
	}

	tr.logger.Info("execution transitioned",
		"execution_id", executionID,
		"status", string(newStatus),
	)
	return nil
}

// ReportLog publishes a log line to the execution's topic.
// Log lines are fan-out only; they are never persisted.
func (tr *Tracker) ReportLog(executionID, line string) {
	if tr.events == nil {
		return
	}
	tr.events.Publish(executionID, "log_update", map[string]any{
		"execution_id": executionID,
		"line":         line,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Get retrieves an execution scoped to the owner of its parent task.
func (tr *Tracker) Get(ctx context.Context, ownerID, taskID, executionID string) (*Execution, error) {
	return tr.repo.Get(ctx, ownerID, taskID, executionID)
}

// List retrieves a task's executions, newest first, owner-scoped.
func (tr *Tracker) List(ctx context.Context, ownerID, taskID string, limit int) ([]Execution, error) {
	return tr.repo.List(ctx, ownerID, taskID, limit)
}

// keyedMutex serialises work per string key. Entries are reference
// counted and removed once the last holder releases, so the map does
// not grow with execution history.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*lockEntry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
