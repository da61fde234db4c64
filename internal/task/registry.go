package task

import (
	"context"
	"fmt"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// Registry provides owner-scoped task management.
// It wraps a Repository and adds validation and defaulting; all reads and
// writes pass the caller's owner ID through to the repository so a user
// can never observe another user's tasks.
type Registry struct {
	repo   Repository
	logger Logger
}

// NewRegistry creates a new task registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Create validates and persists a new task. The caller sets UserID and
// Enabled; the repository generates the ID and timestamps.
func (r *Registry) Create(ctx context.Context, t *Task) error {
	if t != nil && t.UserID == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidTask)
	}
	if err := Validate(t); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, t); err != nil {
		return err
	}

	r.logger.Info("task created", "id", t.ID, "user_id", t.UserID, "name", t.Name)
	return nil
}

// Get retrieves a task by ID for the given owner.
func (r *Registry) Get(ctx context.Context, ownerID, taskID string) (*Task, error) {
	return r.repo.Get(ctx, ownerID, taskID)
}

// List retrieves all tasks owned by a user, newest first.
func (r *Registry) List(ctx context.Context, ownerID string) ([]Task, error) {
	return r.repo.List(ctx, ownerID)
}

// Update validates and applies a partial update, returning the result.
func (r *Registry) Update(ctx context.Context, ownerID, taskID string, patch *Patch) (*Task, error) {
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}

	updated, err := r.repo.Update(ctx, ownerID, taskID, patch)
	if err != nil {
		return nil, err
	}

	r.logger.Info("task updated", "id", taskID, "user_id", ownerID)
	return updated, nil
}

// Delete removes a task and its execution history.
func (r *Registry) Delete(ctx context.Context, ownerID, taskID string) error {
	if err := r.repo.Delete(ctx, ownerID, taskID); err != nil {
		return err
	}

	r.logger.Info("task deleted", "id", taskID, "user_id", ownerID)
	return nil
}
