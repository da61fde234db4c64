package audit

import "context"

// Logger defines the logging interface used by the Recorder.
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

// Recorder is a best-effort front for the audit repository.
//
// API handlers record activity through it; a failed write is logged and
// swallowed so an audit problem never fails the user-facing operation.
// A nil *Recorder is safe to call, which keeps wiring optional in tests.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder over the given repository.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record appends an entry, logging instead of returning on failure.
func (r *Recorder) Record(ctx context.Context, e *Entry) {
	if r == nil || r.repo == nil {
		return
	}
	if err := r.repo.Record(ctx, e); err != nil {
		r.logger.Error("audit record failed",
			"action", e.Action,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"error", err,
		)
	}
}
