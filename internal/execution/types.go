package execution

import "time"

// Status represents the lifecycle state of an execution.
type Status string

// Execution lifecycle states.
//
// The lifecycle is pending → running → {success, failed}. Success and
// failed are terminal; no transition leaves them.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// validTransitions is the lifecycle graph. Absent keys have no outgoing
// edges (terminal states).
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning},
	StatusRunning: {StatusSuccess, StatusFailed},
}

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransitionTo reports whether the lifecycle graph permits moving
// from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// TriggeredBy records what initiated an execution.
type TriggeredBy string

// Trigger sources.
const (
	TriggerManual   TriggeredBy = "manual"
	TriggerAPI      TriggeredBy = "api"
	TriggerSchedule TriggeredBy = "schedule"
)

// IsValid reports whether t is a known trigger source.
func (t TriggeredBy) IsValid() bool {
	switch t {
	case TriggerManual, TriggerAPI, TriggerSchedule:
		return true
	}
	return false
}

// Execution is one run of a task through the external engine.
// Rows are append-only history; they are never deleted except by the
// cascade when their parent task is removed.
type Execution struct {
	ID           string      `json:"id"`
	TaskID       string      `json:"task_id"`
	Status       Status      `json:"status"`
	TriggeredBy  TriggeredBy `json:"triggered_by"`
	ExitCode     *int        `json:"exit_code,omitempty"`
	Stdout       string      `json:"stdout,omitempty"`
	Stderr       string      `json:"stderr,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	DurationMS   *int        `json:"duration_ms,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
}

// Result carries the outcome details the engine reports alongside a
// terminal transition. All fields are optional; a transition to running
// carries none.
type Result struct {
	ExitCode     *int    `json:"exit_code,omitempty"`
	Stdout       string  `json:"stdout,omitempty"`
	Stderr       string  `json:"stderr,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}
