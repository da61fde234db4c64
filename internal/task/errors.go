package task

import "errors"

// Domain errors for the task package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, task.ErrTaskNotFound) {
//	    // handle not found case
//	}
var (
	// ErrTaskNotFound is returned when a task ID does not exist or is
	// owned by a different user. The two cases are indistinguishable.
	ErrTaskNotFound = errors.New("task: not found")

	// ErrInvalidTask is returned when task validation fails.
	ErrInvalidTask = errors.New("task: invalid")

	// ErrInvalidName is returned when a task name is empty or too long.
	ErrInvalidName = errors.New("task: invalid name")

	// ErrInvalidScriptType is returned for an unsupported script type.
	ErrInvalidScriptType = errors.New("task: invalid script type")

	// ErrNoScript is returned when a task has neither inline script
	// content nor a script path.
	ErrNoScript = errors.New("task: no script")

	// ErrEmptyPatch is returned when an update changes nothing.
	ErrEmptyPatch = errors.New("task: empty patch")
)
