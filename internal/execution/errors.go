package execution

import "errors"

// Domain errors for the execution package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, execution.ErrInvalidTransition) {
//	    // reject the reported status change
//	}
var (
	// ErrExecutionNotFound is returned when an execution ID does not
	// exist, or when an owner-scoped lookup finds it under a task the
	// caller does not own.
	ErrExecutionNotFound = errors.New("execution: not found")

	// ErrInvalidTransition is returned when a reported status change is
	// not permitted by the lifecycle graph.
	ErrInvalidTransition = errors.New("execution: invalid transition")

	// ErrInvalidStatus is returned for an unknown lifecycle state.
	ErrInvalidStatus = errors.New("execution: invalid status")

	// ErrTaskDisabled is returned when requesting an execution for a
	// disabled task.
	ErrTaskDisabled = errors.New("execution: task disabled")
)
