// Package task manages user-owned automation tasks.
//
// A task describes a script (python, ruby, or shell) that the external
// automation engine runs on request. This package owns the task data
// model, validation, and the SQLite persistence layer; execution
// lifecycle tracking lives in the execution package.
//
// # Ownership
//
// Tasks are strictly owner-scoped. Every repository read and write takes
// the owner's user ID, and a lookup for a task that exists but belongs to
// someone else behaves exactly like a lookup for a task that does not
// exist: both return ErrTaskNotFound.
package task
