// Package audit records user-visible activity to an append-only log.
//
// Register, login, task CRUD, execution requests, and plugin changes
// each leave an entry with the acting user, the touched entity, and an
// open JSON details document. Recording is best-effort through the
// Recorder; reads are for operators and debugging, not a user surface.
package audit
