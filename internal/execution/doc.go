// Package execution tracks runs of automation tasks through the
// external engine.
//
// The service never runs scripts itself. A request inserts a pending
// record and hands the task to the engine over MQTT; the engine reports
// status transitions and log lines back, and the tracker validates them
// against the lifecycle graph:
//
//	pending → running → {success, failed}
//
// Success and failed are terminal. Reports for the same execution are
// serialised through a per-id mutex, and replaying an already-applied
// terminal status is a no-op so engine retries stay harmless.
//
// Execution history is append-only and owner-scoped on read: the REST
// surface reaches records only through the parent task's owner.
package execution
