// Package analytics answers aggregate questions about execution
// history: per-day counts, success rates, and a per-user overview.
//
// Everything here is read-only SQL over the tasks and task_executions
// tables, scoped to one owner. For time-series telemetry the service
// writes to InfluxDB instead; this package serves the REST reporting
// endpoints that need exact, queryable numbers.
package analytics
