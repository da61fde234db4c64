// Package api implements the HTTP REST API and WebSocket server for PolyAutomate.
//
// This package provides:
//   - REST endpoints for accounts, tasks, executions, plugins, and analytics
//   - WebSocket hub for real-time execution updates and log streaming
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limits)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between user interfaces and the task store + MQTT bus.
// Execution requests flow from the API to the automation engine via MQTT,
// and progress reports flow back via MQTT subscriptions which are fanned out
// to WebSocket clients joined to the execution's topic.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Security
//
// Authentication uses argon2id password hashes and HS256 JWT bearer tokens.
// Task and execution reads are owner-scoped: a record belonging to another
// user is indistinguishable from one that does not exist. WebSocket
// connections use single-use tickets to prevent token leakage in URLs, and
// execution topics require ownership of the underlying task to join.
//
// # Graceful Degradation
//
// The server operates without MQTT and without telemetry — reads, writes,
// and WebSocket connections work; only the engine handoff fails. This
// enables testing and partial operation.
package api
