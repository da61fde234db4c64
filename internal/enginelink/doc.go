// Package enginelink connects the control plane to the external
// automation engine over MQTT.
//
// Topic contract:
//
//	polyautomate/execution/dispatch      outbound execution requests
//	polyautomate/execution/report/{id}   inbound status transitions
//	polyautomate/execution/log/{id}      inbound script output lines
//	polyautomate/system/engine           retained engine online/offline
//
// Inbound reports are best-effort: malformed payloads are logged and
// dropped, and transitions the lifecycle graph rejects are logged
// without interrupting the subscription. The engine is expected to
// reconcile by re-reading execution state over REST.
package enginelink
