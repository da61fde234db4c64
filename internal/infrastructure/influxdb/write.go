package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteExecutionMetric records the outcome of a task execution.
//
// This is the primary method for recording execution telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - taskID: The task the execution belongs to
//   - status: Final or current status (pending, running, success, failed)
//   - triggeredBy: What requested the execution (manual, api, schedule)
//   - durationMs: Wall-clock duration in milliseconds (0 if still running)
//
// Example:
//
//	client.WriteExecutionMetric("task-abc", "success", "manual", 1250)
func (c *Client) WriteExecutionMetric(taskID string, status string, triggeredBy string, durationMs float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"executions",
		map[string]string{
			"task_id":      taskID,
			"status":       status,
			"triggered_by": triggeredBy,
		},
		map[string]interface{}{
			"duration_ms": durationMs,
			"count":       1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteHTTPMetric records the latency of an API request.
//
// Used by the request logging middleware for API performance tracking.
//
// Parameters:
//   - method: HTTP method (GET, POST, ...)
//   - route: The matched route pattern, not the raw path
//   - status: HTTP response status code
//   - durationMs: Request handling time in milliseconds
func (c *Client) WriteHTTPMetric(method string, route string, status int, durationMs float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"http_requests",
		map[string]string{
			"method": method,
			"route":  route,
		},
		map[string]interface{}{
			"status":      status,
			"duration_ms": durationMs,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
