package mqtt

import "fmt"

// Topic prefixes for the PolyAutomate MQTT contract.
//
// All execution topics use the scheme: polyautomate/execution/{kind}[/{execution_id}]
// This matches what the external automation engine publishes and subscribes to.
const (
	// TopicPrefix is the base for all PolyAutomate topics.
	TopicPrefix = "polyautomate"

	// TopicPrefixExecution is the base for execution lifecycle topics.
	TopicPrefixExecution = "polyautomate/execution"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "polyautomate/system"
)

// Topics provides builders for PolyAutomate MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	reportTopic := topics.ExecutionReport("exec-abc123")
//	// Returns: "polyautomate/execution/report/exec-abc123"
type Topics struct{}

// ExecutionDispatch returns the topic for dispatching work to the engine.
// The control plane publishes here; the engine subscribes.
//
// Example: polyautomate/execution/dispatch
func (Topics) ExecutionDispatch() string {
	return fmt.Sprintf("%s/dispatch", TopicPrefixExecution)
}

// ExecutionReport returns the topic the engine reports status transitions on.
//
// Example: polyautomate/execution/report/exec-abc123
func (Topics) ExecutionReport(executionID string) string {
	return fmt.Sprintf("%s/report/%s", TopicPrefixExecution, executionID)
}

// ExecutionLog returns the topic the engine streams log lines on.
//
// Example: polyautomate/execution/log/exec-abc123
func (Topics) ExecutionLog(executionID string) string {
	return fmt.Sprintf("%s/log/%s", TopicPrefixExecution, executionID)
}

// SystemStatus returns the system status topic.
// The control plane publishes online/offline status here (including LWT).
//
// Example: polyautomate/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// EngineStatus returns the engine's status topic.
// The engine publishes its own online/offline status here.
//
// Example: polyautomate/system/engine
func (Topics) EngineStatus() string {
	return fmt.Sprintf("%s/engine", TopicPrefixSystem)
}

// AllExecutionReports returns a pattern matching all execution status reports.
//
// Pattern: polyautomate/execution/report/+
func (Topics) AllExecutionReports() string {
	return fmt.Sprintf("%s/report/+", TopicPrefixExecution)
}

// AllExecutionLogs returns a pattern matching all execution log streams.
//
// Pattern: polyautomate/execution/log/+
func (Topics) AllExecutionLogs() string {
	return fmt.Sprintf("%s/log/+", TopicPrefixExecution)
}

// AllTopics returns a pattern matching all PolyAutomate topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: polyautomate/#
func (Topics) AllTopics() string {
	return "polyautomate/#"
}

// ExecutionIDFromTopic extracts the execution id from a report or log topic.
// Returns an empty string if the topic does not carry an execution id suffix.
//
// Example: "polyautomate/execution/report/exec-abc123" -> "exec-abc123"
func ExecutionIDFromTopic(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			id := topic[i+1:]
			if id == "dispatch" || id == "+" {
				return ""
			}
			return id
		}
	}
	return ""
}
