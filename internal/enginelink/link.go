package enginelink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Quantum-Fiend/PolyAutomate/internal/execution"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/mqtt"
	"github.com/Quantum-Fiend/PolyAutomate/internal/task"
)

// MQTTClient is the broker interface the link needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Tracker is the interface the link needs from the execution tracker.
type Tracker interface {
	ReportTransition(ctx context.Context, executionID string, newStatus execution.Status, details *execution.Result) error
	ReportLog(executionID, line string)
}

// Logger defines the logging interface used by the Link.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// reportTimeout bounds a single engine report's processing.
const reportTimeout = 5 * time.Second

// dispatchMessage is the payload published to the engine for a
// requested execution.
type dispatchMessage struct {
	ExecutionID   string `json:"execution_id"`
	TaskID        string `json:"task_id"`
	ScriptType    string `json:"script_type"`
	ScriptContent string `json:"script_content,omitempty"`
	ScriptPath    string `json:"script_path,omitempty"`
}

// reportMessage is a status transition reported by the engine.
type reportMessage struct {
	Status       string  `json:"status"`
	ExitCode     *int    `json:"exit_code,omitempty"`
	Stdout       string  `json:"stdout,omitempty"`
	Stderr       string  `json:"stderr,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// logMessage is a single script output line reported by the engine.
type logMessage struct {
	Line string `json:"line"`
}

// Link bridges the tracker and the external automation engine over MQTT.
//
// Outbound it publishes dispatch messages for requested executions;
// inbound it subscribes to per-execution report and log topics and feeds
// the tracker. The engine is the source of truth for script outcomes,
// but the tracker's lifecycle graph decides what it will accept.
//
// Thread Safety: all methods are safe for concurrent use.
type Link struct {
	mqtt    MQTTClient
	tracker Tracker
	topics  mqtt.Topics
	logger  Logger

	engineOnline atomic.Bool
}

// NewLink creates an engine link over the given broker client.
func NewLink(client MQTTClient, tracker Tracker) *Link {
	return &Link{
		mqtt:    client,
		tracker: tracker,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the link.
func (l *Link) SetLogger(logger Logger) {
	l.logger = logger
}

// Start subscribes to the engine's report, log, and status topics.
// Call after the MQTT client has connected; the client restores the
// subscriptions itself on reconnect.
func (l *Link) Start() error {
	if err := l.mqtt.Subscribe(l.topics.AllExecutionReports(), 1, l.handleReport); err != nil {
		return fmt.Errorf("subscribing to execution reports: %w", err)
	}
	if err := l.mqtt.Subscribe(l.topics.AllExecutionLogs(), 0, l.handleLog); err != nil {
		return fmt.Errorf("subscribing to execution logs: %w", err)
	}
	if err := l.mqtt.Subscribe(l.topics.EngineStatus(), 1, l.handleEngineStatus); err != nil {
		return fmt.Errorf("subscribing to engine status: %w", err)
	}

	l.logger.Info("engine link started")
	return nil
}

// Dispatch publishes an execution request to the engine.
// Implements the tracker's Dispatcher interface.
func (l *Link) Dispatch(_ context.Context, t *task.Task, executionID string) error {
	msg := dispatchMessage{
		ExecutionID:   executionID,
		TaskID:        t.ID,
		ScriptType:    string(t.ScriptType),
		ScriptContent: t.ScriptContent,
		ScriptPath:    t.ScriptPath,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling dispatch: %w", err)
	}

	if err := l.mqtt.Publish(l.topics.ExecutionDispatch(), payload, 1, false); err != nil {
		return fmt.Errorf("publishing dispatch: %w", err)
	}

	l.logger.Debug("execution dispatched",
		"execution_id", executionID,
		"task_id", t.ID,
	)
	return nil
}

// EngineOnline reports the engine's last announced status.
func (l *Link) EngineOnline() bool {
	return l.engineOnline.Load()
}

// handleReport processes one status transition from the engine.
func (l *Link) handleReport(topic string, payload []byte) error {
	executionID := mqtt.ExecutionIDFromTopic(topic)
	if executionID == "" {
		l.logger.Warn("report on unparseable topic, dropped", "topic", topic)
		return nil
	}

	var msg reportMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		l.logger.Warn("malformed engine report, dropped",
			"execution_id", executionID, "error", err)
		return nil
	}

	details := &execution.Result{
		ExitCode:     msg.ExitCode,
		Stdout:       msg.Stdout,
		Stderr:       msg.Stderr,
		ErrorMessage: msg.ErrorMessage,
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	err := l.tracker.ReportTransition(ctx, executionID, execution.Status(msg.Status), details)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, execution.ErrInvalidTransition), errors.Is(err, execution.ErrInvalidStatus):
		// The engine reconciles by re-reading state over REST; rejecting
		// here must not unsubscribe or crash anything.
		l.logger.Warn("engine report rejected",
			"execution_id", executionID,
			"status", msg.Status,
			"error", err,
		)
		return nil
	case errors.Is(err, execution.ErrExecutionNotFound):
		l.logger.Warn("report for unknown execution, dropped",
			"execution_id", executionID)
		return nil
	default:
		return fmt.Errorf("applying engine report: %w", err)
	}
}

// handleLog forwards one script output line to topic subscribers.
func (l *Link) handleLog(topic string, payload []byte) error {
	executionID := mqtt.ExecutionIDFromTopic(topic)
	if executionID == "" {
		l.logger.Warn("log on unparseable topic, dropped", "topic", topic)
		return nil
	}

	// Engines send {"line": "..."}; tolerate bare text payloads.
	var msg logMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Line == "" {
		msg.Line = string(payload)
	}

	l.tracker.ReportLog(executionID, msg.Line)
	return nil
}

// handleEngineStatus tracks the engine's retained online/offline announcement.
func (l *Link) handleEngineStatus(_ string, payload []byte) error {
	online := string(payload) == "online"
	l.engineOnline.Store(online)
	l.logger.Info("engine status changed", "online", online)
	return nil
}
