package enginelink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Quantum-Fiend/PolyAutomate/internal/execution"
	"github.com/Quantum-Fiend/PolyAutomate/internal/infrastructure/mqtt"
	"github.com/Quantum-Fiend/PolyAutomate/internal/task"
)

// fakeMQTT records publishes and captures subscription handlers.
type fakeMQTT struct {
	mu         sync.Mutex
	published  []fakeMessage
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

type fakeMessage struct {
	topic   string
	payload []byte
	qos     byte
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, qos byte, _ bool) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, fakeMessage{topic: topic, payload: payload, qos: qos})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

// fakeTracker records tracker calls.
type fakeTracker struct {
	mu            sync.Mutex
	transitions   []trackerTransition
	logs          []string
	transitionErr error
}

type trackerTransition struct {
	executionID string
	status      execution.Status
	details     *execution.Result
}

func (f *fakeTracker) ReportTransition(_ context.Context, executionID string, newStatus execution.Status, details *execution.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, trackerTransition{executionID, newStatus, details})
	return f.transitionErr
}

func (f *fakeTracker) ReportLog(executionID, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, executionID+": "+line)
}

// ============================================================
// Dispatch
// ============================================================

func TestLink_Dispatch(t *testing.T) {
	client := newFakeMQTT()
	link := NewLink(client, &fakeTracker{})

	tsk := &task.Task{
		ID:            "task-1",
		ScriptType:    task.ScriptTypePython,
		ScriptContent: "print('hi')",
	}
	if err := link.Dispatch(context.Background(), tsk, "exec-1"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}
	msg := client.published[0]
	if msg.topic != "polyautomate/execution/dispatch" {
		t.Errorf("topic = %q, want polyautomate/execution/dispatch", msg.topic)
	}
	if msg.qos != 1 {
		t.Errorf("qos = %d, want 1", msg.qos)
	}

	var decoded dispatchMessage
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatalf("unmarshalling dispatch payload: %v", err)
	}
	if decoded.ExecutionID != "exec-1" || decoded.TaskID != "task-1" {
		t.Errorf("payload = %+v, want exec-1/task-1", decoded)
	}
	if decoded.ScriptType != "python" || decoded.ScriptContent != "print('hi')" {
		t.Errorf("script fields = %+v", decoded)
	}
}

func TestLink_Dispatch_PublishFailure(t *testing.T) {
	client := newFakeMQTT()
	client.publishErr = errors.New("not connected")
	link := NewLink(client, &fakeTracker{})

	err := link.Dispatch(context.Background(), &task.Task{ID: "task-1"}, "exec-1")
	if err == nil {
		t.Error("Dispatch() should surface the publish failure")
	}
}

// ============================================================
// Start / subscriptions
// ============================================================

func TestLink_Start_Subscribes(t *testing.T) {
	client := newFakeMQTT()
	link := NewLink(client, &fakeTracker{})

	if err := link.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, topic := range []string{
		"polyautomate/execution/report/+",
		"polyautomate/execution/log/+",
		"polyautomate/system/engine",
	} {
		if _, ok := client.handlers[topic]; !ok {
			t.Errorf("Start() did not subscribe to %s", topic)
		}
	}
}

// ============================================================
// Report handling
// ============================================================

func TestLink_HandleReport(t *testing.T) {
	client := newFakeMQTT()
	tracker := &fakeTracker{}
	link := NewLink(client, tracker)
	if err := link.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := client.handlers["polyautomate/execution/report/+"]
	exitCode := 1
	payload, _ := json.Marshal(reportMessage{ //nolint:errcheck // static fixture
		Status:   "failed",
		ExitCode: &exitCode,
		Stderr:   "boom",
	})

	if err := handler("polyautomate/execution/report/exec-9", payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if len(tracker.transitions) != 1 {
		t.Fatalf("recorded %d transitions, want 1", len(tracker.transitions))
	}
	tr := tracker.transitions[0]
	if tr.executionID != "exec-9" || tr.status != execution.StatusFailed {
		t.Errorf("transition = %+v, want exec-9/failed", tr)
	}
	if tr.details == nil || tr.details.ExitCode == nil || *tr.details.ExitCode != 1 {
		t.Errorf("details = %+v, want exit code 1", tr.details)
	}
	if tr.details.Stderr != "boom" {
		t.Errorf("Stderr = %q, want boom", tr.details.Stderr)
	}
}

func TestLink_HandleReport_MalformedDropped(t *testing.T) {
	client := newFakeMQTT()
	tracker := &fakeTracker{}
	link := NewLink(client, tracker)
	if err := link.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := client.handlers["polyautomate/execution/report/+"]

	// Garbage payload: logged and dropped, not an error.
	if err := handler("polyautomate/execution/report/exec-9", []byte("{not json")); err != nil {
		t.Errorf("handler error = %v, want nil for malformed payload", err)
	}
	// Topic with no execution id segment.
	if err := handler("polyautomate/execution/dispatch", []byte(`{"status":"running"}`)); err != nil {
		t.Errorf("handler error = %v, want nil for unparseable topic", err)
	}

	if len(tracker.transitions) != 0 {
		t.Errorf("recorded %d transitions, want 0", len(tracker.transitions))
	}
}

func TestLink_HandleReport_RejectedTransitionSwallowed(t *testing.T) {
	client := newFakeMQTT()
	tracker := &fakeTracker{transitionErr: execution.ErrInvalidTransition}
	link := NewLink(client, tracker)
	if err := link.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := client.handlers["polyautomate/execution/report/+"]
	err := handler("polyautomate/execution/report/exec-9", []byte(`{"status":"success"}`))
	if err != nil {
		t.Errorf("handler error = %v, rejected transitions must not break the subscription", err)
	}
}

// ============================================================
// Log handling
// ============================================================

func TestLink_HandleLog(t *testing.T) {
	client := newFakeMQTT()
	tracker := &fakeTracker{}
	link := NewLink(client, tracker)
	if err := link.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := client.handlers["polyautomate/execution/log/+"]

	if err := handler("polyautomate/execution/log/exec-9", []byte(`{"line":"step 1 done"}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	// Bare text payloads are tolerated.
	if err := handler("polyautomate/execution/log/exec-9", []byte("raw output")); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	want := []string{"exec-9: step 1 done", "exec-9: raw output"}
	if len(tracker.logs) != len(want) {
		t.Fatalf("recorded %d log lines, want %d", len(tracker.logs), len(want))
	}
	for i, w := range want {
		if tracker.logs[i] != w {
			t.Errorf("logs[%d] = %q, want %q", i, tracker.logs[i], w)
		}
	}
}

// ============================================================
// Engine status
// ============================================================

func TestLink_EngineStatus(t *testing.T) {
	client := newFakeMQTT()
	link := NewLink(client, &fakeTracker{})
	if err := link.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if link.EngineOnline() {
		t.Error("EngineOnline() = true before any announcement")
	}

	handler := client.handlers["polyautomate/system/engine"]
	if err := handler("polyautomate/system/engine", []byte("online")); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !link.EngineOnline() {
		t.Error("EngineOnline() = false after online announcement")
	}

	if err := handler("polyautomate/system/engine", []byte("offline")); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if link.EngineOnline() {
		t.Error("EngineOnline() = true after offline announcement")
	}
}
