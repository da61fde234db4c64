package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Quantum-Fiend/PolyAutomate/internal/audit"
	"github.com/Quantum-Fiend/PolyAutomate/internal/execution"
	"github.com/Quantum-Fiend/PolyAutomate/internal/task"
)

// createTaskRequest is the request body for POST /api/tasks.
// Enabled is a pointer so an absent field defaults to true while an
// explicit false is honoured.
type createTaskRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	ScriptType    task.ScriptType `json:"script_type"`
	ScriptContent string          `json:"script_content"`
	ScriptPath    string          `json:"script_path"`
	Enabled       *bool           `json:"enabled"`
	Metadata      map[string]any  `json:"metadata"`
}

// executeTaskRequest is the optional request body for POST /api/tasks/{id}/execute.
type executeTaskRequest struct {
	TriggeredBy execution.TriggeredBy `json:"triggered_by"`
}

// handleListTasks returns all tasks owned by the caller.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// handleCreateTask creates a new task owned by the caller.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	t := &task.Task{
		UserID:        userIDFrom(r.Context()),
		Name:          req.Name,
		Description:   req.Description,
		ScriptType:    req.ScriptType,
		ScriptContent: req.ScriptContent,
		ScriptPath:    req.ScriptPath,
		Enabled:       enabled,
		Metadata:      req.Metadata,
	}
	if err := s.tasks.Create(r.Context(), t); err != nil {
		writeDomainError(w, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		Action:     audit.ActionTaskCreate,
		EntityType: audit.EntityTask,
		EntityID:   t.ID,
		UserID:     t.UserID,
		Details:    map[string]any{"name": t.Name, "script_type": string(t.ScriptType)},
	})

	writeJSON(w, http.StatusCreated, t)
}

// handleGetTask returns a single task owned by the caller.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTask applies a partial update to a task owned by the caller.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch task.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ownerID := userIDFrom(r.Context())
	taskID := chi.URLParam(r, "id")

	t, err := s.tasks.Update(r.Context(), ownerID, taskID, &patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		Action:     audit.ActionTaskUpdate,
		EntityType: audit.EntityTask,
		EntityID:   t.ID,
		UserID:     ownerID,
	})

	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTask deletes a task owned by the caller.
// Execution history cascades with the task.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID := userIDFrom(r.Context())
	taskID := chi.URLParam(r, "id")

	if err := s.tasks.Delete(r.Context(), ownerID, taskID); err != nil {
		writeDomainError(w, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		Action:     audit.ActionTaskDelete,
		EntityType: audit.EntityTask,
		EntityID:   taskID,
		UserID:     ownerID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": taskID,
	})
}

// handleExecuteTask requests an execution of a task owned by the caller.
//
// The execution record is returned in pending state; progress is
// delivered over the WebSocket execution topic.
func (s *Server) handleExecuteTask(w http.ResponseWriter, r *http.Request) {
	ownerID := userIDFrom(r.Context())
	taskID := chi.URLParam(r, "id")

	t, err := s.tasks.Get(r.Context(), ownerID, taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Trigger source is optional; an empty body means manual.
	var req executeTaskRequest
	if r.Body != nil {
		//nolint:errcheck // Absent or empty body falls back to the default trigger
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.TriggeredBy != "" && !req.TriggeredBy.IsValid() {
		writeValidationError(w, "triggered_by must be one of: manual, api, schedule")
		return
	}

	exec, err := s.tracker.Request(r.Context(), t, req.TriggeredBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		Action:     audit.ActionExecutionRequest,
		EntityType: audit.EntityExecution,
		EntityID:   exec.ID,
		UserID:     ownerID,
		Details:    map[string]any{"task_id": taskID, "triggered_by": string(exec.TriggeredBy)},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"execution": exec,
	})
}

// handleListExecutions returns recent executions of a task owned by the
// caller, newest first. The limit defaults to 50 and is capped at 200.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	execs, err := s.tracker.List(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": execs,
		"count":      len(execs),
	})
}

// handleGetExecution returns a single execution of a task owned by the caller.
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.tracker.Get(r.Context(),
		userIDFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "execID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}
