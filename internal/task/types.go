package task

import "time"

// ScriptType identifies the interpreter the automation engine uses to run
// a task's script.
type ScriptType string

// Supported script types.
const (
	ScriptTypePython ScriptType = "python"
	ScriptTypeRuby   ScriptType = "ruby"
	ScriptTypeShell  ScriptType = "shell"
)

// AllScriptTypes returns every supported script type.
func AllScriptTypes() []ScriptType {
	return []ScriptType{ScriptTypePython, ScriptTypeRuby, ScriptTypeShell}
}

// Task represents a user-owned automation task.
//
// A task carries either inline script content or a path to a script file
// on the engine host (at least one must be set). Metadata is an open JSON
// document for caller-defined annotations; the service stores it verbatim
// and never interprets it.
type Task struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	ScriptType    ScriptType     `json:"script_type"`
	ScriptContent string         `json:"script_content,omitempty"`
	ScriptPath    string         `json:"script_path,omitempty"`
	Enabled       bool           `json:"enabled"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Patch describes a partial task update. Nil fields are left unchanged;
// a non-nil Metadata replaces the stored document wholesale.
type Patch struct {
	Name          *string        `json:"name,omitempty"`
	Description   *string        `json:"description,omitempty"`
	ScriptType    *ScriptType    `json:"script_type,omitempty"`
	ScriptContent *string        `json:"script_content,omitempty"`
	ScriptPath    *string        `json:"script_path,omitempty"`
	Enabled       *bool          `json:"enabled,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.ScriptType == nil &&
		p.ScriptContent == nil && p.ScriptPath == nil && p.Enabled == nil &&
		p.Metadata == nil
}
