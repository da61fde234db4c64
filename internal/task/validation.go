package task

import (
	"fmt"
	"strings"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxDescriptionLen = 500
	maxScriptBytes    = 262144 // 256 KiB
	maxPathLength     = 255
	maxMetadataKeys   = 20
)

// Pre-computed validation set for O(1) script type lookups.
var validScriptTypes map[ScriptType]struct{}

func init() {
	validScriptTypes = make(map[ScriptType]struct{}, len(AllScriptTypes()))
	for _, st := range AllScriptTypes() {
		validScriptTypes[st] = struct{}{}
	}
}

// Validate performs comprehensive validation on a task.
// Returns an error describing the first validation failure found.
func Validate(t *Task) error {
	if t == nil {
		return ErrInvalidTask
	}

	if err := ValidateName(t.Name); err != nil {
		return err
	}

	if len(t.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidTask, maxDescriptionLen)
	}

	if _, ok := validScriptTypes[t.ScriptType]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidScriptType, t.ScriptType)
	}

	// A task needs something to run: inline content or an engine-side path.
	if strings.TrimSpace(t.ScriptContent) == "" && strings.TrimSpace(t.ScriptPath) == "" {
		return ErrNoScript
	}

	if len(t.ScriptContent) > maxScriptBytes {
		return fmt.Errorf("%w: script content exceeds %d bytes", ErrInvalidTask, maxScriptBytes)
	}
	if len(t.ScriptPath) > maxPathLength {
		return fmt.Errorf("%w: script path exceeds %d characters", ErrInvalidTask, maxPathLength)
	}

	if len(t.Metadata) > maxMetadataKeys {
		return fmt.Errorf("%w: metadata exceeds %d keys", ErrInvalidTask, maxMetadataKeys)
	}

	return nil
}

// ValidateName checks if a task name is valid.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidatePatch checks the fields a patch would change.
func ValidatePatch(p *Patch) error {
	if p == nil || p.IsEmpty() {
		return ErrEmptyPatch
	}

	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Description != nil && len(*p.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidTask, maxDescriptionLen)
	}
	if p.ScriptType != nil {
		if _, ok := validScriptTypes[*p.ScriptType]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidScriptType, *p.ScriptType)
		}
	}
	if p.ScriptContent != nil && len(*p.ScriptContent) > maxScriptBytes {
		return fmt.Errorf("%w: script content exceeds %d bytes", ErrInvalidTask, maxScriptBytes)
	}
	if p.ScriptPath != nil && len(*p.ScriptPath) > maxPathLength {
		return fmt.Errorf("%w: script path exceeds %d characters", ErrInvalidTask, maxPathLength)
	}
	if len(p.Metadata) > maxMetadataKeys {
		return fmt.Errorf("%w: metadata exceeds %d keys", ErrInvalidTask, maxMetadataKeys)
	}

	return nil
}
