package plugin

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// defaultVersion is assigned to plugins registered without one.
const defaultVersion = "0.1.0"

const (
	maxNameLength     = 100
	maxDescriptionLen = 500
)

// Domain errors for the plugin package.
var (
	// ErrPluginNotFound is returned when a plugin ID does not exist.
	ErrPluginNotFound = errors.New("plugin: not found")

	// ErrPluginExists is returned when registering a plugin whose name
	// is already taken.
	ErrPluginExists = errors.New("plugin: already exists")

	// ErrInvalidPlugin is returned when plugin validation fails.
	ErrInvalidPlugin = errors.New("plugin: invalid")
)

// Plugin describes an installed engine extension. The control plane
// only catalogues plugins; loading and running them is the engine's
// concern.
type Plugin struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"plugin_type"`
	Version     string         `json:"version"`
	Author      string         `json:"author,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
	Enabled     bool           `json:"enabled"`
	Config      map[string]any `json:"config,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Patch describes a partial plugin update. Nil fields are left
// unchanged; a non-nil Config replaces the stored document wholesale.
type Patch struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Type        *string        `json:"plugin_type,omitempty"`
	Version     *string        `json:"version,omitempty"`
	Author      *string        `json:"author,omitempty"`
	FilePath    *string        `json:"file_path,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Type == nil &&
		p.Version == nil && p.Author == nil && p.FilePath == nil &&
		p.Enabled == nil && p.Config == nil
}

// Validate checks the required plugin fields.
func Validate(p *Plugin) error {
	if p == nil {
		return ErrInvalidPlugin
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidPlugin)
	}
	if len(p.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidPlugin, maxNameLength)
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("%w: plugin_type cannot be empty", ErrInvalidPlugin)
	}
	if len(p.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidPlugin, maxDescriptionLen)
	}
	return nil
}
