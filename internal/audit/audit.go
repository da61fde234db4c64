package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Well-known audit actions.
const (
	ActionUserRegister     = "user.register"
	ActionUserLogin        = "user.login"
	ActionTaskCreate       = "task.create"
	ActionTaskUpdate       = "task.update"
	ActionTaskDelete       = "task.delete"
	ActionExecutionRequest = "execution.request"
	ActionPluginCreate     = "plugin.create"
	ActionPluginUpdate     = "plugin.update"
	ActionPluginDelete     = "plugin.delete"
)

// Entity types referenced by audit entries.
const (
	EntityUser      = "user"
	EntityTask      = "task"
	EntityExecution = "execution"
	EntityPlugin    = "plugin"
)

const defaultListLimit = 100

// ErrEntryNotFound is returned when no audit entries match a lookup.
var ErrEntryNotFound = errors.New("audit: entry not found")

// Entry is one recorded activity.
type Entry struct {
	ID         int64          `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
}

// Repository defines the interface for activity log persistence.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]Entry, error)
}

// SQLiteRepository implements Repository using SQLite.
// The audit_log table is append-only; there is no update or delete path.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed audit repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record appends an activity entry. Timestamp and source are defaulted
// when unset.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC().Truncate(time.Second)
	}
	if e.Source == "" {
		e.Source = "api"
	}

	var details any
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = string(b)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (timestamp, action, entity_type, entity_id, user_id, source, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.Format(time.RFC3339), e.Action, e.EntityType,
		emptyToNull(e.EntityID), emptyToNull(e.UserID), e.Source, details,
	)
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}

	e.ID, _ = result.LastInsertId() //nolint:errcheck // always succeeds on SQLite
	return nil
}

// List returns the most recent entries, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, action, entity_type, entity_id, user_id, source, details
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListByEntity returns entries for one entity, newest first.
func (r *SQLiteRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, action, entity_type, entity_id, user_id, source, details
		 FROM audit_log WHERE entity_type = ? AND entity_id = ?
		 ORDER BY id DESC LIMIT ?`,
		entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var timestamp string
		var entityID, userID, details sql.NullString

		err := rows.Scan(&e.ID, &timestamp, &e.Action, &e.EntityType,
			&entityID, &userID, &e.Source, &details)
		if err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.Timestamp, _ = time.Parse(time.RFC3339, timestamp) //nolint:errcheck // format is controlled
		e.EntityID = entityID.String
		e.UserID = userID.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("parsing audit details: %w", err)
			}
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
