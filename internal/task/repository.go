package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// taskColumns is the canonical column list for SELECT queries.
// Keep in sync with scanTaskRow.
const taskColumns = `id, user_id, name, description, script_type, script_content,
	script_path, enabled, metadata, created_at, updated_at`

// Repository defines the interface for task persistence.
//
// Every read and write except Create is scoped by owner: a task that does
// not exist and a task owned by another user both yield ErrTaskNotFound.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, ownerID, taskID string) (*Task, error)
	List(ctx context.Context, ownerID string) ([]Task, error)
	Update(ctx context.Context, ownerID, taskID string, patch *Patch) (*Task, error)
	Delete(ctx context.Context, ownerID, taskID string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed task repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new task. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = "task-" + uuid.NewString()[:8]
	}

	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Description, string(t.ScriptType),
		t.ScriptContent, t.ScriptPath, boolToInt(t.Enabled), metadata,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	return nil
}

// Get retrieves a task by ID, scoped to its owner.
func (r *SQLiteRepository) Get(ctx context.Context, ownerID, taskID string) (*Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`,
		taskID, ownerID,
	)
	return scanTaskRow(row)
}

// List retrieves all tasks owned by a user, newest first.
func (r *SQLiteRepository) List(ctx context.Context, ownerID string) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}

	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// Update applies a partial update and returns the updated task.
// Nil patch fields keep their stored values via COALESCE.
func (r *SQLiteRepository) Update(ctx context.Context, ownerID, taskID string, patch *Patch) (*Task, error) {
	var metadata any
	if patch.Metadata != nil {
		m, err := marshalMetadata(patch.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = m
	}

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET
			name = COALESCE(?, name),
			description = COALESCE(?, description),
			script_type = COALESCE(?, script_type),
			script_content = COALESCE(?, script_content),
			script_path = COALESCE(?, script_path),
			enabled = COALESCE(?, enabled),
			metadata = COALESCE(?, metadata),
			updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		nullableString(patch.Name), nullableString(patch.Description),
		nullableScriptType(patch.ScriptType), nullableString(patch.ScriptContent),
		nullableString(patch.ScriptPath), nullableBool(patch.Enabled),
		metadata, now, taskID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return nil, ErrTaskNotFound
	}

	return r.Get(ctx, ownerID, taskID)
}

// Delete removes a task. Execution history is removed with it via the
// ON DELETE CASCADE foreign key.
func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, taskID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`,
		taskID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Count returns the total number of tasks across all owners.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting tasks: %w", err)
	}
	return count, nil
}

// rowScanner is an interface for sql.Row and sql.Rows Scan methods.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTaskRow scans a task from any rowScanner (Row or Rows).
func scanTaskRow(s rowScanner) (*Task, error) {
	var t Task
	var scriptType, metadata, createdAt, updatedAt string
	var enabled int

	err := s.Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &scriptType,
		&t.ScriptContent, &t.ScriptPath, &enabled, &metadata, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.ScriptType = ScriptType(scriptType)
	t.Enabled = enabled != 0

	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
			return nil, fmt.Errorf("parsing task metadata: %w", err)
		}
	}

	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &t, nil
}

// Helper functions.

func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: metadata is not serialisable", ErrInvalidTask)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableScriptType(st *ScriptType) any {
	if st == nil {
		return nil
	}
	return string(*st)
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}
