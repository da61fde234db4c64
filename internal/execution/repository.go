package execution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// List limits. Callers asking for more than maxListLimit are clamped;
// zero or negative means defaultListLimit.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// executionColumns is the canonical column list for SELECT queries.
// Keep in sync with scanExecutionRow.
const executionColumns = `id, task_id, status, triggered_by, exit_code, stdout,
	stderr, error_message, duration_ms, started_at, finished_at`

// Repository defines the interface for execution persistence.
//
// GetByID and Update are unscoped trusted entrypoints used by the
// tracker when applying engine reports; Get and List are owner-scoped
// through a join on the parent task.
type Repository interface {
	Create(ctx context.Context, e *Execution) error
	GetByID(ctx context.Context, executionID string) (*Execution, error)
	Get(ctx context.Context, ownerID, taskID, executionID string) (*Execution, error)
	List(ctx context.Context, ownerID, taskID string, limit int) ([]Execution, error)
	Update(ctx context.Context, e *Execution) error
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed execution repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new execution record. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Execution) error {
	if e.ID == "" {
		e.ID = "exec-" + uuid.NewString()[:8]
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO task_executions (`+executionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, string(e.Status), string(e.TriggeredBy),
		nullableInt(e.ExitCode), e.Stdout, e.Stderr,
		nullableString(e.ErrorMessage), nullableInt(e.DurationMS),
		e.StartedAt.Format(time.RFC3339), nullableTime(e.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("creating execution: %w", err)
	}

	return nil
}

// GetByID retrieves an execution without owner scoping. Trusted internal
// use only; the REST surface goes through Get.
func (r *SQLiteRepository) GetByID(ctx context.Context, executionID string) (*Execution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM task_executions WHERE id = ?`,
		executionID,
	)
	return scanExecutionRow(row)
}

// Get retrieves an execution scoped to the owner of its parent task.
// A miss and a foreign-owned execution are indistinguishable.
func (r *SQLiteRepository) Get(ctx context.Context, ownerID, taskID, executionID string) (*Execution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.task_id, e.status, e.triggered_by, e.exit_code, e.stdout,
			e.stderr, e.error_message, e.duration_ms, e.started_at, e.finished_at
		 FROM task_executions e
		 JOIN tasks t ON t.id = e.task_id
		 WHERE e.id = ? AND e.task_id = ? AND t.user_id = ?`,
		executionID, taskID, ownerID,
	)
	return scanExecutionRow(row)
}

// List retrieves executions for a task, newest first, scoped to the
// task's owner. The limit is defaulted and clamped per the package
// constants.
func (r *SQLiteRepository) List(ctx context.Context, ownerID, taskID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.task_id, e.status, e.triggered_by, e.exit_code, e.stdout,
			e.stderr, e.error_message, e.duration_ms, e.started_at, e.finished_at
		 FROM task_executions e
		 JOIN tasks t ON t.id = e.task_id
		 WHERE e.task_id = ? AND t.user_id = ?
		 ORDER BY e.started_at DESC, e.id DESC
		 LIMIT ?`,
		taskID, ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		e, err := scanExecutionRow(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}

	if executions == nil {
		executions = []Execution{}
	}
	return executions, nil
}

// Update persists the mutable lifecycle fields of an execution.
func (r *SQLiteRepository) Update(ctx context.Context, e *Execution) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE task_executions SET
			status = ?, exit_code = ?, stdout = ?, stderr = ?,
			error_message = ?, duration_ms = ?, finished_at = ?
		 WHERE id = ?`,
		string(e.Status), nullableInt(e.ExitCode), e.Stdout, e.Stderr,
		nullableString(e.ErrorMessage), nullableInt(e.DurationMS),
		nullableTime(e.FinishedAt), e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating execution: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrExecutionNotFound
	}
	return nil
}

// CountByStatus returns execution counts grouped by lifecycle state,
// across all tasks. Used by the metrics snapshot.
func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM task_executions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting executions: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning execution count: %w", err)
		}
		counts[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating execution counts: %w", err)
	}

	return counts, nil
}

// rowScanner is an interface for sql.Row and sql.Rows Scan methods.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanExecutionRow scans an execution from any rowScanner (Row or Rows).
func scanExecutionRow(s rowScanner) (*Execution, error) {
	var e Execution
	var status, triggeredBy, startedAt string
	var exitCode, durationMS sql.NullInt64
	var errorMessage, finishedAt sql.NullString

	err := s.Scan(&e.ID, &e.TaskID, &status, &triggeredBy, &exitCode,
		&e.Stdout, &e.Stderr, &errorMessage, &durationMS, &startedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("scanning execution: %w", err)
	}

	e.Status = Status(status)
	e.TriggeredBy = TriggeredBy(triggeredBy)

	if exitCode.Valid {
		v := int(exitCode.Int64)
		e.ExitCode = &v
	}
	if durationMS.Valid {
		v := int(durationMS.Int64)
		e.DurationMS = &v
	}
	if errorMessage.Valid {
		e.ErrorMessage = &errorMessage.String
	}

	e.StartedAt, _ = time.Parse(time.RFC3339, startedAt) //nolint:errcheck // format is controlled
	if finishedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finishedAt.String) //nolint:errcheck // format is controlled
		e.FinishedAt = &t
	}

	return &e, nil
}

// Helper functions.

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
