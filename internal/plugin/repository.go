package plugin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// pluginColumns is the canonical column list for SELECT queries.
// Keep in sync with scanPluginRow.
const pluginColumns = `id, name, description, plugin_type, version, author,
	file_path, enabled, config, created_at, updated_at`

// Repository defines the interface for plugin persistence.
type Repository interface {
	Create(ctx context.Context, p *Plugin) error
	Get(ctx context.Context, id string) (*Plugin, error)
	List(ctx context.Context) ([]Plugin, error)
	Update(ctx context.Context, id string, patch *Patch) (*Plugin, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed plugin repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create registers a new plugin. The ID is generated if empty and the
// version defaults when unset.
func (r *SQLiteRepository) Create(ctx context.Context, p *Plugin) error {
	if err := Validate(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = "plg-" + uuid.NewString()[:8]
	}
	if p.Version == "" {
		p.Version = defaultVersion
	}

	config, err := marshalConfig(p.Config)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO plugins (`+pluginColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Type, p.Version, p.Author,
		p.FilePath, boolToInt(p.Enabled), config,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPluginExists
		}
		return fmt.Errorf("creating plugin: %w", err)
	}

	return nil
}

// Get retrieves a plugin by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Plugin, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pluginColumns+` FROM plugins WHERE id = ?`, id)
	return scanPluginRow(row)
}

// List retrieves all plugins ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Plugin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+pluginColumns+` FROM plugins ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing plugins: %w", err)
	}
	defer rows.Close()

	var plugins []Plugin
	for rows.Next() {
		p, err := scanPluginRow(rows)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plugins: %w", err)
	}

	if plugins == nil {
		plugins = []Plugin{}
	}
	return plugins, nil
}

// Update applies a partial update and returns the updated plugin.
func (r *SQLiteRepository) Update(ctx context.Context, id string, patch *Patch) (*Plugin, error) {
	if patch == nil || patch.IsEmpty() {
		return nil, fmt.Errorf("%w: empty patch", ErrInvalidPlugin)
	}

	var config any
	if patch.Config != nil {
		c, err := marshalConfig(patch.Config)
		if err != nil {
			return nil, err
		}
		config = c
	}

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE plugins SET
			name = COALESCE(?, name),
			description = COALESCE(?, description),
			plugin_type = COALESCE(?, plugin_type),
			version = COALESCE(?, version),
			author = COALESCE(?, author),
			file_path = COALESCE(?, file_path),
			enabled = COALESCE(?, enabled),
			config = COALESCE(?, config),
			updated_at = ?
		 WHERE id = ?`,
		nullableString(patch.Name), nullableString(patch.Description),
		nullableString(patch.Type), nullableString(patch.Version),
		nullableString(patch.Author), nullableString(patch.FilePath),
		nullableBool(patch.Enabled), config, now, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrPluginExists
		}
		return nil, fmt.Errorf("updating plugin: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return nil, ErrPluginNotFound
	}

	return r.Get(ctx, id)
}

// Delete removes a plugin registration.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plugins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting plugin: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPluginNotFound
	}
	return nil
}

// Count returns the number of registered plugins.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plugins").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting plugins: %w", err)
	}
	return count, nil
}

// rowScanner is an interface for sql.Row and sql.Rows Scan methods.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPluginRow scans a plugin from any rowScanner (Row or Rows).
func scanPluginRow(s rowScanner) (*Plugin, error) {
	var p Plugin
	var config, createdAt, updatedAt string
	var enabled int

	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Type, &p.Version,
		&p.Author, &p.FilePath, &enabled, &config, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPluginNotFound
		}
		return nil, fmt.Errorf("scanning plugin: %w", err)
	}

	p.Enabled = enabled != 0
	if config != "" && config != "{}" {
		if err := json.Unmarshal([]byte(config), &p.Config); err != nil {
			return nil, fmt.Errorf("parsing plugin config: %w", err)
		}
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}

// Helper functions.

func marshalConfig(c map[string]any) (string, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("%w: config is not serialisable", ErrInvalidPlugin)
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

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
