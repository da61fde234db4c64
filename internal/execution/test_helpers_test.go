package execution

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Quantum-Fiend/PolyAutomate/internal/task"
)

// testDB creates a temporary SQLite database with the schema the
// execution package touches (users, tasks, task_executions).
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "execution-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			script_type TEXT NOT NULL,
			script_content TEXT NOT NULL DEFAULT '',
			script_path TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE task_executions (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'pending',
			triggered_by TEXT NOT NULL DEFAULT 'manual',
			exit_code INTEGER,
			stdout TEXT NOT NULL DEFAULT '',
			stderr TEXT NOT NULL DEFAULT '',
			error_message TEXT,
			duration_ms INTEGER,
			started_at TEXT NOT NULL,
			finished_at TEXT
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}

	return db
}

// seedOwnerAndTask inserts a user and one task owned by them.
func seedOwnerAndTask(t *testing.T, db *sql.DB, ownerID, taskID string) *task.Task {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, 'hash', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`,
		ownerID, ownerID+"-name", ownerID+"@example.com",
	)
	if err != nil {
		t.Fatalf("seeding owner %s: %v", ownerID, err)
	}

	_, err = db.Exec(
		`INSERT INTO tasks (id, user_id, name, script_type, script_content, created_at, updated_at)
		 VALUES (?, ?, 'test task', 'shell', 'echo ok', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`,
		taskID, ownerID,
	)
	if err != nil {
		t.Fatalf("seeding task %s: %v", taskID, err)
	}

	return &task.Task{
		ID:            taskID,
		UserID:        ownerID,
		Name:          "test task",
		ScriptType:    task.ScriptTypeShell,
		ScriptContent: "echo ok",
		Enabled:       true,
	}
}

// seedExecution inserts a pending execution via the repository.
func seedExecution(t *testing.T, db *sql.DB, taskID string) *Execution {
	t.Helper()

	repo := NewRepository(db)
	exec := &Execution{
		TaskID:      taskID,
		Status:      StatusPending,
		TriggeredBy: TriggerManual,
	}
	if err := repo.Create(context.Background(), exec); err != nil {
		t.Fatalf("seeding execution: %v", err)
	}
	return exec
}
