package task

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the users and tasks
// schema applied. The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "task-test-*.db")
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
			script_type TEXT NOT NULL CHECK (script_type IN ('python', 'ruby', 'shell')),
			script_content TEXT NOT NULL DEFAULT '',
			script_path TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}

	return db
}

// seedTestOwner inserts a user row so task foreign keys resolve.
func seedTestOwner(t *testing.T, db *sql.DB, id string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO users (id, username, email, password_hash, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, 'hash', 1, '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`,
		id, id+"-name", id+"@example.com",
	)
	if err != nil {
		t.Fatalf("seeding owner %s: %v", id, err)
	}
}

// seedTestTask creates a valid task for the given owner and returns it.
func seedTestTask(t *testing.T, db *sql.DB, ownerID, name string) *Task {
	t.Helper()

	repo := NewRepository(db)
	tsk := &Task{
		UserID:        ownerID,
		Name:          name,
		ScriptType:    ScriptTypePython,
		ScriptContent: "print('hello')",
		Enabled:       true,
	}
	if err := repo.Create(context.Background(), tsk); err != nil {
		t.Fatalf("creating test task %s: %v", name, err)
	}
	return tsk
}
