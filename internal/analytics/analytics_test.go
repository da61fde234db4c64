package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "analytics-test-*.db")
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

func seedOwnerAndTask(t *testing.T, db *sql.DB, ownerID, taskID string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, 'hash', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`,
		ownerID, ownerID+"-name", ownerID+"@example.com")
	if err != nil {
		t.Fatalf("seeding owner: %v", err)
	}
	_, err = db.Exec(
		`INSERT INTO tasks (id, user_id, name, script_type, created_at, updated_at)
		 VALUES (?, ?, 'task', 'shell', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`,
		taskID, ownerID)
	if err != nil {
		t.Fatalf("seeding task: %v", err)
	}
}

var execSeq int

func seedExecution(t *testing.T, db *sql.DB, taskID, status string, startedAt time.Time, durationMS int) {
	t.Helper()

	execSeq++
	_, err := db.Exec(
		`INSERT INTO task_executions (id, task_id, status, triggered_by, duration_ms, started_at)
		 VALUES (?, ?, ?, 'manual', ?, ?)`,
		fmt.Sprintf("exec-seed-%d", execSeq), taskID, status, durationMS,
		startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("seeding execution: %v", err)
	}
}

func TestService_ExecutionsPerDay(t *testing.T) {
	db := testDB(t)
	svc := NewService(db)
	seedOwnerAndTask(t, db, "usr-1", "task-1")
	seedOwnerAndTask(t, db, "usr-2", "task-2")

	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1)

	seedExecution(t, db, "task-1", "success", now, 100)
	seedExecution(t, db, "task-1", "failed", now, 50)
	seedExecution(t, db, "task-1", "success", yesterday, 80)
	// Another user's executions stay invisible.
	seedExecution(t, db, "task-2", "success", now, 10)

	stats, err := svc.ExecutionsPerDay(context.Background(), "usr-1", 7)
	if err != nil {
		t.Fatalf("ExecutionsPerDay() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d days, want 2", len(stats))
	}

	// Oldest first.
	if stats[0].Date != yesterday.Format("2006-01-02") {
		t.Errorf("stats[0].Date = %s, want %s", stats[0].Date, yesterday.Format("2006-01-02"))
	}
	if stats[0].Total != 1 || stats[0].Success != 1 {
		t.Errorf("yesterday = %+v, want 1 success", stats[0])
	}
	if stats[1].Total != 2 || stats[1].Success != 1 || stats[1].Failed != 1 {
		t.Errorf("today = %+v, want total 2, success 1, failed 1", stats[1])
	}
}

func TestService_ExecutionsPerDay_WindowExcludesOld(t *testing.T) {
	db := testDB(t)
	svc := NewService(db)
	seedOwnerAndTask(t, db, "usr-1", "task-1")

	seedExecution(t, db, "task-1", "success", time.Now().UTC(), 10)
	seedExecution(t, db, "task-1", "success", time.Now().UTC().AddDate(0, 0, -30), 10)

	stats, err := svc.ExecutionsPerDay(context.Background(), "usr-1", 7)
	if err != nil {
		t.Fatalf("ExecutionsPerDay() error = %v", err)
	}
	if len(stats) != 1 {
		t.Errorf("got %d days, want 1 (old execution outside window)", len(stats))
	}
}

func TestService_SuccessRate(t *testing.T) {
	db := testDB(t)
	svc := NewService(db)
	seedOwnerAndTask(t, db, "usr-1", "task-1")

	now := time.Now().UTC()
	seedExecution(t, db, "task-1", "success", now, 10)
	seedExecution(t, db, "task-1", "success", now, 10)
	seedExecution(t, db, "task-1", "success", now, 10)
	seedExecution(t, db, "task-1", "failed", now, 10)
	// Non-terminal executions are excluded from the ratio.
	seedExecution(t, db, "task-1", "pending", now, 0)
	seedExecution(t, db, "task-1", "running", now, 0)

	sr, err := svc.SuccessRate(context.Background(), "usr-1")
	if err != nil {
		t.Fatalf("SuccessRate() error = %v", err)
	}
	if sr.Total != 4 || sr.Success != 3 || sr.Failed != 1 {
		t.Errorf("SuccessRate() = %+v, want total 4, success 3, failed 1", sr)
	}
	if math.Abs(sr.Rate-0.75) > 1e-9 {
		t.Errorf("Rate = %v, want 0.75", sr.Rate)
	}
}

func TestService_SuccessRate_NoCompletedExecutions(t *testing.T) {
	db := testDB(t)
	svc := NewService(db)
	seedOwnerAndTask(t, db, "usr-1", "task-1")

	sr, err := svc.SuccessRate(context.Background(), "usr-1")
	if err != nil {
		t.Fatalf("SuccessRate() error = %v", err)
	}
	if sr.Total != 0 || sr.Rate != 0 {
		t.Errorf("SuccessRate() = %+v, want zeros", sr)
	}
}

func TestService_Overview(t *testing.T) {
	db := testDB(t)
	svc := NewService(db)
	seedOwnerAndTask(t, db, "usr-1", "task-1")

	now := time.Now().UTC().Truncate(time.Second)
	seedExecution(t, db, "task-1", "success", now.Add(-time.Hour), 100)
	seedExecution(t, db, "task-1", "failed", now, 300)

	ov, err := svc.Overview(context.Background(), "usr-1")
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if ov.TaskCount != 1 {
		t.Errorf("TaskCount = %d, want 1", ov.TaskCount)
	}
	if ov.ExecutionCount != 2 {
		t.Errorf("ExecutionCount = %d, want 2", ov.ExecutionCount)
	}
	if ov.ByStatus["success"] != 1 || ov.ByStatus["failed"] != 1 {
		t.Errorf("ByStatus = %v", ov.ByStatus)
	}
	if math.Abs(ov.AvgDurationMS-200) > 1e-9 {
		t.Errorf("AvgDurationMS = %v, want 200", ov.AvgDurationMS)
	}
	if ov.LastExecution == nil || !ov.LastExecution.Equal(now) {
		t.Errorf("LastExecution = %v, want %v", ov.LastExecution, now)
	}
}

func TestService_Overview_EmptyUser(t *testing.T) {
	db := testDB(t)
	svc := NewService(db)
	seedOwnerAndTask(t, db, "usr-1", "task-1")

	_, err := db.Exec(
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		 VALUES ('usr-empty', 'empty', 'empty@example.com', 'hash', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	ov, err := svc.Overview(context.Background(), "usr-empty")
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if ov.TaskCount != 0 || ov.ExecutionCount != 0 {
		t.Errorf("Overview() = %+v, want zeros", ov)
	}
	if ov.LastExecution != nil {
		t.Errorf("LastExecution = %v, want nil", ov.LastExecution)
	}
}
