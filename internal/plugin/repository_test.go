package plugin

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "plugin-test-*.db")
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
		CREATE TABLE plugins (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			plugin_type TEXT NOT NULL,
			version TEXT NOT NULL DEFAULT '0.1.0',
			author TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			config TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}

	return db
}

func seedPlugin(t *testing.T, repo Repository, name string) *Plugin {
	t.Helper()

	p := &Plugin{
		Name:    name,
		Type:    "notifier",
		Author:  "dev",
		Enabled: true,
		Config:  map[string]any{"channel": "#ops"},
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("creating plugin %s: %v", name, err)
	}
	return p
}

func TestRepository_Create(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	p := seedPlugin(t, repo, "slack")

	if p.ID == "" {
		t.Error("Create() should generate an ID")
	}
	if p.Version != defaultVersion {
		t.Errorf("Version = %q, want default %q", p.Version, defaultVersion)
	}

	got, err := repo.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "slack" || got.Type != "notifier" {
		t.Errorf("plugin = %+v", got)
	}
	if got.Config["channel"] != "#ops" {
		t.Errorf("Config = %v, want channel=#ops", got.Config)
	}
}

func TestRepository_Create_DuplicateName(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	seedPlugin(t, repo, "slack")

	dup := &Plugin{Name: "slack", Type: "notifier"}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, ErrPluginExists) {
		t.Errorf("Create() error = %v, want ErrPluginExists", err)
	}
}

func TestRepository_Create_Invalid(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	tests := []struct {
		name   string
		plugin *Plugin
	}{
		{"empty name", &Plugin{Type: "notifier"}},
		{"empty type", &Plugin{Name: "slack"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(context.Background(), tt.plugin); !errors.Is(err, ErrInvalidPlugin) {
				t.Errorf("Create() error = %v, want ErrInvalidPlugin", err)
			}
		})
	}
}

func TestRepository_Get_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	if _, err := repo.Get(context.Background(), "plg-missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() error = %v, want ErrPluginNotFound", err)
	}
}

func TestRepository_List_OrderedByName(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	seedPlugin(t, repo, "zulip")
	seedPlugin(t, repo, "email")
	seedPlugin(t, repo, "slack")

	plugins, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"email", "slack", "zulip"}
	if len(plugins) != len(want) {
		t.Fatalf("List() = %d plugins, want %d", len(plugins), len(want))
	}
	for i, name := range want {
		if plugins[i].Name != name {
			t.Errorf("plugins[%d].Name = %q, want %q", i, plugins[i].Name, name)
		}
	}
}

func TestRepository_Update(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	p := seedPlugin(t, repo, "slack")

	version := "1.2.0"
	enabled := false
	updated, err := repo.Update(context.Background(), p.ID, &Patch{
		Version: &version,
		Enabled: &enabled,
		Config:  map[string]any{"channel": "#alerts"},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Version != "1.2.0" {
		t.Errorf("Version = %q, want 1.2.0", updated.Version)
	}
	if updated.Enabled {
		t.Error("Enabled = true, want false")
	}
	if updated.Config["channel"] != "#alerts" {
		t.Errorf("Config = %v, want channel=#alerts", updated.Config)
	}
	// Untouched fields survive.
	if updated.Name != "slack" || updated.Type != "notifier" {
		t.Errorf("plugin = %+v, name/type should be unchanged", updated)
	}
}

func TestRepository_Update_NotFoundAndEmptyPatch(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	p := seedPlugin(t, repo, "slack")

	version := "2.0.0"
	if _, err := repo.Update(context.Background(), "plg-missing", &Patch{Version: &version}); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Update() error = %v, want ErrPluginNotFound", err)
	}
	if _, err := repo.Update(context.Background(), p.ID, &Patch{}); !errors.Is(err, ErrInvalidPlugin) {
		t.Errorf("Update(empty patch) error = %v, want ErrInvalidPlugin", err)
	}
}

func TestRepository_Delete(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	p := seedPlugin(t, repo, "slack")

	if err := repo.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(context.Background(), p.ID); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrPluginNotFound", err)
	}
	if err := repo.Delete(context.Background(), p.ID); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrPluginNotFound", err)
	}
}

func TestRepository_Count(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	seedPlugin(t, repo, "slack")
	seedPlugin(t, repo, "email")

	count, err = repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}
