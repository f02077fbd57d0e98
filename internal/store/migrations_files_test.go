package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func migrationsDir() string {
	return filepath.Join("..", "..", "db", "migrations")
}

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir())
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected file in migrations dir: %s", entry.Name())
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatalf("no migrations found")
	}
	for version, directions := range byVersion {
		if !directions["up"] || !directions["down"] {
			t.Fatalf("migration %s is missing an up or down file", version)
		}
	}
}

func TestInitialMigrationCoversBoardHierarchy(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join(migrationsDir(), "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read initial migration: %v", err)
	}
	schema := string(contents)

	tables := []string{
		"users", "boards", "board_members", "board_columns", "labels",
		"sprints", "cards", "card_watchers", "card_labels",
		"checklist_items", "comments", "attachments",
	}
	for _, table := range tables {
		if !strings.Contains(schema, "CREATE TABLE "+table+" (") {
			t.Fatalf("initial migration missing table %s", table)
		}
	}
	// Positioned siblings cascade with their parent so resequencing only
	// ever sees surviving rows.
	for _, clause := range []string{
		"column_id TEXT NOT NULL REFERENCES board_columns(id) ON DELETE CASCADE",
		"card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE",
		"board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE",
	} {
		if !strings.Contains(schema, clause) {
			t.Fatalf("initial migration missing cascade clause %q", clause)
		}
	}
}
