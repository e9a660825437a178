package db

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/pacigest/pacigest/migrations"
)

func sqlFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestLoad_SortsByVersion(t *testing.T) {
	files := fstest.MapFS{
		"010_payments.sql": sqlFile("SELECT 10;"),
		"002_patients.sql": sqlFile("SELECT 2;"),
		"001_core.sql":     sqlFile("CREATE TABLE users (id UUID PRIMARY KEY);"),
		"005_stats.sql":    sqlFile("SELECT 5;"),
	}

	got, err := NewMigrator(nil, files).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []int{1, 2, 5, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(got))
	}
	for i, v := range want {
		if got[i].Version != v {
			t.Errorf("migration[%d] version = %d, want %d", i, got[i].Version, v)
		}
	}
	if got[0].Name != "001_core.sql" || got[0].SQL != "CREATE TABLE users (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected first migration %+v", got[0])
	}
}

func TestLoad_SkipsUnversionedFiles(t *testing.T) {
	files := fstest.MapFS{
		"001_valid.sql":      sqlFile("SELECT 1;"),
		"readme.sql":         sqlFile("-- no prefix"),
		"notes.txt":          sqlFile("not sql"),
		"abc_invalid.sql":    sqlFile("-- non-numeric prefix"),
		"002_also_valid.sql": sqlFile("SELECT 2;"),
		"old/003_nested.sql": sqlFile("SELECT 3;"),
	}

	got, err := NewMigrator(nil, files).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].Version != 1 || got[1].Version != 2 {
		t.Errorf("expected versions 1 and 2, got %+v", got)
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":  sqlFile("SELECT 1;"),
		"001_other.sql": sqlFile("SELECT 1;"),
	}
	if _, err := NewMigrator(nil, files).Load(); err == nil {
		t.Error("expected an error for two files with version 1")
	}
}

func TestLoad_EmbeddedSchema(t *testing.T) {
	got, err := NewMigrator(nil, migrations.FS).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) == 0 || got[0].Version != 1 {
		t.Fatalf("expected the embedded core schema first, got %+v", got)
	}
}

func TestBuildStatus(t *testing.T) {
	migs := []Migration{
		{Version: 1, Name: "001_core.sql"},
		{Version: 2, Name: "002_reminders.sql"},
		{Version: 3, Name: "003_payments.sql"},
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	statuses := buildStatus(migs, map[int]time.Time{1: at})
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected 001 applied at %v, got %+v", at, statuses[0])
	}
	for _, s := range statuses[1:] {
		if s.Applied || s.AppliedAt != nil {
			t.Errorf("expected %s pending, got %+v", s.Name, s)
		}
	}
}

func TestPending(t *testing.T) {
	migs := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}
	at := time.Now()

	tests := []struct {
		name    string
		applied map[int]time.Time
		want    []int
	}{
		{"all pending", nil, []int{1, 2, 3, 4}},
		{"skips applied", map[int]time.Time{1: at, 3: at}, []int{2, 4}},
		{"nothing left", map[int]time.Time{1: at, 2: at, 3: at, 4: at}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pending(migs, tt.applied)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d pending, got %d", len(tt.want), len(got))
			}
			for i, v := range tt.want {
				if got[i].Version != v {
					t.Errorf("pending[%d] = %d, want %d", i, got[i].Version, v)
				}
			}
		})
	}
}
