package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_init_statements.sql", true, "0001", "init_statements"},
		{"0012_add_truncated_flag.sql", true, "0012", "add_truncated_flag"},
		{"001_too_short.sql", false, "", ""},
		{"0001_missing_extension", false, "", ""},
		{"0001.sql", false, "", ""},
		{"init_0001_wrong_order.sql", false, "", ""},
		{"README.md", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationPattern.FindStringSubmatch(tt.filename)
			if tt.valid {
				if matches == nil {
					t.Fatalf("expected %q to match", tt.filename)
				}
				if matches[1] != tt.version || matches[2] != tt.name {
					t.Errorf("got version %q name %q, want %q %q", matches[1], matches[2], tt.version, tt.name)
				}
			} else if matches != nil {
				t.Errorf("expected %q not to match, got %v", tt.filename, matches)
			}
		})
	}
}

func TestReadMigrationsOrdersAndSubstitutes(t *testing.T) {
	dir := t.TempDir()
	write := func(name, sql string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("0002_second.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id STRING);")
	write("0001_first.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id STRING);")
	write("notes.txt", "not a migration")

	migrations, err := readMigrations(dir, "proj", "ds")
	if err != nil {
		t.Fatal(err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("migrations out of order: %d then %d", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Name != "first" {
		t.Errorf("expected name %q, got %q", "first", migrations[0].Name)
	}

	want := "CREATE TABLE `proj.ds.a` (id STRING);"
	if migrations[0].SQL != want {
		t.Errorf("placeholder substitution failed:\n got %q\nwant %q", migrations[0].SQL, want)
	}
	if migrations[0].Checksum == "" {
		t.Error("expected a checksum")
	}
}

func TestReadMigrationsChecksumIgnoresSubstitution(t *testing.T) {
	sql := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id STRING);"

	dirA := t.TempDir()
	if err := os.WriteFile(filepath.Join(dirA, "0001_t.sql"), []byte(sql), 0o644); err != nil {
		t.Fatal(err)
	}

	one, err := readMigrations(dirA, "project-one", "ds1")
	if err != nil {
		t.Fatal(err)
	}
	two, err := readMigrations(dirA, "project-two", "ds2")
	if err != nil {
		t.Fatal(err)
	}

	if one[0].Checksum != two[0].Checksum {
		t.Error("checksum should cover the file as written, not the substituted SQL")
	}
	if one[0].SQL == two[0].SQL {
		t.Error("substituted SQL should differ between projects")
	}
}

func TestReadMigrationsMissingDirectory(t *testing.T) {
	if _, err := readMigrations(filepath.Join(t.TempDir(), "nope"), "p", "d"); err == nil {
		t.Fatal("expected an error for a missing migrations directory")
	}
}
