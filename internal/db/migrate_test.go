package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}

	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Fatalf("expected matching up/down migrations, got up=%d down=%d", up, down)
	}

	b, err := fs.ReadFile(migrationsFS, "migrations/000001_create_submissions.up.sql")
	if err != nil {
		t.Fatalf("read first migration: %v", err)
	}
	if !strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS submissions") {
		t.Fatal("first migration should create the submissions table")
	}
}
