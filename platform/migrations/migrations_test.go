package migrations

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrationsResolveVersionOne(t *testing.T) {
	source, err := iofs.New(files, "sql")
	if err != nil {
		t.Fatalf("unexpected error loading embedded migrations: %v", err)
	}
	defer source.Close()

	version, _, err := source.First()
	if err != nil {
		t.Fatalf("unexpected error reading first migration: %v", err)
	}
	if version != 1 {
		t.Errorf("expected the first migration to be version 1, got %d", version)
	}

	up, identifier, err := source.ReadUp(version)
	if err != nil {
		t.Fatalf("unexpected error reading up migration: %v", err)
	}
	defer up.Close()
	if identifier == "" {
		t.Error("expected a non-empty migration identifier")
	}

	if _, _, err := source.Next(version); err == nil {
		t.Error("expected no migration after version 1")
	}
}

func TestEmbeddedMigrationsHaveMatchingDownFile(t *testing.T) {
	source, err := iofs.New(files, "sql")
	if err != nil {
		t.Fatalf("unexpected error loading embedded migrations: %v", err)
	}
	defer source.Close()

	down, _, err := source.ReadDown(1)
	if err != nil {
		t.Fatalf("unexpected error reading down migration: %v", err)
	}
	defer down.Close()
}
