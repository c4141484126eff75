package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/linnemanlabs/go-core/log"
)

func TestClean(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", ".gitkeep"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	var out bytes.Buffer
	if err := clean(context.Background(), log.Nop(), &out, dir); err != nil {
		t.Fatalf("clean: %v", err)
	}

	want := "Cleaned the '" + dir + "' directory.\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != ".gitkeep" {
		t.Errorf("remaining entries = %v, want only .gitkeep", entries)
	}
}

func TestClean_MissingDir(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	dir := filepath.Join(t.TempDir(), "tickets-triaged")
	if err := clean(context.Background(), log.Nop(), &out, dir); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if out.Len() == 0 {
		t.Error("expected confirmation message")
	}
}

func TestValidateDir(t *testing.T) {
	t.Parallel()

	if err := validateDir(""); err == nil {
		t.Error("expected error for empty dir")
	}
	if err := validateDir("tickets-triaged"); err != nil {
		t.Errorf("validateDir: %v", err)
	}
}
