package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestVersionLine(t *testing.T) {
	if got := versionLine(false); !strings.HasPrefix(got, "v") {
		t.Fatalf("expected semver-like version, got %q", got)
	}
	if got := versionLine(true); !strings.HasPrefix(got, "studiosync@") {
		t.Fatalf("expected release id, got %q", got)
	}
}

func TestWriteVersionFileSkipsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "VERSION")
	if err := writeVersionFile(path, "v1.2.3"); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "v1.2.3\n" {
		t.Fatalf("unexpected content %q", data)
	}
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := writeVersionFile(path, "v1.2.3"); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.ModTime().Equal(past) {
		t.Fatalf("expected unchanged file to keep mtime")
	}
	if err := writeVersionFile(path, "v1.2.4"); err != nil {
		t.Fatalf("update: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "v1.2.4\n" {
		t.Fatalf("expected updated content, got %q", data)
	}
}
