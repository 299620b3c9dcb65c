package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestPendingCommit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	p, err := CreatePending(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Write([]byte("%PDF-")); err != nil {
		t.Fatal(err)
	}
	path, err := p.Commit("tiny-tale.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "tiny-tale.pdf") {
		t.Fatalf("unexpected path %q", path)
	}
	if err := p.Discard(); err != nil {
		t.Fatalf("discard after commit: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the committed file, got %d entries", len(entries))
	}
}

func TestPendingDiscardLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	p, err := CreatePending(dir)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = p.Write([]byte("partial"))
	if err := p.Discard(); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, got %d entries", len(entries))
	}
}
