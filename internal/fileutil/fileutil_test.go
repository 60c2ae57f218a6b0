package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteNew(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "clase.wav")

	n, err := WriteNew(dst, strings.NewReader("hello world"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 11 {
		t.Fatalf("written = %d, want 11", n)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestWriteNew_RefusesExisting(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "clase.wav")
	if err := os.WriteFile(dst, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteNew(dst, strings.NewReader("replacement"), 0); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "original" {
		t.Fatalf("existing file overwritten: %q", got)
	}
}

func TestWriteNew_Limit(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "big.wav")

	if _, err := WriteNew(dst, strings.NewReader("12345"), 5); err != nil {
		t.Fatalf("content at the limit rejected: %v", err)
	}
	dst2 := filepath.Join(dir, "bigger.wav")
	if _, err := WriteNew(dst2, strings.NewReader("123456"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := os.Stat(dst2); !os.IsNotExist(err) {
		t.Fatal("oversized content left on disk")
	}
}

func TestStageCommitRetriesUnderAnotherName(t *testing.T) {
	dir := t.TempDir()
	taken := filepath.Join(dir, "clase.wav")
	if err := os.WriteFile(taken, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}

	staged, err := Stage(dir, strings.NewReader("second"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer staged.Discard()

	if err := staged.Commit(taken); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	alt := filepath.Join(dir, "clase-1.wav")
	if err := staged.Commit(alt); err != nil {
		t.Fatal(err)
	}
	staged.Discard()

	got, err := os.ReadFile(alt)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" || staged.Size != 6 {
		t.Fatalf("unexpected staged content %q (size %d)", got, staged.Size)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("expected only the two committed files, got %d entries", len(entries))
	}
}
