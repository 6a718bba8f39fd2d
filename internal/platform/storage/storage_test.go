package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileRenamesIntoPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exports", "run-1.ach")

	art, err := WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello ach")
		return err
	})
	if err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello ach" {
		t.Fatalf("unexpected content %q %v", data, err)
	}
	if art.Bytes != int64(len("hello ach")) {
		t.Fatalf("expected %d bytes, got %d", len("hello ach"), art.Bytes)
	}
	sum, err := FileChecksum(path)
	if err != nil || sum != art.Checksum {
		t.Fatalf("checksum mismatch: %s vs %s (%v)", sum, art.Checksum, err)
	}
	if len(art.Checksum) != 16 {
		t.Fatalf("expected 16 hex characters, got %q", art.Checksum)
	}
}

func TestWriteFileLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-1.pdf")
	boom := errors.New("render failed")

	_, err := WriteFile(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected render error, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestWriteFileKeepsPreviousVersionOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-1.xlsx")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	_, err := WriteFile(path, func(w io.Writer) error { return errors.New("nope") })
	if err == nil {
		t.Fatal("expected error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "v1" {
		t.Fatalf("expected previous version kept, got %q", data)
	}
}
