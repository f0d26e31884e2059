package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteToFileCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.txt")
	if err := WriteToFile(path, "one", "two"); err != nil {
		t.Fatalf("write: %v", err)
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(bs) != "one\ntwo\n" {
		t.Errorf("unexpected content %q", bs)
	}
}

func TestAppendToFileAccumulatesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "episodes.jsonl")
	if err := AppendToFile(path, "first"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := AppendToFile(path, "second"); err != nil {
		t.Fatalf("append: %v", err)
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(bs) != "first\nsecond\n" {
		t.Errorf("unexpected content %q", bs)
	}
}
