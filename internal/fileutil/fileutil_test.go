package fileutil

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "synthSR.nii.gz")
	dst := filepath.Join(dir, "out", "T2AXI_synthSR.nii.gz")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := CopyFileVerified(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("%x", sha256.Sum256(content)); sum != want {
		t.Fatalf("digest = %s, want %s", sum, want)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(dst), ".*.tmp"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFileVerified_DirectorySource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyFileVerified(dir, filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for directory source")
	}
}

func TestWriteFileAtomicKeepsOldContentOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "T2AXI_qc.csv")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err := WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fill error, got %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "old" {
		t.Fatalf("expected old content, got %q", got)
	}
}

func TestWriteFileAtomicSetsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteFileAtomic(path, 0o640, func(w io.Writer) error {
		_, err := w.Write([]byte("a,b\n"))
		return err
	}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("mode = %o, want 640", info.Mode().Perm())
	}
}
