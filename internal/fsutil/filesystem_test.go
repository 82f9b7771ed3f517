package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	path, err := WriteArtifact(OSFileSystem{}, dir, "summary.json", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}
	if path != filepath.Join(dir, "summary.json") {
		t.Errorf("path = %q, want %q", path, filepath.Join(dir, "summary.json"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("unexpected content %q", data)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// Returned slices must not alias stored data
	data[0] = 'H'
	again, _ := mfs.ReadFile("/test.txt")
	if string(again) != "hello, world" {
		t.Errorf("stored data was mutated: %q", again)
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("/missing.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_WriteRequiresParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/reports/a.png", []byte("x"), 0644); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}

	path, err := WriteArtifact(mfs, "/reports/run-1", "a.png", []byte("x"))
	if err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}
	if !mfs.Exists(path) {
		t.Errorf("expected %s to exist", path)
	}
	if !mfs.Exists("/reports") {
		t.Error("expected parent directories to be created")
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/out", 0755)
	_ = mfs.WriteFile("/out/b.html", nil, 0644)
	_ = mfs.WriteFile("/out/a.png", nil, 0644)
	_ = mfs.WriteFile("/other.txt", nil, 0644)

	got := mfs.Files("/out/")
	want := []string{"/out/a.png", "/out/b.html"}
	if len(got) != len(want) {
		t.Fatalf("Files() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Files()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
