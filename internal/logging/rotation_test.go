package logging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "test.log")

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter() error: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("log file not created: %v", err)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.log")
		if err := os.WriteFile(path, []byte("initial\n"), 0o644); err != nil {
			t.Fatalf("WriteFile() error: %v", err)
		}

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter() error: %v", err)
		}
		if rw.Size() != int64(len("initial\n")) {
			t.Errorf("Size() = %d, want %d", rw.Size(), len("initial\n"))
		}
		if _, err := rw.Write([]byte("more\n")); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
		_ = rw.Close()

		data, _ := os.ReadFile(path)
		if string(data) != "initial\nmore\n" {
			t.Errorf("content = %q", data)
		}
	})
}

// newTinyWriter returns a writer whose limit is a few bytes so every
// second write rotates.
func newTinyWriter(t *testing.T, backups int, compress bool) (*RotatingWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robosock.log")
	rw, err := NewRotatingWriter(path, RotationConfig{MaxBackups: backups, Compress: compress})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error: %v", err)
	}
	rw.limit = 10
	t.Cleanup(func() { _ = rw.Close() })
	return rw, path
}

func TestRotation(t *testing.T) {
	rw, path := newTinyWriter(t, 2, false)

	for _, line := range []string{"first-line\n", "second-line\n", "third-line\n", "fourth-line\n"} {
		if _, err := rw.Write([]byte(line)); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	tests := []struct {
		file string
		want string
	}{
		{path, "fourth-line\n"},
		{path + ".1", "third-line\n"},
		{path + ".2", "second-line\n"},
	}
	for _, tt := range tests {
		data, err := os.ReadFile(tt.file)
		if err != nil {
			t.Fatalf("ReadFile(%s) error: %v", filepath.Base(tt.file), err)
		}
		if string(data) != tt.want {
			t.Errorf("%s = %q, want %q", filepath.Base(tt.file), data, tt.want)
		}
	}

	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("backup beyond MaxBackups should have been deleted")
	}
}

func TestRotationWithoutBackups(t *testing.T) {
	rw, path := newTinyWriter(t, 0, false)

	_, _ = rw.Write([]byte("first-line\n"))
	_, _ = rw.Write([]byte("second-line\n"))

	data, _ := os.ReadFile(path)
	if string(data) != "second-line\n" {
		t.Errorf("content = %q, want only the latest line", data)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("no backup should exist when MaxBackups is 0")
	}
}

func TestRotationCompress(t *testing.T) {
	rw, path := newTinyWriter(t, 1, true)

	_, _ = rw.Write([]byte("first-line\n"))
	_, _ = rw.Write([]byte("second-line\n"))

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("uncompressed backup should be removed after compression")
	}

	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader() error: %v", err)
	}
	data, _ := io.ReadAll(zr)
	if !strings.Contains(string(data), "first-line") {
		t.Errorf("compressed backup = %q", data)
	}
}

func TestWriteAfterClose(t *testing.T) {
	rw, _ := newTinyWriter(t, 1, false)
	if err := rw.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("Write() after Close() should fail")
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
