// internal/logging/rotating_test.go
package logging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriterCreatesAndWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "adwd.log")

	w, err := NewRotatingWriter(logPath, 1024*1024)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	msg := "event dispatched\n"
	if _, err := w.Write([]byte(msg)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != msg {
		t.Errorf("expected %q in log file, got %q", msg, string(data))
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "adwd.log")

	w, err := NewRotatingWriter(logPath, 100)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	line := strings.Repeat("x", 60) + "\n"
	for i := 0; i < 4; i++ {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	rotated := logPath + ".1.gz"
	f, err := os.Open(rotated)
	if err != nil {
		t.Fatalf("expected rotated file %s: %v", rotated, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("rotated file is not gzip: %v", err)
	}
	content, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("reading rotated content: %v", err)
	}
	if !strings.Contains(string(content), "x") {
		t.Error("rotated file missing original content")
	}

	// Current file starts fresh after rotation.
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() > 200 {
		t.Errorf("current log not reset after rotation: %d bytes", info.Size())
	}
}

func TestRotatingWriterAppendsOnReopen(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "adwd.log")

	w, err := NewRotatingWriter(logPath, 1024)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	w.Write([]byte("first\n"))
	w.Close()

	w, err = NewRotatingWriter(logPath, 1024)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	w.Write([]byte("second\n"))
	w.Close()

	data, _ := os.ReadFile(logPath)
	if string(data) != "first\nsecond\n" {
		t.Errorf("expected appended content, got %q", string(data))
	}
}
