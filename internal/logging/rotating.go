// internal/logging/rotating.go
package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sync"
)

const maxBackups = 5

// RotatingWriter is an io.Writer that rotates the underlying file once it
// exceeds maxSize bytes. Rotated files are gzipped and numbered .1.gz (newest)
// through .5.gz (oldest).
type RotatingWriter struct {
	path    string
	maxSize int64

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotatingWriter opens (or creates) the log file at path.
func NewRotatingWriter(path string, maxSize int64) (*RotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}

	return &RotatingWriter{
		path:    path,
		maxSize: maxSize,
		file:    f,
		size:    info.Size(),
	}, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log: %w", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *RotatingWriter) rotate() error {
	w.file.Close()

	// Shift backups up: .5.gz is dropped, .4.gz -> .5.gz, ... .1.gz -> .2.gz.
	os.Remove(fmt.Sprintf("%s.%d.gz", w.path, maxBackups))
	for i := maxBackups - 1; i >= 1; i-- {
		os.Rename(
			fmt.Sprintf("%s.%d.gz", w.path, i),
			fmt.Sprintf("%s.%d.gz", w.path, i+1),
		)
	}

	// Compress the current file into .1.gz; fall back to a plain rename if
	// compression fails.
	if err := gzipFile(w.path, w.path+".1.gz"); err != nil {
		os.Rename(w.path, w.path+".1")
	} else {
		os.Remove(w.path)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	w.file = f
	w.size = 0
	return nil
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
