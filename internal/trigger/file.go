//go:build !darwin

// internal/trigger/file.go
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventTypeFileChanged is the event type produced for filesystem changes.
const EventTypeFileChanged = "file_changed"

// File watches paths for filesystem changes using fsnotify. OnEvent policy:
// results are swallowed; failures are only logged.
type File struct {
	Dispatcher

	watchPaths     []string
	ignorePatterns []string
	debounce       time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}

	pendMu  sync.Mutex
	pending map[string]*time.Timer
}

// NewFile creates a file trigger. Options: watch_paths (required),
// ignore_patterns (glob against the basename), debounce_seconds.
func NewFile(cfg map[string]any, logger *slog.Logger) (*File, error) {
	paths := stringSliceOption(cfg, "watch_paths")
	if len(paths) == 0 {
		return nil, fmt.Errorf("file trigger requires watch_paths")
	}

	return &File{
		Dispatcher:     newDispatcher(TypeFile, logger),
		watchPaths:     paths,
		ignorePatterns: stringSliceOption(cfg, "ignore_patterns"),
		debounce:       time.Duration(intOption(cfg, "debounce_seconds", 0)) * time.Second,
		pending:        make(map[string]*time.Timer),
	}, nil
}

// Start creates the watcher and adds every watch path. If any path cannot be
// watched, the watcher is closed again and the trigger stays not-running.
func (f *File) Start(ctx context.Context) error {
	if f.Running() {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	for _, p := range f.watchPaths {
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return fmt.Errorf("watching %s: %w", p, err)
		}
	}

	f.watcher = watcher
	f.done = make(chan struct{})
	go f.loop(ctx, watcher, f.done)

	f.setRunning(true)
	f.logger.Info("file watcher started", "paths", f.watchPaths)
	return nil
}

// loop takes the watcher and done channel as parameters rather than reading
// them off the struct, so Stop can clear the fields while a handler is still
// mid-dispatch.
func (f *File) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			f.handleFSEvent(ctx, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Stop cancels pending debounce timers and closes the watcher. Safe to call
// on an already-stopped trigger.
func (f *File) Stop() error {
	if !f.Running() {
		return nil
	}
	f.setRunning(false)

	f.pendMu.Lock()
	for path, timer := range f.pending {
		timer.Stop()
		delete(f.pending, path)
	}
	f.pendMu.Unlock()

	close(f.done)
	err := f.watcher.Close()
	f.watcher = nil
	if err != nil {
		return fmt.Errorf("closing filesystem watcher: %w", err)
	}
	return nil
}

func (f *File) handleFSEvent(ctx context.Context, ev fsnotify.Event) {
	var op string
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = "create"
	case ev.Op&fsnotify.Write != 0:
		op = "write"
	case ev.Op&fsnotify.Remove != 0:
		op = "remove"
	case ev.Op&fsnotify.Rename != 0:
		op = "rename"
	default:
		return
	}

	name := filepath.Base(ev.Name)
	for _, pattern := range f.ignorePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return
		}
	}

	if f.debounce > 0 {
		f.debounceFire(ctx, ev.Name, op)
		return
	}
	f.fire(ctx, ev.Name, op)
}

// debounceFire coalesces rapid changes to the same path, firing once after
// the debounce window closes.
func (f *File) debounceFire(ctx context.Context, path, op string) {
	f.pendMu.Lock()
	defer f.pendMu.Unlock()

	if timer, ok := f.pending[path]; ok {
		timer.Stop()
	}
	f.pending[path] = time.AfterFunc(f.debounce, func() {
		f.pendMu.Lock()
		delete(f.pending, path)
		f.pendMu.Unlock()
		if f.Running() {
			f.fire(ctx, path, op)
		}
	})
}

func (f *File) fire(ctx context.Context, path, op string) {
	event, err := NewEvent(EventTypeFileChanged, TypeFile, map[string]any{
		"path": path,
		"name": filepath.Base(path),
		"op":   op,
	})
	if err != nil {
		return
	}
	f.OnEvent(ctx, event)
}
