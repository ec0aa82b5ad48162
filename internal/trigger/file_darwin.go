//go:build darwin

// internal/trigger/file_darwin.go
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsevents"
)

// EventTypeFileChanged is the event type produced for filesystem changes.
const EventTypeFileChanged = "file_changed"

// File watches paths for filesystem changes using macOS FSEvents. FSEvents
// watches path strings rather than file descriptors, so it tolerates volume
// mounts and paths that do not exist yet. OnEvent policy: results are
// swallowed; failures are only logged.
type File struct {
	Dispatcher

	watchPaths     []string
	ignorePatterns []string
	debounce       time.Duration

	stream *fsevents.EventStream
	done   chan struct{}

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

	var resolved []string
	for _, p := range paths {
		if r, err := filepath.EvalSymlinks(p); err == nil {
			p = r
		}
		resolved = append(resolved, p)
	}

	return &File{
		Dispatcher:     newDispatcher(TypeFile, logger),
		watchPaths:     resolved,
		ignorePatterns: stringSliceOption(cfg, "ignore_patterns"),
		debounce:       time.Duration(intOption(cfg, "debounce_seconds", 0)) * time.Second,
		pending:        make(map[string]*time.Timer),
	}, nil
}

// Start opens the FSEvents stream and begins consuming its batches.
func (f *File) Start(ctx context.Context) error {
	if f.Running() {
		return nil
	}

	stream := &fsevents.EventStream{
		Paths:   f.watchPaths,
		Latency: 0,
		Flags:   fsevents.FileEvents | fsevents.WatchRoot | fsevents.NoDefer,
	}
	f.stream = stream
	f.done = make(chan struct{})
	stream.Start()

	go f.loop(ctx, stream, f.done)

	f.setRunning(true)
	f.logger.Info("file watcher started", "paths", f.watchPaths)
	return nil
}

// loop takes the stream and done channel as parameters rather than reading
// them off the struct, so Stop can clear the fields while a handler is still
// mid-dispatch.
func (f *File) loop(ctx context.Context, stream *fsevents.EventStream, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case batch := <-stream.Events:
			for _, ev := range batch {
				f.handleFSEvent(ctx, ev)
			}
		}
	}
}

// Stop cancels pending debounce timers and tears the stream down. Safe to
// call on an already-stopped trigger.
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
	f.stream.Stop()
	f.stream = nil
	return nil
}

func (f *File) handleFSEvent(ctx context.Context, ev fsevents.Event) {
	// Overflow flags mean the kernel or userspace dropped events; a full
	// rescan would be needed to recover what was missed.
	if ev.Flags&(fsevents.MustScanSubDirs|fsevents.KernelDropped|fsevents.UserDropped) != 0 {
		f.logger.Warn("fsevents queue overflow, events may have been lost", "path", ev.Path)
		return
	}
	if ev.Flags&(fsevents.Mount|fsevents.Unmount|fsevents.RootChanged) != 0 {
		return
	}

	var op string
	switch {
	case ev.Flags&fsevents.ItemRemoved != 0:
		op = "remove"
	case ev.Flags&fsevents.ItemCreated != 0:
		// Rename destinations arrive as ItemCreated|ItemRenamed.
		op = "create"
	case ev.Flags&fsevents.ItemModified != 0:
		op = "write"
	default:
		// Bare ItemRenamed is the source side of a rename; the path no
		// longer exists at this location.
		return
	}

	name := filepath.Base(ev.Path)
	for _, pattern := range f.ignorePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return
		}
	}

	if f.debounce > 0 {
		f.debounceFire(ctx, ev.Path, op)
		return
	}
	f.fire(ctx, ev.Path, op)
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
