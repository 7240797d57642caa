package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/deckshot/deckshot/internal/screenshot"
)

const (
	DefaultSettle = time.Second
	DefaultBuffer = 256
)

// Op is the kind of change an Event reports.
type Op uint8

const (
	// OpCloseWrite means the file was written and has since been left alone
	// for the settle window.
	OpCloseWrite Op = iota + 1
)

func (o Op) String() string {
	if o == OpCloseWrite {
		return "CLOSE_WRITE"
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Event is a finished file below the watched root.
type Event struct {
	Path string
	Op   Op
}

// IsScreenshot reports whether ev is a finished full-size screenshot.
func IsScreenshot(ev Event) bool {
	return ev.Op == OpCloseWrite && screenshot.IsCandidate(ev.Path)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must stay quiet before it is reported.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithBuffer sets the capacity of the Events channel.
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		if n >= 0 {
			w.buffer = n
		}
	}
}

// Watcher watches a directory tree recursively.
type Watcher struct {
	root   string
	settle time.Duration
	buffer int
	events chan Event

	mu      sync.Mutex
	pending map[string]*settling
}

// settling is the settle timer of one file.
type settling struct {
	timer *time.Timer
}

// New returns a Watcher for root. Nothing is watched until Start.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:    root,
		settle:  DefaultSettle,
		buffer:  DefaultBuffer,
		pending: make(map[string]*settling),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.events = make(chan Event, w.buffer)
	return w
}

// Events returns the channel finished files are reported on. It is never
// closed; stop reading when the context passed to Start is done.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start watches the tree until ctx is cancelled. It returns an error only
// if the root itself cannot be watched.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create: %w", err)
	}
	defer fsw.Close()

	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("watcher: root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watcher: root %s is not a directory", w.root)
	}
	if err := fsw.Add(w.root); err != nil {
		return fmt.Errorf("watcher: watch %s: %w", w.root, err)
	}
	w.addTree(ctx, fsw, w.root, false)

	slog.Info("watcher: watching for screenshots", "root", w.root, "settle", w.settle)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fsw, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher: fsnotify error", "err", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	slog.Debug("watcher: event", "name", ev.Name, "op", ev.Op.String())

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)

	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// Files may land in the directory before it is watched.
			w.addTree(ctx, fsw, ev.Name, true)
			return
		}
		w.touch(ctx, ev.Name)

	case ev.Has(fsnotify.Write):
		w.touch(ctx, ev.Name)
	}
}

// addTree watches every directory below dir. With files set, regular files
// already present are scheduled as if they had just been written.
func (w *Watcher) addTree(ctx context.Context, fsw *fsnotify.Watcher, dir string, files bool) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("watcher: walk", "path", p, "err", err)
			return nil
		}
		if !d.IsDir() {
			if files && d.Type().IsRegular() {
				w.touch(ctx, p)
			}
			return nil
		}
		if p == w.root {
			return nil
		}
		if err := fsw.Add(p); err != nil {
			slog.Warn("watcher: cannot watch directory", "path", p, "err", err)
		}
		return nil
	})
}

// touch (re)starts the settle timer of path.
func (w *Watcher) touch(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s, ok := w.pending[path]; ok && s.timer.Stop() {
		s.timer.Reset(w.settle)
		return
	}

	s := &settling{}
	s.timer = time.AfterFunc(w.settle, func() { w.fire(ctx, path, s) })
	w.pending[path] = s
}

// fire reports path unless its timer was replaced in the meantime.
func (w *Watcher) fire(ctx context.Context, path string, s *settling) {
	w.mu.Lock()
	if w.pending[path] != s {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	select {
	case w.events <- Event{Path: path, Op: OpCloseWrite}:
	case <-ctx.Done():
	}
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.pending[path]; ok {
		s.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, s := range w.pending {
		s.timer.Stop()
		delete(w.pending, p)
	}
}
