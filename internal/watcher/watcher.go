// Package watcher reports settled changes to files and directories using fsnotify.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors files for changes. A write is reported only after the file
// has kept the same size and modification time for Options.SettleDelay, so a
// burst of writes from an editor yields a single event.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	files   map[string]bool // individually watched files; empty means every file in watched dirs
	known   map[string]bool // paths seen to exist, used to tell added from modified
	pending map[string]*pendingEvent

	events    chan Event
	errors    chan error
	done      chan struct{}
	sendMu    sync.RWMutex // guards sends against Stop closing the channels
	closed    bool
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a watcher. Nothing is delivered until Start is called.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		watcher: fw,
		files:   make(map[string]bool),
		known:   make(map[string]bool),
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a file or directory. Directories are watched recursively; a file
// is watched through its parent directory so atomic rename-over saves are seen.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return w.watchDir(path)
	}

	w.mu.Lock()
	w.files[path] = true
	w.known[path] = true
	w.mu.Unlock()
	return w.watcher.Add(filepath.Dir(path))
}

func (w *Watcher) watchDir(path string) error {
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}
		if p != path && w.opts.shouldIgnore(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			w.mu.Lock()
			w.known[p] = true
			w.mu.Unlock()
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Error("failed to add watch", "path", p, "error", err)
			return nil
		}
		w.logger.Debug("added watch", "path", p)
		return nil
	})
}

// Start delivers events until ctx is cancelled or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context) error {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.loop(ctx)
	})

	select {
	case <-ctx.Done():
	case <-w.done:
	}
	return nil
}

// Stop releases the fsnotify handle and closes the event channels.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, p := range w.pending {
			p.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.watcher.Close()
		w.wg.Wait()

		w.sendMu.Lock()
		w.closed = true
		close(w.events)
		close(w.errors)
		w.sendMu.Unlock()
	})
	return err
}

// Events returns settled file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns errors reported by fsnotify.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendMu.RLock()
			if !w.closed {
				select {
				case w.errors <- err:
				default:
					w.logger.Warn("watcher error dropped", "error", err)
				}
			}
			w.sendMu.RUnlock()
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if w.opts.shouldIgnore(path) || !w.interested(path) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			_ = w.watchDir(path)
			return
		}
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.cancelPending(path)
		// A rename-over save reports the old name gone while the new file already exists.
		if _, err := os.Stat(path); err == nil {
			w.settle(path)
			return
		}
		w.mu.Lock()
		delete(w.known, path)
		w.mu.Unlock()
		w.emit(Event{Type: EventRemoved, Path: path})
		return
	}

	if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
		w.settle(path)
	}
}

func (w *Watcher) interested(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files) == 0 || w.files[path]
}

func (w *Watcher) settle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}
	if info.IsDir() {
		return
	}

	p := &pendingEvent{size: info.Size(), modTime: info.ModTime()}
	p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
	w.pending[path] = p
}

func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()

	p, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		delete(w.known, path)
		w.mu.Unlock()
		w.emit(Event{Type: EventRemoved, Path: path})
		return
	}

	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size, p.modTime = info.Size(), info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
		w.mu.Unlock()
		return
	}

	delete(w.pending, path)
	typ := EventAdded
	if w.known[path] {
		typ = EventModified
	}
	w.known[path] = true
	w.mu.Unlock()

	w.emit(Event{Type: typ, Path: path, Size: info.Size(), ModTime: info.ModTime()})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) emit(ev Event) {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	case <-w.done:
	}
}
