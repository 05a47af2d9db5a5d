// Package watcher notifies a handler, debounced, when a single file
// changes on disk. It exists for internal/config's RegistryWatcher: a
// councild.toml edit should reload the model catalog once, not once per
// write() syscall an editor happens to make while saving.
package watcher

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned when operations are called on a closed Watcher.
var ErrClosed = errors.New("watcher: watcher is closed")

// EventType represents the type of file system event a Watcher reports.
// Only the two events a config reload cares about are modeled; see
// handleEvent for how fsnotify's Rename/Chmod/Remove map onto these.
type EventType uint32

const (
	// Create is triggered when the watched path is (re)created.
	Create EventType = 1 << iota
	// Write is triggered when the watched file is modified.
	Write
	// All events.
	All = Create | Write
)

// Event represents a file system event.
type Event struct {
	// Path is the absolute path of the watched file.
	Path string
	// Type is the type of event.
	Type EventType
}

// Handler is called when the watched file changes. Multiple fsnotify
// events may be coalesced into a single call due to debouncing.
type Handler func(events []Event)

// Watcher watches a single file for changes, debounced.
type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	handler     Handler
	eventFilter EventType
	logger      *slog.Logger

	mu            sync.Mutex
	path          string
	pendingEvents []Event
	closed        bool
}

// New creates a new Watcher. By default both Create and Write are
// reported; use WithEventFilter to narrow that.
func New(handler Handler, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:   fsWatcher,
		debouncer:   NewDebouncer(DefaultDebounceDuration),
		handler:     handler,
		eventFilter: All,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	go w.run()

	return w, nil
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithEventFilter sets which event types trigger the handler.
func WithEventFilter(filter EventType) Option {
	return func(w *Watcher) {
		w.eventFilter = filter
	}
}

// Add starts watching path, replacing whatever path was previously
// watched. Only one path is supported at a time: RegistryWatcher's config
// file is the only caller this package has, and it never needs more.
func (w *Watcher) Add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.path != "" {
		_ = w.fsWatcher.Remove(w.path)
	}
	if err := w.fsWatcher.Add(path); err != nil {
		return err
	}
	w.path = path
	return nil
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.debouncer.Cancel()
	return w.fsWatcher.Close()
}

// run processes events from fsnotify.
func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher: fsnotify error", "error", err)
		}
	}
}

// handleEvent turns one fsnotify event into a debounced Event delivery.
// Editors commonly save by writing a temp file and renaming it over the
// original (vim, many IDEs); fsnotify then reports Rename/Create on the
// same path rather than Write. Since a config reload only needs to know
// "the file changed, go re-read it", any event that isn't a bare Remove
// is treated as at least a Write so that save pattern still triggers a
// reload.
func (w *Watcher) handleEvent(fsEvent fsnotify.Event) {
	if fsEvent.Op.Has(fsnotify.Remove) {
		return
	}

	eventType := Write
	if fsEvent.Op.Has(fsnotify.Create) {
		eventType = Create
	}
	if eventType&w.eventFilter == 0 {
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pendingEvents = append(w.pendingEvents, Event{Path: fsEvent.Name, Type: eventType})
	w.mu.Unlock()

	w.debouncer.Trigger(func() {
		w.mu.Lock()
		toDeliver := w.pendingEvents
		w.pendingEvents = nil
		w.mu.Unlock()

		if len(toDeliver) > 0 && w.handler != nil {
			w.handler(toDeliver)
		}
	})
}
