package rvmenv

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gopasspw/gopass/pkg/debug"
)

// Op is the kind of file event.
type Op int

// File event kinds.
const (
	OpOpen Op = iota
	OpWrite
	OpCreate
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpOpen:
		return "open"
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Event is a notification about a file.
type Event struct {
	Path string
	Op   Op
}

// EventSource lets a subscriber register for file events. Subscribe returns
// an id that can be passed to Unsubscribe.
type EventSource interface {
	Subscribe(fn func(Event)) int
	Unsubscribe(id int)
}

// ErrWatcherClosed is returned when using a closed FSWatcher.
var ErrWatcherClosed = errors.New("watcher closed")

// Hub is an in-memory EventSource. An editor publishes "file opened"
// events to it; handlers run synchronously on the publishing goroutine.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]func(Event), 2),
	}
}

// Subscribe implements EventSource.
func (h *Hub) Subscribe(fn func(Event)) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]func(Event), 2)
	}
	h.nextID++
	h.subs[h.nextID] = fn

	return h.nextID
}

// Unsubscribe implements EventSource.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, id)
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Publish delivers ev to all subscribers in subscription order.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// FSWatcher is an EventSource backed by fsnotify. It watches directories and
// publishes events for files whose base name is in Names (all files if
// Names is empty).
type FSWatcher struct {
	*Hub

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	names   []string
	closed  bool
	done    chan struct{}
	errs    chan error
}

// NewFSWatcher starts an fsnotify watcher filtering for the given file names.
func NewFSWatcher(names ...string) (*FSWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &FSWatcher{
		Hub:     NewHub(),
		watcher: fsw,
		names:   names,
		done:    make(chan struct{}),
		errs:    make(chan error, 8),
	}
	go w.loop()

	return w, nil
}

// Add watches a directory.
func (w *FSWatcher) Add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	debug.V(1).Log("watching %s", abs)

	return nil
}

// Errors returns watcher errors. The channel is closed by Close.
func (w *FSWatcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher.
func (w *FSWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()

		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done

	return err
}

func (w *FSWatcher) loop() {
	defer close(w.done)
	defer close(w.errs)

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if e, ok := w.convert(ev); ok {
				w.Publish(e)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.V(1).Log("watcher error: %s", err)
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *FSWatcher) convert(ev fsnotify.Event) (Event, bool) {
	if len(w.names) > 0 && !slices.Contains(w.names, filepath.Base(ev.Name)) {
		return Event{}, false
	}

	switch {
	case ev.Has(fsnotify.Create):
		return Event{Path: ev.Name, Op: OpCreate}, true
	case ev.Has(fsnotify.Write):
		return Event{Path: ev.Name, Op: OpWrite}, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return Event{Path: ev.Name, Op: OpRemove}, true
	default:
		return Event{}, false
	}
}
