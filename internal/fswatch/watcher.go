// Package fswatch delivers non-recursive filesystem notifications for a set of
// paths through one of several OS notification backends.
package fswatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrWatcherClosed  = errors.New("watcher closed")
	ErrPathNotExist   = errors.New("path to watch does not exist")
	ErrUnknownBackend = errors.New("unknown watch backend")
)

// Op is a normalized change kind.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

func (op Op) Has(o Op) bool {
	return op&o == o
}

func (op Op) String() string {
	var parts []string
	for _, p := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
	} {
		if op.Has(p.op) {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Event is a single notification for Path.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Backend selects the OS notification implementation.
type Backend string

const (
	BackendFsnotify Backend = "fsnotify"
	BackendNotify   Backend = "notify"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case BackendFsnotify, BackendNotify:
		return b, nil
	case "":
		return BackendFsnotify, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// source is implemented by each backend. run blocks, delivering converted
// events until the context ends or the source is closed.
type source interface {
	add(path string) error
	run(ctx context.Context, emit func(Event), fail func(error)) error
	close() error
}

// Watcher watches directories or files without descending into
// subdirectories. Events and Errors are closed by Stop.
type Watcher struct {
	Events chan Event
	Errors chan error

	src      source
	logger   *slog.Logger
	isClosed bool
	mu       sync.Mutex
}

func New(backend Backend, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		src source
		err error
	)
	switch backend {
	case BackendFsnotify, "":
		src, err = newFsnotifySource()
	case BackendNotify:
		src = newNotifySource()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, err
	}

	return &Watcher{
		Events: make(chan Event, 64),
		Errors: make(chan error, 16),
		src:    src,
		logger: logger,
	}, nil
}

// Start forwards backend notifications to Events until ctx is done or the
// watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	return w.src.run(ctx, w.handleEvent, w.handleError)
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isClosed {
		return ErrWatcherClosed
	}
	w.isClosed = true
	err := w.src.close()
	close(w.Events)
	close(w.Errors)
	return err
}

// Add watches path and its immediate children.
func (w *Watcher) Add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isClosed {
		return ErrWatcherClosed
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrPathNotExist, path)
	}

	w.logger.Debug("watcher add", "path", path)
	return w.src.add(filepath.Clean(path))
}

func (w *Watcher) handleEvent(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isClosed {
		return
	}

	select {
	case w.Events <- event:
	default:
		w.logger.Warn("dropped event: events channel full", "path", event.Path, "op", event.Op.String())
	}
}

func (w *Watcher) handleError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isClosed {
		return
	}

	select {
	case w.Errors <- err:
	default:
		w.logger.Warn("dropped error: errors channel full", "error", err)
	}
}
