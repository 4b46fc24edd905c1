package linksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaumeFigueras/cloud-symlinks/internal/archive"
	"github.com/JaumeFigueras/cloud-symlinks/internal/fswatch"
	"github.com/JaumeFigueras/cloud-symlinks/internal/ledger"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const recordTimeout = 10 * time.Second

// Options carries the collaborators shared by both watchers of a pair.
type Options struct {
	Dir         string
	ArchivePath string
	Archiver    *archive.Archiver
	Ignore      *IgnoreList
	Recorder    ledger.Recorder
	Busy        BusyChecker
	Backend     fswatch.Backend
	Clock       clockwork.Clock
	Debounce    time.Duration
	Logger      *slog.Logger
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Archiver == nil {
		out.Archiver = archive.New()
	}
	if out.Ignore == nil {
		out.Ignore = NewIgnoreList()
	}
	if out.Clock == nil {
		out.Clock = clockwork.NewRealClock()
	}
	if out.Debounce <= 0 {
		out.Debounce = DefaultDebounce
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// watchLoop subscribes to one directory and feeds its events to a handler
// on a single delivery goroutine.
type watchLoop struct {
	kind      TargetKind
	watchDir  string
	backend   fswatch.Backend
	logger    *slog.Logger
	handle    func(SyncEvent)
	debouncer *Debouncer

	fsw *fswatch.Watcher
}

// Subscribe registers the OS watch. Events are buffered until Run starts.
func (l *watchLoop) Subscribe() error {
	fsw, err := fswatch.New(l.backend, l.logger)
	if err != nil {
		return fmt.Errorf("%s watcher: %w", l.kind, err)
	}
	if err := fsw.Add(l.watchDir); err != nil {
		fsw.Stop()
		return fmt.Errorf("%s watcher: %w", l.kind, err)
	}
	l.fsw = fsw
	return nil
}

// Run delivers events until Stop is called.
func (l *watchLoop) Run(ctx context.Context) error {
	if l.fsw == nil {
		return fmt.Errorf("%s watcher: %w", l.kind, fswatch.ErrWatcherClosed)
	}

	l.logger.Debug("watcher start", "target", l.kind.String(), "path", l.watchDir)
	defer l.logger.Debug("watcher stopped", "target", l.kind.String())

	var g errgroup.Group
	g.Go(func() error {
		err := l.fsw.Start(ctx)
		if errors.Is(err, fswatch.ErrWatcherClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		l.dispatch()
		return nil
	})
	return g.Wait()
}

func (l *watchLoop) dispatch() {
	events, errs := l.fsw.Events, l.fsw.Errors
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if se, ok := newSyncEvent(l.kind, l.watchDir, ev); ok {
				l.handle(se)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			l.logger.Warn("watch error", "target", l.kind.String(), "error", err)
		}
	}
}

// Stop closes the subscription and cancels the pending settle. A settle that
// is already running completes first.
func (l *watchLoop) Stop() {
	if l.fsw != nil {
		if err := l.fsw.Stop(); err != nil && !errors.Is(err, fswatch.ErrWatcherClosed) {
			l.logger.Warn("watcher stop", "target", l.kind.String(), "error", err)
		}
	}
	l.debouncer.Stop()
}

// Debouncer exposes the watcher's timer, mostly for tests.
func (l *watchLoop) Debouncer() *Debouncer {
	return l.debouncer
}

func record(r ledger.Recorder, a *archive.Archiver, archivePath string, logger *slog.Logger) {
	if r == nil {
		return
	}
	fi, err := a.Fs().Stat(archivePath)
	if err != nil {
		logger.Warn("ledger record skipped", "archive", archivePath, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.Record(ctx, archivePath, fi.ModTime()); err != nil {
		logger.Error("ledger update failed", "archive", archivePath, "error", err)
	}
}
