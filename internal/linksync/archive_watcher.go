package linksync

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/JaumeFigueras/cloud-symlinks/internal/archive"
	"github.com/JaumeFigueras/cloud-symlinks/internal/ledger"
)

const busyCheckTimeout = 5 * time.Second

// ArchiveWatcher extracts the archive into the link directory whenever a
// burst of writes to the archive settles. Creation, removal and renames of
// the archive are not acted on, since the file may still be half written.
type ArchiveWatcher struct {
	watchLoop

	dir      Target
	archive  Target
	archiver *archive.Archiver
	recorder ledger.Recorder
	busy     BusyChecker

	maxDeferrals int
	deferrals    int

	self *EchoFlag
	peer *EchoFlag
}

func NewArchiveWatcher(opts Options, guard *EchoGuard) *ArchiveWatcher {
	o := opts.withDefaults()
	w := &ArchiveWatcher{
		dir:          Target{Path: filepath.Clean(o.Dir), Kind: KindDirectory},
		archive:      Target{Path: filepath.Clean(o.ArchivePath), Kind: KindArchive},
		archiver:     o.Archiver,
		recorder:     o.Recorder,
		busy:         o.Busy,
		maxDeferrals: defaultMaxDeferrals,
		self:         &guard.Archive,
		peer:         &guard.Directory,
	}
	// the parent is watched so the watch survives the archive being replaced
	w.watchLoop = watchLoop{
		kind:     KindArchive,
		watchDir: filepath.Dir(w.archive.Path),
		backend:  o.Backend,
		logger:   o.Logger.With("watcher", KindArchive.String()),
		handle:   w.HandleEvent,
	}
	w.debouncer = NewDebouncer(o.Clock, o.Debounce, w.Settle)
	return w
}

// HandleEvent restarts the quiet period for writes to the archive file.
func (w *ArchiveWatcher) HandleEvent(ev SyncEvent) {
	if ev.Path != w.archive.Path || ev.Change != ChangeModified {
		return
	}
	w.logger.Debug("archive event", "path", ev.Path, "change", ev.Change.String())
	w.debouncer.Notify(ev)
}

// Settle restores the directory from the archive unless the write was caused
// by a compress.
func (w *ArchiveWatcher) Settle(ev SyncEvent) {
	if w.self.Consume() {
		w.deferrals = 0
		w.logger.Debug("archive change caused by compress, skipped", "path", ev.Path)
		return
	}

	if w.inUse() && w.deferrals < w.maxDeferrals {
		w.deferrals++
		w.logger.Debug("archive held open by another process, deferring", "archive", w.archive.Path, "attempt", w.deferrals)
		w.debouncer.Notify(ev)
		return
	}
	w.deferrals = 0

	w.logger.Info("archive changed", "archive", w.archive.Path, "change", ev.Change.String())
	if err := w.restore(); err != nil {
		w.logger.Error("directory restore failed", "dir", w.dir.Path, "archive", w.archive.Path, "error", err)
	}
}

// restore extracts the archive with the directory flag raised, retracting it
// when the directory was left untouched.
func (w *ArchiveWatcher) restore() error {
	w.peer.Raise()

	members, err := w.archiver.List(w.archive.Path)
	if err != nil {
		w.peer.Lower()
		return err
	}
	w.logger.Debug("archive members", "archive", w.archive.Path, "members", len(members))

	sum, err := w.archiver.Extract(w.archive.Path, w.dir.Path)
	if err != nil {
		var opErr *archive.OpError
		if errors.As(err, &opErr) && !opErr.Touched {
			w.peer.Lower()
		}
		return err
	}
	if sum.Members == 0 {
		w.peer.Lower()
	}

	w.logger.Info("directory restored", "dir", w.dir.Path, "members", sum.Members)
	record(w.recorder, w.archiver, w.archive.Path, w.logger)
	return nil
}

func (w *ArchiveWatcher) inUse() bool {
	if w.busy == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), busyCheckTimeout)
	defer cancel()

	busy, err := w.busy.InUse(ctx, w.archive.Path)
	if err != nil {
		w.logger.Debug("busy check failed", "archive", w.archive.Path, "error", err)
		return false
	}
	return busy
}

func (w *ArchiveWatcher) Target() Target {
	return w.archive
}
