package linksync

import (
	"errors"
	"path/filepath"

	"github.com/JaumeFigueras/cloud-symlinks/internal/archive"
	"github.com/JaumeFigueras/cloud-symlinks/internal/ledger"
	"github.com/dustin/go-humanize"
)

// DirectoryWatcher compresses the link directory into the archive whenever a
// burst of changes to the directory settles.
type DirectoryWatcher struct {
	watchLoop

	dir      Target
	archive  Target
	archiver *archive.Archiver
	ignore   *IgnoreList
	recorder ledger.Recorder

	self *EchoFlag
	peer *EchoFlag
}

func NewDirectoryWatcher(opts Options, guard *EchoGuard) *DirectoryWatcher {
	o := opts.withDefaults()
	w := &DirectoryWatcher{
		dir:      Target{Path: filepath.Clean(o.Dir), Kind: KindDirectory},
		archive:  Target{Path: filepath.Clean(o.ArchivePath), Kind: KindArchive},
		archiver: o.Archiver,
		ignore:   o.Ignore,
		recorder: o.Recorder,
		self:     &guard.Directory,
		peer:     &guard.Archive,
	}
	w.watchLoop = watchLoop{
		kind:     KindDirectory,
		watchDir: w.dir.Path,
		backend:  o.Backend,
		logger:   o.Logger.With("watcher", KindDirectory.String()),
		handle:   w.HandleEvent,
	}
	w.debouncer = NewDebouncer(o.Clock, o.Debounce, w.Settle)
	return w
}

// HandleEvent restarts the quiet period for any change of a directory entry
// that is not ignored.
func (w *DirectoryWatcher) HandleEvent(ev SyncEvent) {
	if w.ignore.ShouldIgnore(filepath.Base(ev.Path)) {
		return
	}
	w.logger.Debug("directory event", "path", ev.Path, "change", ev.Change.String())
	w.debouncer.Notify(ev)
}

// Settle rebuilds the archive from the directory unless the change was caused
// by an extraction.
func (w *DirectoryWatcher) Settle(ev SyncEvent) {
	if w.self.Consume() {
		w.logger.Debug("directory change caused by extraction, skipped", "path", ev.Path)
		return
	}

	w.logger.Info("directory changed", "dir", w.dir.Path, "path", ev.Path, "change", ev.Change.String())

	w.peer.Raise()
	sum, err := w.archiver.Compress(w.dir.Path, w.archive.Path)
	if err != nil {
		var opErr *archive.OpError
		if errors.As(err, &opErr) && !opErr.Touched {
			w.peer.Lower()
		}
		w.logger.Error("archive update failed", "archive", w.archive.Path, "error", err)
		return
	}

	w.logger.Info("archive updated",
		"archive", w.archive.Path,
		"members", sum.Members,
		"size", humanize.Bytes(uint64(sum.Bytes)),
	)
	record(w.recorder, w.archiver, w.archive.Path, w.logger)
}

func (w *DirectoryWatcher) Target() Target {
	return w.dir
}
