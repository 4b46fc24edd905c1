// Package linksync keeps a directory of symbolic links and a tar.gz archive
// in sync in both directions.
//
// A DirectoryWatcher compresses the directory into the archive and an
// ArchiveWatcher extracts the archive into the directory. Both debounce their
// notifications and share an EchoGuard so neither reacts to the other's
// writes. Daemon wires the pair together with a startup Reconciler.
package linksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/JaumeFigueras/cloud-symlinks/internal/archive"
	"github.com/JaumeFigueras/cloud-symlinks/internal/config"
	"github.com/JaumeFigueras/cloud-symlinks/internal/ledger"
	"github.com/JaumeFigueras/cloud-symlinks/internal/utils"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDirNotFound     = errors.New("directory does not exist")
	ErrArchiveNotFound = errors.New("archive file does not exist")
	ErrDaemonStarted   = errors.New("daemon already started")
)

type State int32

const (
	StateIdle State = iota
	StateValidating
	StateReconciling
	StateWatching
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateReconciling:
		return "reconciling"
	case StateWatching:
		return "watching"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Daemon runs one directory/archive sync pair until its context ends.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	clock    clockwork.Clock
	busy     BusyChecker
	ignore   *IgnoreList
	archiver *archive.Archiver

	state     atomic.Int32
	started   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once

	guard          EchoGuard
	dirWatcher     *DirectoryWatcher
	archiveWatcher *ArchiveWatcher
}

type DaemonOption func(*Daemon)

func WithLogger(logger *slog.Logger) DaemonOption {
	return func(d *Daemon) { d.logger = logger }
}

func WithClock(clock clockwork.Clock) DaemonOption {
	return func(d *Daemon) { d.clock = clock }
}

// WithBusyChecker enables deferring extraction while another process holds
// the archive open.
func WithBusyChecker(busy BusyChecker) DaemonOption {
	return func(d *Daemon) { d.busy = busy }
}

// NewDaemon creates a daemon for a validated config.
func NewDaemon(cfg *config.Config, opts ...DaemonOption) *Daemon {
	d := &Daemon{
		cfg:    cfg,
		logger: slog.Default(),
		clock:  clockwork.NewRealClock(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.ignore = NewIgnoreList(cfg.Ignore...)
	d.archiver = archive.New(
		archive.WithFilter(d.ignore.ShouldIgnore),
		archive.WithLogger(d.logger),
	)
	return d
}

func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Ready is closed once both watchers are subscribed.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Guard exposes the echo flags of the running pair.
func (d *Daemon) Guard() *EchoGuard {
	return &d.guard
}

func (d *Daemon) setState(s State) {
	old := State(d.state.Swap(int32(s)))
	d.logger.Debug("daemon state", "from", old.String(), "to", s.String())
}

// Run validates the sync pair, reconciles it with the ledger and watches both
// sides until ctx is cancelled. It only returns an error for a missing
// directory or archive, or when the watchers cannot be set up; sync failures
// are logged and survived.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrDaemonStarted
	}
	defer d.setState(StateStopped)

	d.setState(StateValidating)
	if !utils.DirExists(d.cfg.Dir) {
		d.logger.Error("directory does not exist", "dir", d.cfg.Dir)
		return fmt.Errorf("%w: %s", ErrDirNotFound, d.cfg.Dir)
	}
	if !utils.FileExists(d.cfg.ArchivePath) {
		d.logger.Error("archive file does not exist", "archive", d.cfg.ArchivePath)
		return fmt.Errorf("%w: %s", ErrArchiveNotFound, d.cfg.ArchivePath)
	}

	d.setState(StateReconciling)
	store, err := ledger.Open(d.cfg.LedgerPath, ledger.WithLogger(d.logger))
	if err != nil {
		d.logger.Error("ledger open failed", "ledger", d.cfg.LedgerPath, "error", err)
		return err
	}
	reconciler := &Reconciler{
		Dir:         d.cfg.Dir,
		ArchivePath: d.cfg.ArchivePath,
		Archiver:    d.archiver,
		Ledger:      store,
		Logger:      d.logger,
	}
	outcome, _ := reconciler.Run(ctx)
	d.logger.Debug("reconcile done", "outcome", outcome.String())

	opts := Options{
		Dir:         d.cfg.Dir,
		ArchivePath: d.cfg.ArchivePath,
		Archiver:    d.archiver,
		Ignore:      d.ignore,
		Recorder:    store,
		Busy:        d.busy,
		Backend:     d.cfg.WatchBackend(),
		Clock:       d.clock,
		Debounce:    d.cfg.Debounce,
		Logger:      d.logger,
	}
	d.dirWatcher = NewDirectoryWatcher(opts, &d.guard)
	d.archiveWatcher = NewArchiveWatcher(opts, &d.guard)

	if err := d.dirWatcher.Subscribe(); err != nil {
		d.logger.Error("watch setup failed", "error", err)
		return err
	}
	if err := d.archiveWatcher.Subscribe(); err != nil {
		d.dirWatcher.Stop()
		d.logger.Error("watch setup failed", "error", err)
		return err
	}

	d.setState(StateWatching)
	d.logger.Debug("watching", "dir", d.cfg.Dir, "archive", d.cfg.ArchivePath, "debounce", d.cfg.Debounce)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.dirWatcher.Run(gctx) })
	g.Go(func() error { return d.archiveWatcher.Run(gctx) })
	d.readyOnce.Do(func() { close(d.ready) })

	<-gctx.Done()

	d.setState(StateStopping)
	d.dirWatcher.Stop()
	d.archiveWatcher.Stop()

	if err := g.Wait(); err != nil {
		d.logger.Error("watcher failed", "error", err)
		return err
	}
	return nil
}
