package linksync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaumeFigueras/cloud-symlinks/internal/archive"
	"github.com/JaumeFigueras/cloud-symlinks/internal/ledger"
)

// Outcome is the result of a startup reconciliation.
type Outcome int

const (
	OutcomeFirstRun Outcome = iota
	OutcomeInSync
	OutcomeExtracted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFirstRun:
		return "first-run"
	case OutcomeInSync:
		return "in-sync"
	case OutcomeExtracted:
		return "extracted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reconciler catches the directory up with an archive that changed while
// the daemon was not running.
type Reconciler struct {
	Dir         string
	ArchivePath string
	Archiver    *archive.Archiver
	Ledger      *ledger.Store
	Logger      *slog.Logger
}

// Run compares the archive mtime with the ledger entry for the archive and
// extracts when the archive is newer. A missing entry is recorded without
// extracting. Extraction failures leave the entry unchanged and are returned
// after being logged.
func (r *Reconciler) Run(ctx context.Context) (Outcome, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := r.Archiver
	if a == nil {
		a = archive.New()
	}

	fi, err := a.Fs().Stat(r.ArchivePath)
	if err != nil {
		logger.Error("archive stat failed", "archive", r.ArchivePath, "error", err)
		return OutcomeFailed, fmt.Errorf("stat archive: %w", err)
	}
	current := ledger.Truncate(fi.ModTime())

	synced, ok := r.Ledger.Get(r.ArchivePath)
	if !ok {
		logger.Debug("ledger entry created", "archive", r.ArchivePath, "mtime", current)
		r.Ledger.Set(r.ArchivePath, current)
		r.save(ctx, logger)
		return OutcomeFirstRun, nil
	}

	if !synced.Before(current) {
		logger.Debug("archive in sync with ledger", "archive", r.ArchivePath, "synced", synced, "mtime", current)
		return OutcomeInSync, nil
	}

	logger.Info("archive changed while offline", "archive", r.ArchivePath, "synced", synced, "mtime", current)

	if members, err := a.List(r.ArchivePath); err == nil {
		logger.Debug("archive members", "archive", r.ArchivePath, "members", len(members))
	}

	sum, err := a.Extract(r.ArchivePath, r.Dir)
	if err != nil {
		logger.Error("directory restore failed", "dir", r.Dir, "archive", r.ArchivePath, "error", err)
		return OutcomeFailed, err
	}
	logger.Info("directory restored", "dir", r.Dir, "members", sum.Members)

	if fi, err := a.Fs().Stat(r.ArchivePath); err == nil {
		current = fi.ModTime()
	}
	r.Ledger.Set(r.ArchivePath, current)
	r.save(ctx, logger)
	return OutcomeExtracted, nil
}

func (r *Reconciler) save(ctx context.Context, logger *slog.Logger) {
	if err := r.Ledger.Save(ctx); err != nil {
		logger.Error("ledger save failed", "ledger", r.Ledger.Path(), "error", err)
	}
}
