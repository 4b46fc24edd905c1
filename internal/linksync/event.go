package linksync

import (
	"path/filepath"
	"time"

	"github.com/JaumeFigueras/cloud-symlinks/internal/fswatch"
)

type TargetKind int

const (
	KindDirectory TargetKind = iota
	KindArchive
)

func (k TargetKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Target is one side of a sync pair.
type Target struct {
	Path string
	Kind TargetKind
}

type ChangeKind int

const (
	ChangeCreated ChangeKind = iota
	ChangeModified
	ChangeDeleted
	ChangeRenamed
	ChangeAttrib
)

func (c ChangeKind) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	case ChangeAttrib:
		return "attrib"
	default:
		return "unknown"
	}
}

// SyncEvent is a filesystem notification normalized for one target.
type SyncEvent struct {
	Kind   TargetKind
	Change ChangeKind
	Path   string
	Time   time.Time
}

func changeFromOp(op fswatch.Op) ChangeKind {
	switch {
	case op.Has(fswatch.OpRemove):
		return ChangeDeleted
	case op.Has(fswatch.OpRename):
		return ChangeRenamed
	case op.Has(fswatch.OpCreate):
		return ChangeCreated
	case op.Has(fswatch.OpWrite):
		return ChangeModified
	default:
		return ChangeAttrib
	}
}

// newSyncEvent converts ev for target. It reports false for events that are
// not about an immediate child of the watched directory.
func newSyncEvent(kind TargetKind, watchDir string, ev fswatch.Event) (SyncEvent, bool) {
	path := filepath.Clean(ev.Path)
	if filepath.Dir(path) != watchDir {
		return SyncEvent{}, false
	}
	return SyncEvent{
		Kind:   kind,
		Change: changeFromOp(ev.Op),
		Path:   path,
		Time:   ev.Time,
	}, true
}
