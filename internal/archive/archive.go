// Package archive reads and writes the flat tar.gz archives that mirror a
// directory of symbolic links.
//
// Archives hold one member per immediate directory entry, named by the entry's
// basename. Symbolic links are stored as link members and are never
// dereferenced, so restoring an archive recreates the links themselves.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrUnsafeMember = errors.New("archive member is not a flat name")
	ErrNoSymlinks   = errors.New("filesystem does not support symbolic links")
)

// OpError records a failed archive operation. Touched reports whether the
// destination (the archive file for compress, the directory for extract) was
// written before the failure, so a write notification for it may follow.
// Removing the archive before recreating it does not count.
type OpError struct {
	Op      string
	Path    string
	Touched bool
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Summary describes a completed compress or extract.
type Summary struct {
	Members int
	// Bytes is the archive size after a compress, or the total member
	// content written by an extract.
	Bytes int64
}

type MemberKind string

const (
	KindFile    MemberKind = "file"
	KindSymlink MemberKind = "symlink"
	KindOther   MemberKind = "other"
)

// Member is one archive entry as reported by List.
type Member struct {
	Name     string
	Kind     MemberKind
	Size     int64
	Linkname string
	Mode     os.FileMode
	ModTime  time.Time
}

// Archiver compresses and extracts link archives on a filesystem.
type Archiver struct {
	fs     afero.Fs
	skip   func(name string) bool
	logger *slog.Logger
}

type Option func(*Archiver)

// WithFs replaces the OS filesystem, mostly for tests.
func WithFs(fs afero.Fs) Option {
	return func(a *Archiver) { a.fs = fs }
}

// WithFilter excludes names for which skip returns true, both from compressed
// archives and from extraction.
func WithFilter(skip func(name string) bool) Option {
	return func(a *Archiver) { a.skip = skip }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) { a.logger = logger }
}

func New(opts ...Option) *Archiver {
	a := &Archiver{
		fs:     afero.NewOsFs(),
		skip:   func(string) bool { return false },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fs returns the filesystem the archiver operates on.
func (a *Archiver) Fs() afero.Fs {
	return a.fs
}

func (a *Archiver) lstat(name string) (os.FileInfo, error) {
	if l, ok := a.fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(name)
		return fi, err
	}
	return a.fs.Stat(name)
}

func (a *Archiver) readlink(name string) (string, error) {
	if r, ok := a.fs.(afero.LinkReader); ok {
		return r.ReadlinkIfPossible(name)
	}
	return "", ErrNoSymlinks
}

func (a *Archiver) symlink(target, name string) error {
	if l, ok := a.fs.(afero.Linker); ok {
		return l.SymlinkIfPossible(target, name)
	}
	return ErrNoSymlinks
}

// memberName validates a tar header name and returns the flat entry name.
func memberName(name string) (string, error) {
	clean := strings.TrimPrefix(name, "./")
	if clean == "" || clean == "." || clean == ".." || path.IsAbs(clean) ||
		strings.ContainsAny(clean, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeMember, name)
	}
	return clean, nil
}
