// Package ledger persists the last time each archive was synced, so a daemon
// that was offline can tell whether the archive changed in the meantime.
//
// The ledger is an INI file with a single "main" section mapping absolute
// archive paths to "YYYY-MM-DD HH:MM:SS" UTC timestamps. Several daemons may
// share one ledger file; writes are merged under a file lock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/JaumeFigueras/cloud-symlinks/internal/utils"
	"github.com/gofrs/flock"
	"github.com/sethvargo/go-retry"
	"gopkg.in/ini.v1"
)

const (
	SectionName = "main"
	TimeFormat  = "2006-01-02 15:04:05"
)

var ErrLedgerLocked = errors.New("ledger locked by another process")

// Recorder stores the sync time of an archive.
type Recorder interface {
	Record(ctx context.Context, archivePath string, t time.Time) error
}

// Store is an in-memory view of a ledger file.
type Store struct {
	path    string
	logger  *slog.Logger
	flock   *flock.Flock
	backoff func() retry.Backoff

	mu      sync.Mutex
	entries map[string]time.Time
	dirty   map[string]struct{}
}

var _ Recorder = (*Store)(nil)

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithLockBackoff overrides the backoff used while waiting for the ledger lock.
func WithLockBackoff(fn func() retry.Backoff) Option {
	return func(s *Store) { s.backoff = fn }
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(25 * time.Millisecond)
	b = retry.WithMaxRetries(8, b)
	b = retry.WithCappedDuration(500*time.Millisecond, b)
	return retry.WithJitterPercent(10, b)
}

// Open loads the ledger at path. A missing or unparseable file yields an
// empty ledger; only an empty path is an error.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("ledger path cannot be empty")
	}

	s := &Store{
		path:    path,
		logger:  slog.Default(),
		flock:   flock.New(path + ".lock"),
		backoff: defaultBackoff,
		dirty:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	file, err := loadFile(path)
	if err != nil {
		s.logger.Warn("ledger unreadable, starting empty", "path", path, "error", err)
		file = ini.Empty()
	}
	s.entries = s.decode(file)

	return s, nil
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the recorded sync time for archivePath.
func (s *Store) Get(archivePath string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.entries[entryKey(archivePath)]
	return t, ok
}

// Set records t for archivePath in memory, truncated to whole seconds in UTC.
// Call Save to persist it.
func (s *Store) Set(archivePath string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey(archivePath)
	s.entries[key] = Truncate(t)
	s.dirty[key] = struct{}{}
}

// Record sets and persists the sync time for archivePath.
func (s *Store) Record(ctx context.Context, archivePath string, t time.Time) error {
	s.Set(archivePath, t)
	return s.Save(ctx)
}

// Len returns the number of entries in the ledger.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Save merges entries changed since the last save into the ledger file.
// Entries written by other processes are preserved and picked up.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("ledger dir: %w", err)
	}

	if err := s.lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.flock.Unlock(); err != nil {
			s.logger.Warn("ledger unlock", "path", s.path, "error", err)
		}
	}()

	file, err := loadFile(s.path)
	if err != nil {
		s.logger.Warn("ledger unreadable, rewriting", "path", s.path, "error", err)
		file = ini.Empty()
	}

	sec := file.Section(SectionName)
	for key := range s.dirty {
		sec.Key(key).SetValue(s.entries[key].Format(TimeFormat))
	}

	tmp := s.path + ".tmp"
	if err := file.SaveTo(tmp); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ledger rename: %w", err)
	}

	for key, t := range s.decode(file) {
		s.entries[key] = t
	}
	clear(s.dirty)

	s.logger.Debug("ledger saved", "path", s.path, "entries", len(s.entries))
	return nil
}

func (s *Store) lock(ctx context.Context) error {
	attempt := 0
	return retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		locked, err := s.flock.TryLock()
		if err != nil {
			return fmt.Errorf("ledger lock: %w", err)
		}
		if !locked {
			s.logger.Debug("ledger busy, retrying", "path", s.path, "attempt", attempt)
			return retry.RetryableError(ErrLedgerLocked)
		}
		return nil
	})
}

func (s *Store) decode(file *ini.File) map[string]time.Time {
	entries := make(map[string]time.Time)
	sec, err := file.GetSection(SectionName)
	if err != nil {
		return entries
	}

	for _, key := range sec.Keys() {
		t, err := time.ParseInLocation(TimeFormat, key.String(), time.UTC)
		if err != nil {
			s.logger.Warn("ledger entry ignored", "archive", key.Name(), "value", key.String())
			continue
		}
		entries[key.Name()] = t
	}
	return entries
}

func loadFile(path string) (*ini.File, error) {
	return ini.LoadSources(ini.LoadOptions{Loose: true, Insensitive: true}, path)
}

// entryKey lowercases archive paths, matching ledgers written by
// configparser-based tools, which store every key in lower case.
func entryKey(archivePath string) string {
	return strings.ToLower(archivePath)
}

// Truncate normalizes t to the ledger's resolution: whole seconds in UTC.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
