package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JaumeFigueras/cloud-symlinks/internal/fswatch"
	"github.com/JaumeFigueras/cloud-symlinks/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigDir  = filepath.Join(home, ".cloudlinks")
	DefaultLedgerPath = filepath.Join(DefaultConfigDir, "cloud_symlinks.ini")
	DefaultDebounce   = 500 * time.Millisecond
	DefaultBackend    = string(fswatch.BackendFsnotify)
	DefaultLogLevel   = "info"
)

var ErrArchiveInsideDir = errors.New("archive must not live inside the link directory")

type Config struct {
	Dir         string        `mapstructure:"dir"`
	ArchivePath string        `mapstructure:"tar_file"`
	LedgerPath  string        `mapstructure:"ledger"`
	LogFile     string        `mapstructure:"log_file"`
	LogLevel    string        `mapstructure:"log_level"`
	Debounce    time.Duration `mapstructure:"debounce"`
	Backend     string        `mapstructure:"backend"`
	Ignore      []string      `mapstructure:"ignore"`
	BusyCheck   bool          `mapstructure:"busy_check"`
	Path        string        `mapstructure:"-"`
}

// Validate resolves every path to an absolute one, fills defaults and checks
// the settings. It does not require the directory or archive to exist.
func (c *Config) Validate() error {
	var err error

	if c.Dir == "" {
		return fmt.Errorf("`dir` is required")
	}
	if c.Dir, err = utils.ResolvePath(c.Dir); err != nil {
		return fmt.Errorf("dir: %w", err)
	}

	if c.ArchivePath == "" {
		return fmt.Errorf("`tar_file` is required")
	}
	if c.ArchivePath, err = utils.ResolvePath(c.ArchivePath); err != nil {
		return fmt.Errorf("tar_file: %w", err)
	}
	if utils.IsSubPath(c.Dir, c.ArchivePath) {
		return fmt.Errorf("%w: %s", ErrArchiveInsideDir, c.ArchivePath)
	}

	if c.LedgerPath == "" {
		c.LedgerPath = DefaultLedgerPath
	}
	if c.LedgerPath, err = utils.ResolvePath(c.LedgerPath); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	if c.LogFile != "" {
		if c.LogFile, err = utils.ResolvePath(c.LogFile); err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := c.Level(); err != nil {
		return err
	}

	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Debounce < 0 {
		return fmt.Errorf("`debounce` must be positive, got %s", c.Debounce)
	}

	backend, err := fswatch.ParseBackend(c.Backend)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	c.Backend = string(backend)

	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return level, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func (c *Config) WatchBackend() fswatch.Backend {
	return fswatch.Backend(c.Backend)
}
