package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JaumeFigueras/cloud-symlinks/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "CLOUDLINKS"
	configFileName = "config"
)

// flag name -> config key
var configKeys = map[string]string{
	"dir":        "dir",
	"tar-file":   "tar_file",
	"log-file":   "log_file",
	"ledger":     "ledger",
	"debounce":   "debounce",
	"backend":    "backend",
	"ignore":     "ignore",
	"busy-check": "busy_check",
	"log-level":  "log_level",
}

func addConfigFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("dir", "d", "", "Directory of symbolic links to keep in sync")
	flags.StringP("tar-file", "f", "", "Archive file inside the cloud-synced folder")
	flags.StringP("log-file", "l", "", "Log file (default: log to stderr)")
	flags.StringP("ledger", "c", config.DefaultLedgerPath, "Ledger of last synced archive times")
	flags.String("config", "", "Config file (default: ~/.cloudlinks/config.{yaml,json})")
	flags.Duration("debounce", config.DefaultDebounce, "Quiet period before a change is acted on")
	flags.String("backend", config.DefaultBackend, "Notification backend: fsnotify or notify")
	flags.StringSlice("ignore", nil, "Extra gitignore-style pattern for entries to leave out")
	flags.Bool("busy-check", true, "Defer extraction while another process has the archive open")
	flags.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
}

// loadConfig merges flags, CLOUDLINKS_* environment variables and the config
// file, in that order of precedence. The result is not validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	if f := cmd.Flag("config"); f != nil && f.Changed {
		v.SetConfigFile(f.Value.String())
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".cloudlinks"))
		v.AddConfigPath(filepath.Join(home, ".config", "cloudlinks"))
		v.SetConfigName(configFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	for flag, key := range configKeys {
		if f := cmd.Flag(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return &config.Config{
		Path:        v.ConfigFileUsed(),
		Dir:         v.GetString("dir"),
		ArchivePath: v.GetString("tar_file"),
		LedgerPath:  v.GetString("ledger"),
		LogFile:     v.GetString("log_file"),
		LogLevel:    v.GetString("log_level"),
		Debounce:    v.GetDuration("debounce"),
		Backend:     v.GetString("backend"),
		Ignore:      v.GetStringSlice("ignore"),
		BusyCheck:   v.GetBool("busy_check"),
	}, nil
}
