package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JaumeFigueras/cloud-symlinks/internal/config"
	"github.com/JaumeFigueras/cloud-symlinks/internal/linksync"
	"github.com/JaumeFigueras/cloud-symlinks/internal/utils"
	"github.com/JaumeFigueras/cloud-symlinks/internal/version"
	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 5
	logMaxBackups = 15
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cloudlinks",
		Short: "Keep a directory of symbolic links in sync with a cloud-stored archive",
		Long: `cloudlinks mirrors a directory of symbolic links into a tar.gz archive
kept in a cloud-synced folder, and restores the directory whenever another
machine updates the archive.`,
		Version: version.Detailed(),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// all good now, the rest is runtime failures
			cmd.SilenceUsage = true

			logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()
			slog.SetDefault(logger)

			showHeader(cmd.OutOrStdout(), cfg)

			opts := []linksync.DaemonOption{linksync.WithLogger(logger)}
			if cfg.BusyCheck {
				opts = append(opts, linksync.WithBusyChecker(linksync.NewOpenFileChecker()))
			}

			defer logger.Debug("bye")
			return linksync.NewDaemon(cfg, opts...).Run(cmd.Context())
		},
	}

	addConfigFlags(rootCmd)
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func main() {
	// until the config is read, log to the console
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: utils.LogTimeFormat,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the daemon logger. Without a log file everything goes to
// the console; with one, records go to a rotated file and errors are still
// echoed to the console.
func newLogger(cfg *config.Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}

	noColor := true
	if f, ok := console.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}

	if cfg.LogFile == "" {
		handler := tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: utils.LogTimeFormat,
			NoColor:    noColor,
		})
		return slog.New(handler), nopCloser{}, nil
	}

	if err := utils.EnsureParent(cfg.LogFile); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
	}
	logInterceptor := utils.NewLogInterceptor(rotator)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: level,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	consoleHandler := tint.NewHandler(console, &tint.Options{
		Level:      slog.LevelError,
		TimeFormat: utils.LogTimeFormat,
		NoColor:    noColor,
	})

	return slog.New(utils.NewMultiLogHandler(fileHandler, consoleHandler)), logInterceptor, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func showHeader(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "%s %s\n", cyan(version.AppName), version.Short())
	fmt.Fprintf(w, "%-8s %s\n", "dir", cfg.Dir)
	fmt.Fprintf(w, "%-8s %s\n", "archive", cfg.ArchivePath)
	fmt.Fprintf(w, "%-8s %s\n", "ledger", cfg.LedgerPath)
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "%-8s %s\n", "log", cfg.LogFile)
	}
}
