package main

import (
	"fmt"
	"io"
	"os"

	"github.com/JaumeFigueras/cloud-symlinks/internal/config"
	"github.com/JaumeFigueras/cloud-symlinks/internal/ledger"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the archive and ledger state without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			return printStatus(cmd.OutOrStdout(), cfg)
		},
	}
}

func printStatus(w io.Writer, cfg *config.Config) error {
	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-10s %s\n", "dir", cfg.Dir)
	if entries, err := os.ReadDir(cfg.Dir); err != nil {
		fmt.Fprintf(w, "%-10s %s\n", "", red("missing"))
	} else {
		fmt.Fprintf(w, "%-10s %d entries\n", "", len(entries))
	}

	fmt.Fprintf(w, "%-10s %s\n", "archive", cfg.ArchivePath)
	fi, err := os.Stat(cfg.ArchivePath)
	if err != nil {
		fmt.Fprintf(w, "%-10s %s\n", "", red("missing"))
		fmt.Fprintf(w, "%-10s %s\n", "state", red("daemon cannot start"))
		return nil
	}
	mtime := ledger.Truncate(fi.ModTime())
	fmt.Fprintf(w, "%-10s %s, modified %s (%s)\n", "",
		humanize.Bytes(uint64(fi.Size())),
		humanize.Time(mtime),
		mtime.Format(ledger.TimeFormat),
	)

	fmt.Fprintf(w, "%-10s %s\n", "ledger", store.Path())
	synced, ok := store.Get(cfg.ArchivePath)
	switch {
	case !ok:
		fmt.Fprintf(w, "%-10s %s\n", "synced", "never")
		fmt.Fprintf(w, "%-10s %s\n", "state", yellow("first run, archive will be recorded"))
	case synced.Before(mtime):
		fmt.Fprintf(w, "%-10s %s (%s)\n", "synced", humanize.Time(synced), synced.Format(ledger.TimeFormat))
		fmt.Fprintf(w, "%-10s %s\n", "state", yellow("archive newer, extraction pending"))
	default:
		fmt.Fprintf(w, "%-10s %s (%s)\n", "synced", humanize.Time(synced), synced.Format(ledger.TimeFormat))
		fmt.Fprintf(w, "%-10s %s\n", "state", green("in sync"))
	}
	return nil
}
