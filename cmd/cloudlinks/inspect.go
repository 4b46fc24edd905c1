package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JaumeFigueras/cloud-symlinks/internal/archive"
	"github.com/JaumeFigueras/cloud-symlinks/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [archive]",
		Short: "List the members of an archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				path = cfg.ArchivePath
			}
			if path == "" {
				return fmt.Errorf("no archive given; pass one or set --tar-file")
			}
			path, err := utils.ResolvePath(path)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			return printMembers(cmd.OutOrStdout(), path)
		},
	}
}

func printMembers(w io.Writer, path string) error {
	members, err := archive.New().List(path)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	var total int64
	for _, m := range members {
		switch m.Kind {
		case archive.KindSymlink:
			fmt.Fprintf(tw, "%s\t%s\t\t-> %s\n", cyan(m.Kind), m.Name, m.Linkname)
		default:
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", m.Kind, m.Name, humanize.Bytes(uint64(m.Size)))
		}
		total += m.Size
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%d members, %s\n", len(members), humanize.Bytes(uint64(total)))
	return err
}
