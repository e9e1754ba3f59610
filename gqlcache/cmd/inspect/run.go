/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package inspect

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/session"
	"github.com/hypermodeinc/gqlcache/persist"
	"github.com/hypermodeinc/gqlcache/x"
)

// Inspect is the sub-command invoked when running "gqlcache inspect".
var Inspect x.SubCommand

func init() {
	Inspect.Cmd = &cobra.Command{
		Use:   "inspect",
		Short: "Print what the cache snapshot holds",
		Long: `Inspect prints a summary of the cache snapshot kept in --dir. With --node it prints
one normalized record, with --extract the whole store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(Inspect, cmd.OutOrStdout())
			if err != nil {
				session.PrintErrors(os.Stderr, err)
			}
			return err
		},
		Annotations:   map[string]string{"group": "tool"},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	Inspect.EnvPrefix = "GQLCACHE_INSPECT"
	Inspect.Cmd.SetHelpTemplate(x.NonRootTemplate)

	flag := Inspect.Cmd.Flags()
	session.DirFlag(flag)
	flag.StringP("node", "n", "", "Print the record of this node id.")
	flag.Bool("extract", false, "Print every record of the store as JSON.")
}

func run(sc x.SubCommand, out io.Writer) error {
	s, err := session.Open(sc.Conf)
	if err != nil {
		return err
	}
	defer s.Close()

	if id := sc.GetStringP("node", "n", ""); id != "" {
		n := s.Cache.Snapshot().Get(id)
		if n == nil {
			return errors.Errorf("no node with id %q", id)
		}
		return session.Print(out, n)
	}
	if sc.GetBoolP("extract", "", false) {
		return session.Print(out, s.Cache.Snapshot())
	}

	meta, err := s.DB.Meta()
	if err == persist.ErrNoSnapshot {
		fmt.Fprintln(out, "No snapshot saved yet.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Generation : %s\n", meta.Generation)
	fmt.Fprintf(out, "Saved      : %s (%s)\n", meta.SavedAt.Format("2006-01-02T15:04:05Z07:00"),
		humanize.Time(meta.SavedAt))
	fmt.Fprintf(out, "Nodes      : %s\n", humanize.Comma(int64(meta.Nodes)))
	fmt.Fprintf(out, "Size       : %s\n", humanize.Bytes(uint64(meta.Bytes)))
	return nil
}
