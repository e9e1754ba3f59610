/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package gc

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/session"
	"github.com/hypermodeinc/gqlcache/x"
)

// GC is the sub-command invoked when running "gqlcache gc".
var GC x.SubCommand

func init() {
	GC.Cmd = &cobra.Command{
		Use:   "gc",
		Short: "Evict nodes and collect unreachable ones",
		Long: `GC evicts the nodes named by --evict, keeping the ones named by --retain, then
removes every node no longer reachable from a root operation node.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), GC, cmd.OutOrStdout())
			if err != nil {
				session.PrintErrors(os.Stderr, err)
			}
			return err
		},
		Annotations:   map[string]string{"group": "tool"},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	GC.EnvPrefix = "GQLCACHE_GC"
	GC.Cmd.SetHelpTemplate(x.NonRootTemplate)

	flag := GC.Cmd.Flags()
	session.DirFlag(flag)
	flag.StringSlice("evict", nil, "Node ids to evict before collecting.")
	flag.StringSlice("retain", nil, "Node ids to keep even when unreachable.")
	flag.Bool("dry_run", false, "Report what would be removed without saving.")
}

type output struct {
	Evicted []string `json:"evicted"`
	Removed []string `json:"removed"`
}

func run(ctx context.Context, sc x.SubCommand, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := session.Open(sc.Conf)
	if err != nil {
		return err
	}
	defer s.Close()

	res := output{Evicted: []string{}}
	for _, id := range sc.Conf.GetStringSlice("evict") {
		if s.Cache.Evict(ctx, id) {
			res.Evicted = append(res.Evicted, id)
		}
	}
	for _, id := range sc.Conf.GetStringSlice("retain") {
		s.Cache.Retain(id)
	}
	res.Removed = s.Cache.GC(ctx)
	if res.Removed == nil {
		res.Removed = []string{}
	}
	if !sc.GetBoolP("dry_run", "", false) {
		if err := s.Commit(); err != nil {
			return err
		}
	}
	return session.Print(out, res)
}
