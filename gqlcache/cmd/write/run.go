/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package write

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hypermodeinc/gqlcache/cache"
	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/session"
	"github.com/hypermodeinc/gqlcache/x"
)

// Write is the sub-command invoked when running "gqlcache write".
var Write x.SubCommand

func init() {
	Write.Cmd = &cobra.Command{
		Use:   "write",
		Short: "Write a GraphQL result into the cache",
		Long: `Write normalizes the result of a query, or the data of a fragment when --id is
given, into the cache snapshot kept in --dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), Write, cmd.OutOrStdout())
			if err != nil {
				session.PrintErrors(os.Stderr, err)
			}
			return err
		},
		Annotations:   map[string]string{"group": "default"},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	Write.EnvPrefix = "GQLCACHE_WRITE"
	Write.Cmd.SetHelpTemplate(x.NonRootTemplate)

	flag := Write.Cmd.Flags()
	session.DirFlag(flag)
	flag.StringP("query", "q", "", "File holding the query or fragment document.")
	flag.StringP("data", "i", "", "JSON or YAML file holding the result data.")
	flag.String("vars", "", "JSON or YAML file holding the variables.")
	flag.StringP("operation", "o", "", "Operation or fragment name to use.")
	flag.String("id", "", "Write the fragment at this node instead of a query result.")
}

func run(ctx context.Context, sc x.SubCommand, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	query, err := session.ReadText(sc.Conf, "query")
	if err != nil {
		return err
	}
	data, err := session.ReadObject(sc.Conf, "data", true)
	if err != nil {
		return err
	}
	vars, err := session.ReadObject(sc.Conf, "vars", false)
	if err != nil {
		return err
	}

	s, err := session.Open(sc.Conf)
	if err != nil {
		return err
	}
	defer s.Close()

	var written map[string]interface{}
	if id := sc.GetStringP("id", "", ""); id != "" {
		written, err = s.Cache.WriteFragment(ctx, &cache.FragmentRequest{
			ID:           id,
			Fragment:     query,
			FragmentName: sc.GetStringP("operation", "o", ""),
			Variables:    vars,
		}, data)
	} else {
		written, err = s.Cache.WriteQuery(ctx, &cache.Request{
			Query:         query,
			OperationName: sc.GetStringP("operation", "o", ""),
			Variables:     vars,
		}, data)
	}
	// Writes that fail halfway stay applied, so the snapshot is committed either way.
	if cerr := s.Commit(); cerr != nil {
		return cerr
	}
	if err != nil {
		return err
	}
	return session.Print(out, written)
}
