/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package read

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hypermodeinc/gqlcache/cache"
	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/session"
	"github.com/hypermodeinc/gqlcache/normalize"
	"github.com/hypermodeinc/gqlcache/x"
)

// Read is the sub-command invoked when running "gqlcache read".
var Read x.SubCommand

func init() {
	Read.Cmd = &cobra.Command{
		Use:   "read",
		Short: "Read a GraphQL result from the cache",
		Long: `Read denormalizes a query, or a fragment when --id is given, from the cache
snapshot kept in --dir and prints the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), Read, cmd.OutOrStdout())
			if err != nil {
				session.PrintErrors(os.Stderr, err)
			}
			return err
		},
		Annotations:   map[string]string{"group": "default"},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	Read.EnvPrefix = "GQLCACHE_READ"
	Read.Cmd.SetHelpTemplate(x.NonRootTemplate)

	flag := Read.Cmd.Flags()
	session.DirFlag(flag)
	flag.StringP("query", "q", "", "File holding the query or fragment document.")
	flag.String("vars", "", "JSON or YAML file holding the variables.")
	flag.StringP("operation", "o", "", "Operation or fragment name to use.")
	flag.String("id", "", "Read the fragment at this node instead of a query.")
	flag.BoolP("partial", "p", false,
		"Return the data that is present instead of failing on missing fields.")
}

type output struct {
	Data    map[string]interface{} `json:"data"`
	Missing []*x.MissingFieldError `json:"missing,omitempty"`
}

func run(ctx context.Context, sc x.SubCommand, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	query, err := session.ReadText(sc.Conf, "query")
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

	partial := sc.GetBoolP("partial", "p", false)
	var res *normalize.ReadResult
	if id := sc.GetStringP("id", "", ""); id != "" {
		res, err = s.Cache.ReadFragment(ctx, &cache.FragmentRequest{
			ID:                id,
			Fragment:          query,
			FragmentName:      sc.GetStringP("operation", "o", ""),
			Variables:         vars,
			ReturnPartialData: partial,
		})
	} else {
		res, err = s.Cache.ReadQuery(ctx, &cache.Request{
			Query:             query,
			OperationName:     sc.GetStringP("operation", "o", ""),
			Variables:         vars,
			ReturnPartialData: partial,
		})
	}
	if err != nil {
		return err
	}
	return session.Print(out, output{Data: res.Data, Missing: res.Missing})
}
