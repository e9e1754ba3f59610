/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	err := run()
	return out.String(), err
}

func decode(t *testing.T, out string) map[string]interface{} {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

func TestWriteReadInspectGC(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "write", "--dir", dir, "--query", "testdata/hero.graphql",
		"--data", "testdata/hero.yaml", "--vars", "", "--id", "", "--operation", "")
	require.NoError(t, err)
	written := decode(t, out)
	require.Equal(t, "ROOT_QUERY", written["__dataID"])

	out, err = execute(t, "read", "--dir", dir, "--query", "testdata/hero.graphql",
		"--vars", "", "--id", "", "--operation", "", "--partial=false")
	require.NoError(t, err)
	hero := decode(t, out)["data"].(map[string]interface{})["hero"].(map[string]interface{})
	require.Equal(t, "R2-D2", hero["name"])
	require.Len(t, hero["friends"], 2)

	_, err = execute(t, "read", "--dir", dir, "--query", "testdata/hero.graphql",
		"--vars", "testdata/empire.json", "--id", "", "--operation", "", "--partial=false")
	require.Error(t, err)

	out, err = execute(t, "read", "--dir", dir, "--query", "testdata/hero.graphql",
		"--vars", "testdata/empire.json", "--id", "", "--operation", "", "--partial=true")
	require.NoError(t, err)
	require.NotEmpty(t, decode(t, out)["missing"])

	out, err = execute(t, "read", "--dir", dir, "--query", "testdata/name.graphql",
		"--vars", "", "--id", "(Human:1000)", "--operation", "", "--partial=false")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"name": "Luke"}, decode(t, out)["data"])

	out, err = execute(t, "inspect", "--dir", dir, "--node", "", "--extract=false")
	require.NoError(t, err)
	require.Contains(t, out, "Nodes      : 4")

	out, err = execute(t, "gc", "--dir", dir, "--evict", "(Droid:2001)", "--retain", "",
		"--dry_run=false")
	require.NoError(t, err)
	res := decode(t, out)
	require.Equal(t, []interface{}{"(Droid:2001)"}, res["evicted"])
	require.ElementsMatch(t, []interface{}{"(Human:1000)", "(Human:1002)"}, res["removed"])

	out, err = execute(t, "inspect", "--dir", dir, "--node", "", "--extract=true")
	require.NoError(t, err)
	require.Len(t, decode(t, out), 1)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "gqlcache version")
}

func TestTeardownAfterFailure(t *testing.T) {
	t.Cleanup(func() {
		require.NoError(t, RootCmd.PersistentFlags().Set("trace", "false"))
		require.NoError(t, RootCmd.PersistentFlags().Set("metrics_addr", ""))
	})

	_, err := execute(t, "read", "--trace", "--metrics_addr", "127.0.0.1:0",
		"--dir", t.TempDir(), "--query", "testdata/missing.graphql",
		"--vars", "", "--id", "", "--operation", "", "--partial=false")
	require.Error(t, err)
	require.Nil(t, stopTracing)
	require.Nil(t, metricsSrv)
}
