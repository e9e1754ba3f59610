/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package testutil

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/dgraph-io/gqlparser/v2/parser"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Various helpers used in cache testing

// ParseQuery parses a query document and requires no errors.
func ParseQuery(t *testing.T, query string) *ast.QueryDocument {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: query})
	requireNoGQLErrors(t, gqlErr)
	return doc
}

// Selection parses a document and returns the selection set of its only operation,
// or of its first fragment when it has no operation, with the document's fragments.
func Selection(t *testing.T, query string) (ast.SelectionSet, ast.FragmentDefinitionList) {
	doc := ParseQuery(t, query)
	if len(doc.Operations) > 0 {
		require.Len(t, doc.Operations, 1)
		return doc.Operations[0].SelectionSet, doc.Fragments
	}
	require.NotEmpty(t, doc.Fragments, "document has neither operations nor fragments")
	return doc.Fragments[0].SelectionSet, doc.Fragments
}

// JSON decodes a JSON literal into plain Go data.
func JSON(t *testing.T, s string) map[string]interface{} {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

// LoadYAMLCases reads a YAML file of test cases into cases.
func LoadYAMLCases(t *testing.T, file string, cases interface{}) {
	b, err := os.ReadFile(file)
	require.NoError(t, err, "Unable to read test file")
	require.NoError(t, yaml.Unmarshal(b, cases), "Unable to unmarshal test cases")
}

// RequireJSONEq converts to JSON and tests JSON equality.
// It's easier to understand the diff, when a test fails, with json than
// require.Equal on nested maps.
func RequireJSONEq(t *testing.T, expected, got interface{}) {
	jsonExpected, err := json.Marshal(expected)
	require.NoError(t, err)

	jsonGot, err := json.Marshal(got)
	require.NoError(t, err)

	require.JSONEq(t, string(jsonExpected), string(jsonGot))
}

// RequireJSONEqStr converts got to JSON and tests JSON equality with expected.
func RequireJSONEqStr(t *testing.T, expected string, got interface{}) {
	jsonGot, err := json.Marshal(got)
	require.NoError(t, err)

	require.JSONEq(t, expected, string(jsonGot))
}

func requireNoGQLErrors(t *testing.T, err error) {
	require.Nil(t, err,
		"required no GraphQL errors, but received :\n%s", serializeOrError(err))
}

func serializeOrError(toSerialize interface{}) string {
	byts, err := json.Marshal(toSerialize)
	if err != nil {
		return "unable to serialize because " + err.Error()
	}
	return string(byts)
}
