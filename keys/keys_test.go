/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package keys

import (
	"testing"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/dgraph-io/gqlparser/v2/parser"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/gqlcache/x"
)

func firstField(t *testing.T, query string) *ast.Field {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: query})
	require.Nil(t, gqlErr)
	require.Len(t, doc.Operations, 1)
	f, ok := doc.Operations[0].SelectionSet[0].(*ast.Field)
	require.True(t, ok)
	return f
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		query string
		vars  map[string]interface{}
		want  string
	}{
		{`{ a }`, nil, `a`},
		{`{ alias: a }`, nil, `a`},
		{`{ a(x: 1) }`, nil, `a({"x":1})`},
		{`{ a(b: 2, a: 1) }`, nil, `a({"a":1,"b":2})`},
		{`{ a(f: 1.5, s: "str", e: ENUM, n: null, t: true) }`, nil,
			`a({"e":"ENUM","f":1.5,"n":null,"s":"str","t":true})`},
		{`{ a(l: [1, [2, "x"]], o: {z: 1, y: {b: false}}) }`, nil,
			`a({"l":[1,[2,"x"]],"o":{"y":{"b":false},"z":1}})`},
		{`{ a(v: $v) }`, map[string]interface{}{"v": map[string]interface{}{"q": "<&>"}},
			`a({"v":{"q":"<&>"}})`},
		{`{ a(v: $v) }`, map[string]interface{}{"v": nil}, `a({"v":null})`},
		{`{ a(in: {list: [$x, $y]}) }`, map[string]interface{}{"x": 1, "y": "two"},
			`a({"in":{"list":[1,"two"]}})`},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, err := FieldKey(firstField(t, tc.query), tc.vars)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestStorageKeyOrderIndependent(t *testing.T) {
	one, err := FieldKey(firstField(t, `{ a(x: 1, y: {p: 1, q: 2}) }`), nil)
	require.NoError(t, err)
	two, err := FieldKey(firstField(t, `{ a(y: {q: 2, p: 1}, x: 1) }`), nil)
	require.NoError(t, err)
	require.Equal(t, one, two)
}

func TestStorageKeyMissingVariable(t *testing.T) {
	_, err := FieldKey(firstField(t, `{ a(x: {y: [$missing]}) }`), map[string]interface{}{})
	var mv *x.MissingVariableError
	require.True(t, errors.As(err, &mv))
	require.Equal(t, "missing", mv.Name)
	require.Contains(t, err.Error(), "$missing")
}

func TestResponseKey(t *testing.T) {
	require.Equal(t, "b", ResponseKey(firstField(t, `{ b: a }`)))
	require.Equal(t, "a", ResponseKey(firstField(t, `{ a }`)))
	require.Equal(t, "a", ResponseKey(&ast.Field{Name: "a"}))
}

func TestResolveBool(t *testing.T) {
	b, err := ResolveBool(&ast.Value{Kind: ast.Variable, Raw: "s"},
		map[string]interface{}{"s": true})
	require.NoError(t, err)
	require.True(t, b)

	_, err = ResolveBool(&ast.Value{Kind: ast.StringValue, Raw: "true"}, nil)
	require.Error(t, err)
}

func TestNodeIDs(t *testing.T) {
	require.Equal(t, "(1)", EntityID("1"))
	require.True(t, IsEntityID("(User:1)"))
	require.False(t, IsEntityID("root.a"))
	require.Equal(t, "root.foo", ChildID("root", "foo", ""))
	require.Equal(t, "root.foo:Type1", ChildID("root", "foo", "Type1"))
	require.Equal(t, `root.foo:Type1.b({"arg":"YES"}):Type3`,
		ChildID(ChildID("root", "foo", "Type1"), `b({"arg":"YES"})`, "Type3"))
	require.Equal(t, "root.list.2", IndexID("root.list", 2))
	require.Equal(t, "root.list.2:T", WithTypename(IndexID("root.list", 2), "T"))
}

func TestNodeKey(t *testing.T) {
	k := NodeKey("root.foo")
	id, err := ParseNodeKey(k)
	require.NoError(t, err)
	require.Equal(t, "root.foo", id)
	require.Equal(t, NodePrefix(), k[:1])

	_, err = ParseNodeKey(MetaKey())
	require.Error(t, err)
}
