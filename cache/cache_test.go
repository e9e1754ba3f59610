/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dgraph-io/gqlparser/v2/gqlerror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/gqlcache/graph"
	"github.com/hypermodeinc/gqlcache/testutil"
	"github.com/hypermodeinc/gqlcache/x"
)

const heroQuery = `query hero($episode: String = "JEDI") {
	hero(episode: $episode) {
		__typename
		id
		name
		friends { __typename id name }
	}
}`

const heroData = `{
	"hero": {
		"__typename": "Droid",
		"id": "2001",
		"name": "R2-D2",
		"friends": [
			{"__typename": "Human", "id": "1000", "name": "Luke"},
			{"__typename": "Human", "id": "1002", "name": "Han"}
		]
	}
}`

func newCache(t *testing.T, opts ...Option) *Cache {
	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(c.Dispose)
	return c
}

func TestWriteAndReadQuery(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	written, err := c.WriteQuery(ctx, &Request{Query: heroQuery}, testutil.JSON(t, heroData))
	require.NoError(t, err)
	require.Equal(t, x.RootQuery, written[x.DataIDField])
	hero := written["hero"].(map[string]interface{})
	require.Equal(t, "(Droid:2001)", hero[x.DataIDField])

	res, err := c.ReadQuery(ctx, &Request{Query: heroQuery})
	require.NoError(t, err)
	require.True(t, res.Complete)
	testutil.RequireJSONEqStr(t, heroData, res.Data)

	snapshot := c.Snapshot()
	ref, ok := snapshot.Get(x.RootQuery).Reference(`hero({"episode":"JEDI"})`)
	require.True(t, ok)
	require.Equal(t, graph.IDRef("(Droid:2001)"), ref)
	require.True(t, snapshot.Has("(Human:1000)"))
}

func TestVariablesOverrideDefaults(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	req := &Request{Query: heroQuery, Variables: map[string]interface{}{"episode": "EMPIRE"}}
	_, err := c.WriteQuery(ctx, req, testutil.JSON(t, heroData))
	require.NoError(t, err)

	_, err = c.ReadQuery(ctx, &Request{Query: heroQuery})
	require.True(t, x.IsMissingField(err))

	res, err := c.ReadQuery(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "R2-D2", res.Data["hero"].(map[string]interface{})["name"])
}

func TestMutationRoot(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	mutation := `mutation { like(id: "1") { id likes } }`

	_, err := c.WriteQuery(ctx, &Request{Query: mutation},
		testutil.JSON(t, `{"like": {"id": "1", "likes": 3}}`))
	require.NoError(t, err)
	snapshot := c.Snapshot()
	require.True(t, snapshot.Has(x.RootMutation))
	require.False(t, snapshot.Has(x.RootQuery))
	require.True(t, snapshot.Has("(1)"))
}

func TestPartialRead(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_, err := c.WriteQuery(ctx, &Request{Query: `{ a }`}, map[string]interface{}{"a": 1})
	require.NoError(t, err)

	_, err = c.ReadQuery(ctx, &Request{Query: `{ a b }`})
	var mf *x.MissingFieldError
	require.True(t, errors.As(err, &mf))
	require.Equal(t, x.RootQuery, mf.NodeID)

	res, err := c.ReadQuery(ctx, &Request{Query: `{ a b }`, ReturnPartialData: true})
	require.NoError(t, err)
	require.False(t, res.Complete)
	require.Equal(t, map[string]interface{}{"a": 1}, res.Data)
}

func TestOperationSelection(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	doc := `query one { a } query two { b }`

	_, err := c.WriteQuery(ctx, &Request{Query: doc}, map[string]interface{}{"a": 1})
	require.Error(t, err)
	_, err = c.WriteQuery(ctx, &Request{Query: doc, OperationName: "three"},
		map[string]interface{}{"a": 1})
	require.Error(t, err)
	_, err = c.WriteQuery(ctx, &Request{Query: doc, OperationName: "two"},
		map[string]interface{}{"b": 2})
	require.NoError(t, err)

	res, err := c.ReadQuery(ctx, &Request{Query: doc, OperationName: "two"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"b": 2}, res.Data)
}

func TestParseErrors(t *testing.T) {
	c := newCache(t)
	_, err := c.ReadQuery(context.Background(), &Request{Query: `{ a `})
	var gqlErr *gqlerror.Error
	require.True(t, errors.As(err, &gqlErr))
	require.Len(t, x.AsGQLErrors(err), 1)

	_, err = c.ReadQuery(context.Background(), &Request{})
	require.Error(t, err)
	_, err = c.ReadQuery(context.Background(), nil)
	require.Error(t, err)
}

func TestFragments(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_, err := c.WriteQuery(ctx, &Request{Query: heroQuery}, testutil.JSON(t, heroData))
	require.NoError(t, err)

	frag := `fragment Name on Character { name } fragment Friends on Character { friends { name } }`
	res, err := c.ReadFragment(ctx, &FragmentRequest{
		ID: "(Droid:2001)", Fragment: frag, FragmentName: "Friends"})
	require.NoError(t, err)
	testutil.RequireJSONEqStr(t, `{"friends": [{"name": "Luke"}, {"name": "Han"}]}`, res.Data)

	_, err = c.WriteFragment(ctx, &FragmentRequest{ID: "(Human:1000)", Fragment: frag,
		FragmentName: "Name"}, map[string]interface{}{"name": "Luke Skywalker"})
	require.NoError(t, err)

	res, err = c.ReadQuery(ctx, &Request{Query: heroQuery})
	require.NoError(t, err)
	friends := res.Data["hero"].(map[string]interface{})["friends"].([]interface{})
	require.Equal(t, "Luke Skywalker", friends[0].(map[string]interface{})["name"])

	_, err = c.ReadFragment(ctx, &FragmentRequest{ID: "(Droid:2001)", Fragment: frag})
	require.Error(t, err, "two fragments and no name")
	_, err = c.ReadFragment(ctx, &FragmentRequest{ID: "(Droid:2001)", Fragment: frag,
		FragmentName: "Nope"})
	var mfr *x.MissingFragmentError
	require.True(t, errors.As(err, &mfr))
	_, err = c.ReadFragment(ctx, &FragmentRequest{Fragment: frag, FragmentName: "Name"})
	require.Error(t, err, "no id")

	single, err := c.ReadFragment(ctx, &FragmentRequest{ID: "(Human:1002)",
		Fragment: `fragment F on Human { __typename name }`})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"__typename": "Human", "name": "Han"}, single.Data)
}

func TestIdentify(t *testing.T) {
	c := newCache(t)
	id, ok := c.Identify(map[string]interface{}{"__dataID": "root.a"})
	require.True(t, ok)
	require.Equal(t, "root.a", id)

	id, ok = c.Identify(map[string]interface{}{"__typename": "User", "id": 5.0})
	require.True(t, ok)
	require.Equal(t, "(User:5)", id)

	_, ok = c.Identify(map[string]interface{}{"name": "x"})
	require.False(t, ok)

	noID := newCache(t, WithDataID(nil))
	_, ok = noID.Identify(map[string]interface{}{"id": "1"})
	require.False(t, ok)
}

func TestDefaultDataID(t *testing.T) {
	id, ok := DefaultDataID(map[string]interface{}{"_id": "a"})
	require.True(t, ok)
	require.Equal(t, "a", id)

	id, ok = DefaultDataID(map[string]interface{}{"id": 3, "_id": "a", "__typename": "T"})
	require.True(t, ok)
	require.Equal(t, "T:3", id)

	_, ok = DefaultDataID(map[string]interface{}{"id": nil})
	require.False(t, ok)
}

func TestEvictAndGC(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_, err := c.WriteQuery(ctx, &Request{Query: heroQuery}, testutil.JSON(t, heroData))
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())

	require.True(t, c.Evict(ctx, "(Human:1002)"))
	require.False(t, c.Evict(ctx, "(Human:1002)"))
	_, err = c.ReadQuery(ctx, &Request{Query: heroQuery})
	require.True(t, x.IsMissingField(err))

	require.True(t, c.Evict(ctx, "(Droid:2001)", "friends"))
	require.False(t, c.Evict(ctx, "(Droid:2001)", "friends"))
	c.Retain("(Human:1000)")
	require.Empty(t, c.GC(ctx))
	c.Release("(Human:1000)")
	require.Equal(t, []string{"(Human:1000)"}, c.GC(ctx))

	require.True(t, c.Evict(ctx, x.RootQuery, `hero({"episode":"JEDI"})`))
	require.Equal(t, []string{"(Droid:2001)"}, c.GC(ctx))
	require.Equal(t, 1, c.Len())
}

func TestExtractRestore(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_, err := c.WriteQuery(ctx, &Request{Query: heroQuery}, testutil.JSON(t, heroData))
	require.NoError(t, err)

	data, err := c.Extract()
	require.NoError(t, err)

	other := newCache(t)
	require.NoError(t, other.Restore(data))
	res, err := other.ReadQuery(ctx, &Request{Query: heroQuery})
	require.NoError(t, err)
	testutil.RequireJSONEqStr(t, heroData, res.Data)

	require.Error(t, other.Restore([]byte(`[]`)))
}

func TestResetAndDispose(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_, err := c.WriteQuery(ctx, &Request{Query: `{ a }`}, map[string]interface{}{"a": 1})
	require.NoError(t, err)

	c.Reset()
	require.Equal(t, 0, c.Len())

	c.Dispose()
	_, err = c.WriteQuery(ctx, &Request{Query: `{ a }`}, map[string]interface{}{"a": 1})
	require.Equal(t, ErrDisposed, err)
	_, err = c.ReadQuery(ctx, &Request{Query: `{ a }`})
	require.Equal(t, ErrDisposed, err)
	_, err = c.Extract()
	require.Equal(t, ErrDisposed, err)
	require.False(t, c.Evict(ctx, x.RootQuery))
	require.Nil(t, c.GC(ctx))
}

func TestWithStore(t *testing.T) {
	s := graph.New()
	s.GetOrCreate(x.RootQuery).SetScalar("a", "preloaded")
	c := newCache(t, WithStore(s), WithDocCacheSize(0))

	res, err := c.ReadQuery(context.Background(), &Request{Query: `{ a }`})
	require.NoError(t, err)
	require.Equal(t, "preloaded", res.Data["a"])
}

func TestDocumentsAreMemoized(t *testing.T) {
	docs, err := newDocuments(16)
	require.NoError(t, err)
	defer docs.close()

	first, err := docs.parse(`{ a }`)
	require.NoError(t, err)
	docs.wait()
	second, err := docs.parse(`{ a }`)
	require.NoError(t, err)
	require.Same(t, first, second)

	_, err = docs.parse("")
	require.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	query := `query item($id: ID) { item(id: $id) { id value } }`

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := &Request{Query: query, Variables: map[string]interface{}{"id": i}}
			data := map[string]interface{}{"item": map[string]interface{}{"id": i, "value": i}}
			_, err := c.WriteQuery(ctx, req, data)
			require.NoError(t, err)
			res, err := c.ReadQuery(ctx, req)
			require.NoError(t, err)
			require.Equal(t, i, res.Data["item"].(map[string]interface{})["value"])
		}(i)
	}
	wg.Wait()
	require.Equal(t, 9, c.Len())
}

func TestDisposeDuringReads(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			for j := 0; j < 50; j++ {
				query := fmt.Sprintf(`{ f%d_%d }`, i, j)
				_, err := c.ReadQuery(ctx, &Request{Query: query, ReturnPartialData: true})
				if err != nil {
					require.Equal(t, ErrDisposed, err)
				}
			}
		}(i)
	}
	close(start)
	c.Dispose()
	wg.Wait()

	_, err := c.ReadQuery(ctx, &Request{Query: `{ not valid`})
	require.Equal(t, ErrDisposed, err)
	_, err = c.ReadFragment(ctx, &FragmentRequest{ID: "x", Fragment: `fragment F on T { a }`})
	require.Equal(t, ErrDisposed, err)
}
