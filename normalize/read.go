/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package normalize

import (
	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/gqlcache/graph"
	"github.com/hypermodeinc/gqlcache/keys"
	"github.com/hypermodeinc/gqlcache/x"
)

// ReadOptions describes one read from a store.
type ReadOptions struct {
	Graph *graph.Store
	// ID is the node the selection set is read from. A node that doesn't exist reads as
	// an empty one.
	ID           string
	SelectionSet ast.SelectionSet
	Variables    map[string]interface{}
	Fragments    ast.FragmentDefinitionList
	// ReturnPartialData omits missing fields from the result instead of failing.
	ReturnPartialData bool
}

// ReadResult is the outcome of ReadWithResult.
type ReadResult struct {
	Data map[string]interface{}
	// Complete is false when at least one field was omitted.
	Complete bool
	// Missing lists the omitted fields, only filled with ReturnPartialData.
	Missing []*x.MissingFieldError
}

type reader struct {
	g       *graph.Store
	col     *collector
	vars    map[string]interface{}
	partial bool
	missing []*x.MissingFieldError
}

// Read reconstitutes the result of opts.SelectionSet at node opts.ID. The returned tree
// shares no memory with the store.
func Read(opts ReadOptions) (map[string]interface{}, error) {
	res, err := ReadWithResult(opts)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ReadWithResult is Read, also reporting which fields were missing when partial data is
// allowed.
func ReadWithResult(opts ReadOptions) (*ReadResult, error) {
	if opts.Graph == nil {
		return nil, errors.New("no store to read from")
	}
	r := &reader{
		g:       opts.Graph,
		col:     &collector{vars: opts.Variables, fragments: opts.Fragments},
		vars:    opts.Variables,
		partial: opts.ReturnPartialData,
	}
	data, err := r.readObject(opts.ID, opts.SelectionSet, nil)
	if err != nil {
		return nil, err
	}
	return &ReadResult{
		Data:     data,
		Complete: len(r.missing) == 0,
		Missing:  r.missing,
	}, nil
}

func (r *reader) readObject(id string, set ast.SelectionSet, path []string) (
	map[string]interface{}, error) {

	fields, err := r.col.collect(set)
	if err != nil {
		return nil, err
	}
	node := r.g.Get(id)

	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		fpath := append(path[:len(path):len(path)], f.responseKey)
		key, err := keys.FieldKey(f.field, r.vars)
		if err != nil {
			return nil, err
		}

		if f.isLeaf() {
			v, ok := node.Scalar(key)
			if !ok {
				if err := r.miss(f, id, fpath); err != nil {
					return nil, err
				}
				continue
			}
			out[f.responseKey] = graph.Clone(v)
			continue
		}

		ref, ok := node.Reference(key)
		if !ok {
			if err := r.miss(f, id, fpath); err != nil {
				return nil, err
			}
			continue
		}
		v, err := r.readRef(ref, f.selections, fpath)
		if err != nil {
			return nil, err
		}
		out[f.responseKey] = v
	}
	return out, nil
}

func (r *reader) readRef(ref graph.Ref, set ast.SelectionSet, path []string) (
	interface{}, error) {

	switch ref.Kind {
	case graph.RefNull:
		return nil, nil
	case graph.RefID:
		return r.readObject(ref.ID, set, path)
	case graph.RefList:
		out := make([]interface{}, 0, len(ref.List))
		for _, item := range ref.List {
			v, err := r.readRef(item, set, path)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, errors.Errorf("unknown reference kind %d at %v", ref.Kind, path)
}

// miss returns the error for a missing field, or records it when partial data is
// allowed.
func (r *reader) miss(f *collectedField, id string, path []string) error {
	err := &x.MissingFieldError{Field: f.responseKey, NodeID: id, Path: path}
	if !r.partial {
		return err
	}
	r.missing = append(r.missing, err)
	return nil
}
