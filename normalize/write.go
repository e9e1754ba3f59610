/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package normalize flattens GraphQL results into a graph.Store and reads them back.
//
// Whether a field is stored as a scalar or as a reference is decided by the selection
// set alone: a field with a sub-selection is a reference (or null, or a list of them),
// anything else is an opaque scalar, even when its value is a JSON object.
package normalize

import (
	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/gqlcache/graph"
	"github.com/hypermodeinc/gqlcache/keys"
	"github.com/hypermodeinc/gqlcache/x"
)

// DataIDFunc returns the external identity of a result object, if it has one.
type DataIDFunc func(obj map[string]interface{}) (string, bool)

// WriteOptions describes one write into a store.
type WriteOptions struct {
	// Graph is the store to write into. A new store is created when nil.
	Graph *graph.Store
	// ID is the node Data is written into. When empty the object itself is not
	// normalized, but its descendants with an external identity are.
	ID string
	// Data is a result object, or a list of them, shaped by SelectionSet.
	Data interface{}
	// SelectionSet picks the keys of Data to write.
	SelectionSet ast.SelectionSet
	// Variables binds the variables used in arguments and directives.
	Variables map[string]interface{}
	// Fragments are the definitions fragment spreads refer to.
	Fragments ast.FragmentDefinitionList
	// DataID identifies objects, optional.
	DataID DataIDFunc
}

// WriteResult is the outcome of a successful Write.
type WriteResult struct {
	Graph *graph.Store
	// Data is a copy of the written data where every normalized object carries its
	// node id under x.DataIDField.
	Data interface{}
}

type writer struct {
	g      *graph.Store
	col    *collector
	dataID DataIDFunc
	vars   map[string]interface{}
}

// Write normalizes opts.Data into opts.Graph. Fields are committed as they are visited:
// when an error is returned the store may already hold part of the data.
func Write(opts WriteOptions) (*WriteResult, error) {
	g := opts.Graph
	if g == nil {
		g = graph.New()
	}
	w := &writer{
		g:      g,
		col:    &collector{vars: opts.Variables, fragments: opts.Fragments},
		dataID: opts.DataID,
		vars:   opts.Variables,
	}

	var data interface{}
	var err error
	switch d := opts.Data.(type) {
	case map[string]interface{}:
		data, err = w.writeObject(opts.ID, d, opts.SelectionSet, nil)
	default:
		list, ok := asList(d)
		if !ok {
			return nil, errors.Errorf("cannot write data of type %T", opts.Data)
		}
		_, data, err = w.writeList(opts.ID, list, opts.SelectionSet, nil)
	}
	if err != nil {
		return nil, err
	}
	return &WriteResult{Graph: g, Data: data}, nil
}

func (w *writer) writeObject(id string, obj map[string]interface{}, set ast.SelectionSet,
	path []string) (map[string]interface{}, error) {

	fields, err := w.col.collect(set)
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(obj)+1)
	for k, v := range obj {
		out[k] = graph.Clone(v)
	}

	var node *graph.Node
	if id != "" {
		node = w.g.GetOrCreate(id)
		out[x.DataIDField] = id
	}
	if glog.V(3) {
		glog.Infof("writing %d fields into node %q", len(fields), id)
	}

	for _, f := range fields {
		fpath := append(path[:len(path):len(path)], f.responseKey)
		val, present := obj[f.responseKey]
		if !present {
			if f.fromFragment {
				continue
			}
			return nil, &x.MissingFieldError{
				Field: f.responseKey, NodeID: id, Path: fpath, Write: true}
		}

		key, err := keys.FieldKey(f.field, w.vars)
		if err != nil {
			return nil, err
		}

		if f.isLeaf() {
			if node != nil {
				node.SetScalar(key, val)
			}
			continue
		}

		var base string
		if id != "" {
			base = keys.ChildID(id, key, "")
		}
		ref, annotated, err := w.writeValue(base, val, f.selections, fpath)
		if err != nil {
			return nil, err
		}
		if node != nil {
			node.SetReference(key, ref)
		}
		out[f.responseKey] = annotated
	}
	return out, nil
}

// writeValue writes the value of a field with a sub-selection. base is the path id the
// value would get without an external identity, empty when it must not be normalized.
func (w *writer) writeValue(base string, val interface{}, set ast.SelectionSet,
	path []string) (graph.Ref, interface{}, error) {

	switch v := val.(type) {
	case nil:
		return graph.NullRef(), nil, nil
	case map[string]interface{}:
		id := w.identify(base, v)
		annotated, err := w.writeObject(id, v, set, path)
		if err != nil {
			return graph.Ref{}, nil, err
		}
		if id == "" {
			return graph.NullRef(), annotated, nil
		}
		return graph.IDRef(id), annotated, nil
	}

	list, ok := asList(val)
	if !ok {
		return graph.Ref{}, nil, errors.Errorf("expected an object or a list at %v, got %T",
			path, val)
	}
	return w.writeList(base, list, set, path)
}

func (w *writer) writeList(base string, list []interface{}, set ast.SelectionSet,
	path []string) (graph.Ref, []interface{}, error) {

	refs := make([]graph.Ref, 0, len(list))
	out := make([]interface{}, 0, len(list))
	for i, item := range list {
		var itemBase string
		if base != "" {
			itemBase = keys.IndexID(base, i)
		}
		ref, annotated, err := w.writeValue(itemBase, item, set, path)
		if err != nil {
			return graph.Ref{}, nil, err
		}
		refs = append(refs, ref)
		out = append(out, annotated)
	}
	return graph.ListRef(refs...), out, nil
}

// identify returns the node id of obj: its external identity if it has one, else its
// path id with the type discriminator.
func (w *writer) identify(base string, obj map[string]interface{}) string {
	if w.dataID != nil {
		if ext, ok := w.dataID(obj); ok && ext != "" {
			return keys.EntityID(ext)
		}
	}
	if base == "" {
		return ""
	}
	typename, _ := obj[x.TypenameField].(string)
	return keys.WithTypename(base, typename)
}

func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []map[string]interface{}:
		out := make([]interface{}, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}
