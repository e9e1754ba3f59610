/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package graph

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// RefKind tells which variant a Ref holds.
type RefKind uint8

const (
	// RefNull is a field that resolved to null.
	RefNull RefKind = iota
	// RefID points at a single node.
	RefID
	// RefList is a list of Refs, nested to any depth.
	RefList
)

// Ref is the value of a reference field: null, a node id, or a list of Refs mirroring
// the shape of the list it was written from.
type Ref struct {
	Kind RefKind
	ID   string
	List []Ref
}

// NullRef returns a null reference.
func NullRef() Ref { return Ref{Kind: RefNull} }

// IDRef returns a reference to the node id.
func IDRef(id string) Ref { return Ref{Kind: RefID, ID: id} }

// ListRef returns a list reference with the given elements.
func ListRef(items ...Ref) Ref {
	if items == nil {
		items = []Ref{}
	}
	return Ref{Kind: RefList, List: items}
}

// Walk calls fn with every node id reachable from r, in order.
func (r Ref) Walk(fn func(id string)) {
	switch r.Kind {
	case RefID:
		fn(r.ID)
	case RefList:
		for _, item := range r.List {
			item.Walk(fn)
		}
	}
}

// Equal reports whether r and o have the same shape and ids.
func (r Ref) Equal(o Ref) bool {
	if r.Kind != o.Kind {
		return false
	}
	switch r.Kind {
	case RefID:
		return r.ID == o.ID
	case RefList:
		if len(r.List) != len(o.List) {
			return false
		}
		for i := range r.List {
			if !r.List[i].Equal(o.List[i]) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes r as null, a string or a (nested) array.
func (r Ref) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RefNull:
		return []byte("null"), nil
	case RefID:
		return json.Marshal(r.ID)
	case RefList:
		return json.Marshal(r.List)
	}
	return nil, errors.Errorf("unknown ref kind %d", r.Kind)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ref, err := refFromValue(raw)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

func refFromValue(v interface{}) (Ref, error) {
	switch v := v.(type) {
	case nil:
		return NullRef(), nil
	case string:
		return IDRef(v), nil
	case []interface{}:
		items := make([]Ref, 0, len(v))
		for _, item := range v {
			ref, err := refFromValue(item)
			if err != nil {
				return Ref{}, err
			}
			items = append(items, ref)
		}
		return ListRef(items...), nil
	}
	return Ref{}, errors.Errorf("invalid reference value of type %T", v)
}
