/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package graph holds the normalized store: a flat map from node id to a record of
// scalar values and references to other nodes.
package graph

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Node is one normalized record. A key lives in Scalars or in References, never both.
type Node struct {
	Scalars    map[string]interface{} `json:"scalars"`
	References map[string]Ref         `json:"references"`
}

// NewNode returns an empty node.
func NewNode() *Node {
	return &Node{
		Scalars:    make(map[string]interface{}),
		References: make(map[string]Ref),
	}
}

// SetScalar stores a clone of v under key.
func (n *Node) SetScalar(key string, v interface{}) {
	delete(n.References, key)
	n.Scalars[key] = Clone(v)
}

// SetReference stores r under key.
func (n *Node) SetReference(key string, r Ref) {
	delete(n.Scalars, key)
	n.References[key] = r
}

// Scalar returns the value stored under key. A stored null is (nil, true).
func (n *Node) Scalar(key string) (interface{}, bool) {
	if n == nil {
		return nil, false
	}
	v, ok := n.Scalars[key]
	return v, ok
}

// Reference returns the reference stored under key.
func (n *Node) Reference(key string) (Ref, bool) {
	if n == nil {
		return Ref{}, false
	}
	r, ok := n.References[key]
	return r, ok
}

// Delete removes key from the node.
func (n *Node) Delete(key string) {
	delete(n.Scalars, key)
	delete(n.References, key)
}

// Merge copies every key of o into n, overwriting keys present in both.
func (n *Node) Merge(o *Node) {
	for k, v := range o.Scalars {
		n.SetScalar(k, v)
	}
	for k, r := range o.References {
		n.SetReference(k, r)
	}
}

// Copy returns a deep copy of the node.
func (n *Node) Copy() *Node {
	c := NewNode()
	c.Merge(n)
	return c
}

// Len returns the number of keys on the node.
func (n *Node) Len() int {
	return len(n.Scalars) + len(n.References)
}

// Store maps node ids to node records. It is not safe for concurrent use, the owner is
// expected to serialize access.
type Store struct {
	nodes    map[string]*Node
	disposed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{nodes: make(map[string]*Node)}
}

// Get returns the node with the given id, or nil.
func (s *Store) Get(id string) *Node {
	return s.nodes[id]
}

// GetOrCreate returns the node with the given id, creating an empty one if needed.
func (s *Store) GetOrCreate(id string) *Node {
	if s.nodes == nil {
		s.nodes = make(map[string]*Node)
	}
	n, ok := s.nodes[id]
	if !ok {
		n = NewNode()
		s.nodes[id] = n
	}
	return n
}

// Put replaces the node stored under id.
func (s *Store) Put(id string, n *Node) {
	if s.nodes == nil {
		s.nodes = make(map[string]*Node)
	}
	s.nodes[id] = n
}

// Delete removes the node with the given id and reports whether it existed.
func (s *Store) Delete(id string) bool {
	_, ok := s.nodes[id]
	delete(s.nodes, id)
	return ok
}

// Has reports whether a node with the given id exists.
func (s *Store) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	return len(s.nodes)
}

// IDs returns the node ids in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset drops every node.
func (s *Store) Reset() {
	s.nodes = make(map[string]*Node)
}

// Dispose releases the nodes. A disposed store must not be written to again.
func (s *Store) Dispose() {
	s.nodes = nil
	s.disposed = true
}

// Disposed reports whether Dispose was called.
func (s *Store) Disposed() bool {
	return s.disposed
}

// Copy returns a deep copy of the store.
func (s *Store) Copy() *Store {
	c := &Store{nodes: make(map[string]*Node, len(s.nodes))}
	for id, n := range s.nodes {
		c.nodes[id] = n.Copy()
	}
	return c
}

// Reachable returns the ids of all existing nodes reachable from roots by following
// references.
func (s *Store) Reachable(roots ...string) map[string]struct{} {
	seen := make(map[string]struct{})
	stack := append([]string(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		for _, r := range n.References {
			r.Walk(func(child string) { stack = append(stack, child) })
		}
	}
	return seen
}

// MarshalJSON encodes the store as {"<id>": {"scalars": ..., "references": ...}}.
func (s *Store) MarshalJSON() ([]byte, error) {
	if s.nodes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.nodes)
}

// UnmarshalJSON replaces the content of the store with the encoded nodes.
func (s *Store) UnmarshalJSON(data []byte) error {
	var nodes map[string]*Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return errors.Wrap(err, "while decoding store")
	}
	s.nodes = make(map[string]*Node, len(nodes))
	for id, n := range nodes {
		if n == nil {
			return errors.Errorf("node %q is null", id)
		}
		if n.Scalars == nil {
			n.Scalars = make(map[string]interface{})
		}
		if n.References == nil {
			n.References = make(map[string]Ref)
		}
		s.nodes[id] = n
	}
	s.disposed = false
	return nil
}
