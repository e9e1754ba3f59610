/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package cache

import (
	"sync"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/dgraph-io/gqlparser/v2/parser"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/dgryski/go-farm"
	"github.com/pkg/errors"
)

type parsedDoc struct {
	query string
	doc   *ast.QueryDocument
}

// documents memoizes parsed query documents by the fingerprint of their text. Parsed
// documents are never mutated, so they are shared between callers. After close, parse
// keeps working without memoization.
type documents struct {
	// mu is held for reading around every use of c, close takes it exclusively.
	mu     sync.RWMutex
	c      *ristretto.Cache[uint64, *parsedDoc]
	closed bool
}

func newDocuments(size int64) (*documents, error) {
	if size <= 0 {
		return &documents{}, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config[uint64, *parsedDoc]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
		// Every document costs 1, MaxCost is a document count.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "while creating document cache")
	}
	return &documents{c: c}, nil
}

func (d *documents) parse(query string) (*ast.QueryDocument, error) {
	if query == "" {
		return nil, errors.New("no query string supplied")
	}
	key := farm.Fingerprint64([]byte(query))
	d.mu.RLock()
	defer d.mu.RUnlock()
	cached := d.c != nil && !d.closed
	if cached {
		// Compare the text too, a fingerprint collision must not return another document.
		if pd, ok := d.c.Get(key); ok && pd.query == query {
			return pd.doc, nil
		}
	}

	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: query})
	if gqlErr != nil {
		return nil, gqlErr
	}
	if cached {
		d.c.Set(key, &parsedDoc{query: query, doc: doc}, 1)
	}
	return doc, nil
}

func (d *documents) wait() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.c != nil && !d.closed {
		d.c.Wait()
	}
}

func (d *documents) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.c != nil && !d.closed {
		d.closed = true
		d.c.Close()
	}
}
