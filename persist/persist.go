/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package persist keeps snapshots of a graph store in a badger directory. Every node is
// written as its own JSON record under keys.NodeKey, next to one metadata record
// describing the snapshot.
package persist

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/gqlcache/graph"
	"github.com/hypermodeinc/gqlcache/keys"
)

// ErrNoSnapshot is returned by Meta when nothing was saved in the directory yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Meta describes the last saved snapshot.
type Meta struct {
	Generation string    `json:"generation"`
	Nodes      int       `json:"nodes"`
	Bytes      int64     `json:"bytes"`
	SavedAt    time.Time `json:"saved_at"`
}

// DB is a snapshot directory.
type DB struct {
	db *badger.DB
}

// Open opens (creating if needed) the badger directory at dir.
func Open(dir string) (*DB, error) {
	if dir == "" {
		return nil, errors.New("no snapshot directory given")
	}
	opt := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithLogger(nil)
	db, err := badger.Open(opt)
	if err != nil {
		return nil, errors.Wrapf(err, "while opening snapshot dir %s", dir)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying badger instance.
func (d *DB) Close() error {
	return d.db.Close()
}

// Save replaces the stored snapshot with the contents of s. Records are encoded before
// anything is written; stale node records are deleted in the transaction that writes the
// new ones and the meta record, so a failed Save leaves the previous snapshot in place.
// A snapshot too large for one badger transaction fails with badger.ErrTxnTooBig.
func (d *DB) Save(s *graph.Store) (*Meta, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}

	meta := &Meta{
		Generation: uuid.NewString(),
		SavedAt:    time.Now().UTC(),
	}
	ids := s.IDs()
	records := make([][]byte, len(ids))
	keep := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		val, err := json.Marshal(s.Get(id))
		if err != nil {
			return nil, errors.Wrapf(err, "while encoding node %s", id)
		}
		records[i] = val
		keep[id] = struct{}{}
		meta.Nodes++
		meta.Bytes += int64(len(val))
	}
	metaVal, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var stale [][]byte
	err = d.db.Update(func(txn *badger.Txn) error {
		var err error
		if stale, err = staleKeys(txn, keep); err != nil {
			return err
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return errors.Wrapf(err, "while deleting stale node")
			}
		}
		for i, id := range ids {
			if err := txn.Set(keys.NodeKey(id), records[i]); err != nil {
				return errors.Wrapf(err, "while writing node %s", id)
			}
		}
		return errors.Wrapf(txn.Set(keys.MetaKey(), metaVal), "while writing snapshot meta")
	})
	if err != nil {
		return nil, errors.Wrapf(err, "while committing snapshot")
	}
	if glog.V(2) {
		glog.Infof("Saved snapshot %s with %d nodes, %d stale removed",
			meta.Generation, meta.Nodes, len(stale))
	}
	return meta, nil
}

// staleKeys returns the stored node keys whose id is not in keep.
func staleKeys(txn *badger.Txn, keep map[string]struct{}) ([][]byte, error) {
	iopt := badger.DefaultIteratorOptions
	iopt.Prefix = keys.NodePrefix()
	iopt.PrefetchValues = false
	itr := txn.NewIterator(iopt)
	defer itr.Close()

	var stale [][]byte
	for itr.Rewind(); itr.Valid(); itr.Next() {
		key := itr.Item().KeyCopy(nil)
		id, err := keys.ParseNodeKey(key)
		if err != nil {
			return nil, err
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, key)
		}
	}
	return stale, nil
}

// Load reads the stored snapshot into a new store. An empty directory gives an empty store.
func (d *DB) Load() (*graph.Store, error) {
	s := graph.New()
	err := d.db.View(func(txn *badger.Txn) error {
		iopt := badger.DefaultIteratorOptions
		iopt.Prefix = keys.NodePrefix()
		itr := txn.NewIterator(iopt)
		defer itr.Close()

		for itr.Rewind(); itr.Valid(); itr.Next() {
			item := itr.Item()
			id, err := keys.ParseNodeKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			n := graph.NewNode()
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, n)
			}); err != nil {
				return errors.Wrapf(err, "while decoding node %s", id)
			}
			if n.Scalars == nil {
				n.Scalars = make(map[string]interface{})
			}
			if n.References == nil {
				n.References = make(map[string]graph.Ref)
			}
			s.Put(id, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Meta returns the metadata of the stored snapshot.
func (d *DB) Meta() (*Meta, error) {
	meta := &Meta{}
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keys.MetaKey())
		if err == badger.ErrKeyNotFound {
			return ErrNoSnapshot
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, meta)
		})
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}
