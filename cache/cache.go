/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package cache owns a normalized store and exposes query and fragment level reads and
// writes on top of it. A Cache is safe for concurrent use; every call commits into the
// store immediately and there is no isolation across calls.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hypermodeinc/gqlcache/graph"
	"github.com/hypermodeinc/gqlcache/keys"
	"github.com/hypermodeinc/gqlcache/normalize"
	"github.com/hypermodeinc/gqlcache/x"
)

// ErrDisposed is returned by every operation on a disposed cache.
var ErrDisposed = errors.New("cache has been disposed")

var tracer = otel.Tracer("gqlcache.cache")

// A Request is a GraphQL operation to write or read. It makes no guarantees that the
// request is valid.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	// ReturnPartialData omits missing fields from reads instead of failing.
	ReturnPartialData bool `json:"-"`
}

// A FragmentRequest applies one fragment of a document at an explicit node.
type FragmentRequest struct {
	ID string
	// Fragment is a document holding one or more fragment definitions.
	Fragment string
	// FragmentName picks the fragment, it may be empty when there is only one.
	FragmentName      string
	Variables         map[string]interface{}
	ReturnPartialData bool
}

// Cache is a normalized GraphQL result cache.
type Cache struct {
	mu sync.RWMutex

	store    *graph.Store
	docs     *documents
	dataID   normalize.DataIDFunc
	retained map[string]int
	disposed bool
}

type config struct {
	dataID  normalize.DataIDFunc
	docSize int64
	store   *graph.Store
}

// Option configures a Cache.
type Option func(*config)

// WithDataID sets the identity function consulted for every written object. Pass nil
// to only use path ids.
func WithDataID(f normalize.DataIDFunc) Option {
	return func(c *config) { c.dataID = f }
}

// WithDocCacheSize sets how many parsed documents are memoized. Zero disables it.
func WithDocCacheSize(n int64) Option {
	return func(c *config) { c.docSize = n }
}

// WithStore makes the cache start from an existing store, e.g. one loaded from disk.
func WithStore(s *graph.Store) Option {
	return func(c *config) { c.store = s }
}

// New creates a cache. By default objects are identified with DefaultDataID.
func New(opts ...Option) (*Cache, error) {
	cfg := &config{dataID: DefaultDataID, docSize: x.Config.DocCacheSize}
	for _, opt := range opts {
		opt(cfg)
	}
	docs, err := newDocuments(cfg.docSize)
	if err != nil {
		return nil, err
	}
	store := cfg.store
	if store == nil {
		store = graph.New()
	}
	glog.Infof("Created cache with %d nodes", store.Len())
	return &Cache{
		store:    store,
		docs:     docs,
		dataID:   cfg.dataID,
		retained: make(map[string]int),
	}, nil
}

// DefaultDataID identifies objects having one of x.Config.IDFields as "Typename:id", or
// just "id" when the object has no __typename.
func DefaultDataID(obj map[string]interface{}) (string, bool) {
	for _, f := range x.Config.IDFields {
		var id string
		switch v := obj[f].(type) {
		case string:
			id = v
		case float64, int, int64, json.Number:
			id = fmt.Sprint(v)
		default:
			continue
		}
		if typename, ok := obj[x.TypenameField].(string); ok && typename != "" {
			return typename + ":" + id, true
		}
		return id, true
	}
	return "", false
}

// WriteQuery writes data, the result of req, under the root node of the operation and
// returns data annotated with node ids.
func (c *Cache) WriteQuery(ctx context.Context, req *Request,
	data map[string]interface{}) (result map[string]interface{}, err error) {

	o := begin(ctx, "WriteQuery")
	var nodes int
	defer func() { o.end(err, x.NumWrites.M(1), x.NumNodes.M(int64(nodes))) }()

	doc, op, vars, err := c.operation(req)
	if err != nil {
		return nil, err
	}
	root := rootID(op.Operation)
	o.span.SetAttributes(attribute.String("root", root))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	result, err = c.write(root, data, op.SelectionSet, vars, doc.Fragments)
	nodes = c.store.Len()
	return result, err
}

// ReadQuery reads the result of req from the root node of the operation.
func (c *Cache) ReadQuery(ctx context.Context, req *Request) (
	res *normalize.ReadResult, err error) {

	o := begin(ctx, "ReadQuery")
	defer func() { o.end(err, x.NumReads.M(1)) }()

	doc, op, vars, err := c.operation(req)
	if err != nil {
		return nil, err
	}
	root := rootID(op.Operation)
	o.span.SetAttributes(attribute.String("root", root))

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	return c.read(root, op.SelectionSet, vars, doc.Fragments, req.ReturnPartialData)
}

// WriteFragment writes data at req.ID through the selected fragment.
func (c *Cache) WriteFragment(ctx context.Context, req *FragmentRequest,
	data map[string]interface{}) (result map[string]interface{}, err error) {

	o := begin(ctx, "WriteFragment")
	var nodes int
	defer func() { o.end(err, x.NumWrites.M(1), x.NumNodes.M(int64(nodes))) }()

	doc, frag, err := c.fragment(req)
	if err != nil {
		return nil, err
	}
	o.span.SetAttributes(attribute.String("id", req.ID))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	result, err = c.write(req.ID, data, frag.SelectionSet, req.Variables, doc.Fragments)
	nodes = c.store.Len()
	return result, err
}

// ReadFragment reads the selected fragment at req.ID.
func (c *Cache) ReadFragment(ctx context.Context, req *FragmentRequest) (
	res *normalize.ReadResult, err error) {

	o := begin(ctx, "ReadFragment")
	defer func() { o.end(err, x.NumReads.M(1)) }()

	doc, frag, err := c.fragment(req)
	if err != nil {
		return nil, err
	}
	o.span.SetAttributes(attribute.String("id", req.ID))

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	return c.read(req.ID, frag.SelectionSet, req.Variables, doc.Fragments,
		req.ReturnPartialData)
}

// Identify returns the node id of a result object: the id a write annotated it with, or
// the one derived from the identity function.
func (c *Cache) Identify(obj map[string]interface{}) (string, bool) {
	if id, ok := obj[x.DataIDField].(string); ok && id != "" {
		return id, true
	}
	if c.dataID == nil {
		return "", false
	}
	if ext, ok := c.dataID(obj); ok && ext != "" {
		return keys.EntityID(ext), true
	}
	return "", false
}

// Evict removes a node, or only the given storage keys of it, and reports whether
// anything was removed. References to an evicted node read as missing fields.
func (c *Cache) Evict(ctx context.Context, id string, fields ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	ctx = x.WithMethod(ctx, "Evict")
	start := time.Now()

	var removed bool
	if len(fields) == 0 {
		removed = c.store.Delete(id)
	} else if n := c.store.Get(id); n != nil {
		for _, f := range fields {
			_, isScalar := n.Scalar(f)
			_, isRef := n.Reference(f)
			removed = removed || isScalar || isRef
			n.Delete(f)
		}
	}
	var evicted int64
	if removed {
		evicted = 1
	}
	x.RecordOp(ctx, start, nil, x.NumEvictions.M(evicted), x.NumNodes.M(int64(c.store.Len())))
	return removed
}

// Retain keeps id, and everything reachable from it, alive across GC.
func (c *Cache) Retain(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retained[id]++
}

// Release undoes one Retain.
func (c *Cache) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retained[id] <= 1 {
		delete(c.retained, id)
		return
	}
	c.retained[id]--
}

// GC removes every node not reachable from the root nodes or a retained node and
// returns the removed ids in sorted order.
func (c *Cache) GC(ctx context.Context) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil
	}
	ctx = x.WithMethod(ctx, "GC")
	start := time.Now()

	roots := x.RootIDs()
	for id := range c.retained {
		roots = append(roots, id)
	}
	live := c.store.Reachable(roots...)

	var removed []string
	for _, id := range c.store.IDs() {
		if _, ok := live[id]; !ok {
			c.store.Delete(id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	if len(removed) > 0 {
		glog.V(2).Infof("GC removed %d nodes", len(removed))
	}
	x.RecordOp(ctx, start, nil, x.NumEvictions.M(int64(len(removed))),
		x.NumNodes.M(int64(c.store.Len())))
	return removed
}

// Len returns the number of nodes in the store.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Len()
}

// Extract returns the store as JSON, in the layout Restore accepts.
func (c *Cache) Extract() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	return json.Marshal(c.store)
}

// Restore replaces the content of the store with an extracted one.
func (c *Cache) Restore(data []byte) error {
	s := graph.New()
	if err := json.Unmarshal(data, s); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.store = s
	glog.Infof("Restored cache with %d nodes", s.Len())
	return nil
}

// Snapshot returns a deep copy of the store.
func (c *Cache) Snapshot() *graph.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Copy()
}

// Reset drops every node and retained id.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.store.Reset()
	c.retained = make(map[string]int)
	glog.Infof("Cache reset")
}

// Dispose releases the store and the document cache. Every later call fails.
func (c *Cache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.store.Dispose()
	c.docs.close()
	glog.Infof("Cache disposed")
}

func (c *Cache) write(id string, data map[string]interface{}, set ast.SelectionSet,
	vars map[string]interface{}, frags ast.FragmentDefinitionList) (
	map[string]interface{}, error) {

	if data == nil {
		return nil, errors.New("no data to write")
	}
	res, err := normalize.Write(normalize.WriteOptions{
		Graph:        c.store,
		ID:           id,
		Data:         data,
		SelectionSet: set,
		Variables:    vars,
		Fragments:    frags,
		DataID:       c.dataID,
	})
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("Wrote into %q, store has %d nodes", id, c.store.Len())
	return res.Data.(map[string]interface{}), nil
}

func (c *Cache) read(id string, set ast.SelectionSet, vars map[string]interface{},
	frags ast.FragmentDefinitionList, partial bool) (*normalize.ReadResult, error) {

	res, err := normalize.ReadWithResult(normalize.ReadOptions{
		Graph:             c.store,
		ID:                id,
		SelectionSet:      set,
		Variables:         vars,
		Fragments:         frags,
		ReturnPartialData: partial,
	})
	if err != nil {
		return nil, err
	}
	if !res.Complete {
		glog.V(2).Infof("Partial read from %q, %d fields missing", id, len(res.Missing))
		if x.Config.DebugMode {
			for _, mf := range res.Missing {
				glog.Infof("Missing: %v", mf)
			}
		}
	}
	return res, nil
}

// operation finds the operation of req and computes its variables, defaults included.
func (c *Cache) operation(req *Request) (*ast.QueryDocument, *ast.OperationDefinition,
	map[string]interface{}, error) {

	if c.isDisposed() {
		return nil, nil, nil, ErrDisposed
	}
	if req == nil {
		return nil, nil, nil, errors.New("no request supplied")
	}
	doc, err := c.docs.parse(req.Query)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(doc.Operations) == 0 {
		return nil, nil, nil, errors.New("document has no operation")
	}
	if len(doc.Operations) > 1 && req.OperationName == "" {
		return nil, nil, nil, errors.Errorf("Operation name must by supplied when query " +
			"has more than 1 operation.")
	}
	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return nil, nil, nil, errors.Errorf("Supplied operation name %s isn't present in "+
			"the request.", req.OperationName)
	}

	vars := make(map[string]interface{}, len(req.Variables))
	for k, v := range req.Variables {
		vars[k] = v
	}
	for _, def := range op.VariableDefinitions {
		if _, ok := vars[def.Variable]; ok || def.DefaultValue == nil {
			continue
		}
		v, err := keys.ResolveValue(def.DefaultValue, nil)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "default value of $%s", def.Variable)
		}
		vars[def.Variable] = v
	}
	return doc, op, vars, nil
}

func (c *Cache) isDisposed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disposed
}

func (c *Cache) fragment(req *FragmentRequest) (*ast.QueryDocument,
	*ast.FragmentDefinition, error) {

	if c.isDisposed() {
		return nil, nil, ErrDisposed
	}
	if req == nil {
		return nil, nil, errors.New("no request supplied")
	}
	if req.ID == "" {
		return nil, nil, errors.New("fragment requests need a node id")
	}
	doc, err := c.docs.parse(req.Fragment)
	if err != nil {
		return nil, nil, err
	}
	if req.FragmentName == "" {
		if len(doc.Fragments) != 1 {
			return nil, nil, errors.Errorf("found %d fragments, a fragment name must be "+
				"supplied", len(doc.Fragments))
		}
		return doc, doc.Fragments[0], nil
	}
	frag := doc.Fragments.ForName(req.FragmentName)
	if frag == nil {
		return nil, nil, &x.MissingFragmentError{Name: req.FragmentName}
	}
	return doc, frag, nil
}

// opTrace is the span and the metrics context of one cache call.
type opTrace struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
}

func begin(ctx context.Context, method string) *opTrace {
	ctx, span := tracer.Start(ctx, "cache."+method)
	return &opTrace{ctx: x.WithMethod(ctx, method), span: span, start: time.Now()}
}

func (o *opTrace) end(err error, measures ...stats.Measurement) {
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	} else {
		o.span.SetStatus(codes.Ok, "")
	}
	o.span.End()
	x.RecordOp(o.ctx, o.start, err, measures...)
}

func rootID(op ast.Operation) string {
	switch op {
	case ast.Mutation:
		return x.RootMutation
	case ast.Subscription:
		return x.RootSubscription
	}
	return x.RootQuery
}
