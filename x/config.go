/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

const (
	// RootQuery is the node id query results are written under.
	RootQuery = "ROOT_QUERY"
	// RootMutation is the node id mutation results are written under.
	RootMutation = "ROOT_MUTATION"
	// RootSubscription is the node id subscription results are written under.
	RootSubscription = "ROOT_SUBSCRIPTION"

	// TypenameField is the introspection field carrying the concrete type of an object.
	TypenameField = "__typename"
	// DataIDField is the key added to written result objects to expose their node id.
	DataIDField = "__dataID"
)

// Options stores the options for this package.
type Options struct {
	// DebugMode enables per-field logging in the cache layer.
	DebugMode bool
	// DocCacheSize is the maximum number of parsed documents kept in memory.
	DocCacheSize int64
	// IDFields are the object fields, in order, consulted by the default identity
	// function.
	IDFields []string
}

// Config stores the global instance of this package's options.
var Config = Options{
	DocCacheSize: 1 << 10,
	IDFields:     []string{"id", "_id"},
}

// RootIDs returns the node ids that are always reachable.
func RootIDs() []string {
	return []string{RootQuery, RootMutation, RootSubscription}
}
