/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package keys

import (
	"github.com/pkg/errors"
)

const (
	byteNode = byte(0x01)
	byteMeta = byte(0x02)
)

// NodeKey returns the key a node record is persisted under.
func NodeKey(id string) []byte {
	buf := make([]byte, 1+len(id))
	buf[0] = byteNode
	copy(buf[1:], id)
	return buf
}

// NodePrefix returns the prefix shared by all node keys.
func NodePrefix() []byte {
	return []byte{byteNode}
}

// MetaKey returns the key of the snapshot metadata record.
func MetaKey() []byte {
	return []byte{byteMeta}
}

// ParseNodeKey returns the node id stored in key.
func ParseNodeKey(key []byte) (string, error) {
	if len(key) == 0 || key[0] != byteNode {
		return "", errors.Errorf("not a node key: %q", key)
	}
	return string(key[1:]), nil
}
